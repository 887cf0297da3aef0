package noisebox

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/pubsub/dummy"
	"github.com/noisypi/noisypi/services"
	"github.com/stretchr/testify/assert"
)

func setupAction(ev *pubsub.Event) (*dummy.Publisher, EventAction) {
	pub := &dummy.Publisher{}
	services.Config = config.ExampleConfig
	services.Publisher = pub
	service := &Service{timers: map[string]*time.Timer{}}
	return pub, EventAction{service: service, event: ev}
}

func TestLightsaberOpen(t *testing.T) {
	saberFadeTime = 3 * time.Millisecond
	defer func() { saberFadeTime = 2 * time.Second }()

	ev := pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.lightsaber", "command": "on"})
	pub, ea := setupAction(ev)
	ea.LightsaberOpen()
	time.Sleep(100 * time.Millisecond)

	if assert.Len(t, pub.Events, 8) {
		assert.Equal(t, "audio", pub.Events[0].Topic)
		assert.Equal(t, "play", pub.Events[0].Command())
		assert.Equal(t, "lightsaber_open", pub.Events[0].StringField("sound"))
		assert.Equal(t, "music", pub.Events[1].Command())
		assert.Equal(t, "lightsaber_hum", pub.Events[1].StringField("sound"))
		// blade leds fade up in sequence, then glow
		assert.Equal(t, "led.lightsaber1", pub.Events[2].Device())
		assert.Equal(t, "fade", pub.Events[2].Command())
		assert.Equal(t, "led.lightsaber2", pub.Events[3].Device())
		assert.Equal(t, "led.lightsaber3", pub.Events[4].Device())
		assert.Equal(t, "glow", pub.Events[5].Command())
	}
}

func TestLightsaberClose(t *testing.T) {
	saberFadeTime = 3 * time.Millisecond
	saberCloseDelay = time.Millisecond
	defer func() {
		saberFadeTime = 2 * time.Second
		saberCloseDelay = 500 * time.Millisecond
	}()

	ev := pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.lightsaber", "command": "off"})
	pub, ea := setupAction(ev)
	ea.LightsaberClose()
	time.Sleep(100 * time.Millisecond)

	if assert.Len(t, pub.Events, 5) {
		assert.Equal(t, "stop", pub.Events[0].Command())
		assert.Equal(t, "play", pub.Events[1].Command())
		assert.Equal(t, "lightsaber_close", pub.Events[1].StringField("sound"))
		// blade leds fade down tip first
		assert.Equal(t, "led.lightsaber3", pub.Events[2].Device())
		assert.Equal(t, "led.lightsaber2", pub.Events[3].Device())
		assert.Equal(t, "led.lightsaber1", pub.Events[4].Device())
	}
}

func TestBlinky(t *testing.T) {
	blinkySpacing = time.Millisecond
	defer func() { blinkySpacing = time.Second }()

	ev := pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.blinky", "command": "on"})
	pub, ea := setupAction(ev)
	ea.BlinkyStart()
	time.Sleep(50 * time.Millisecond)

	if assert.Len(t, pub.Events, 2) {
		assert.Equal(t, "led.blinky1", pub.Events[0].Device())
		assert.Equal(t, "blink", pub.Events[0].Command())
		assert.Equal(t, "led.blinky2", pub.Events[1].Device())
	}

	pub.Events = nil
	ea.BlinkyStop()
	if assert.Len(t, pub.Events, 2) {
		assert.Equal(t, "off", pub.Events[0].Command())
		// last led left on as the stopped indicator
		assert.Equal(t, "led.blinky2", pub.Events[1].Device())
		assert.Equal(t, "on", pub.Events[1].Command())
	}
}

func TestBlaster(t *testing.T) {
	ev := pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.blaster", "command": "on"})
	pub, ea := setupAction(ev)
	ea.Blaster()

	if assert.Len(t, pub.Events, 2) {
		assert.Equal(t, "blaster", pub.Events[0].StringField("sound"))
		assert.Equal(t, "led.blaster", pub.Events[1].Device())
		assert.Equal(t, "flash", pub.Events[1].Command())
	}
}

func TestDisco(t *testing.T) {
	ev := pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.disco", "command": "on"})
	pub, ea := setupAction(ev)
	ea.DiscoStart()

	if assert.Len(t, pub.Events, 2) {
		assert.Equal(t, "music", pub.Events[0].Command())
		assert.Equal(t, "star_wars_funk", pub.Events[0].StringField("sound"))
		assert.Equal(t, "led.disco", pub.Events[1].Device())
		assert.Equal(t, "blink", pub.Events[1].Command())
	}

	pub.Events = nil
	ea.DiscoStop()
	if assert.Len(t, pub.Events, 2) {
		assert.Equal(t, "stop", pub.Events[0].Command())
		assert.Equal(t, "off", pub.Events[1].Command())
	}
}

func TestScream(t *testing.T) {
	ev := pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.r2d2", "command": "on"})
	pub, ea := setupAction(ev)
	ea.Scream()

	if assert.Len(t, pub.Events, 1) {
		assert.Equal(t, "audio", pub.Events[0].Topic)
		assert.Equal(t, "r2d2_scream", pub.Events[0].StringField("sound"))
	}
}

func TestLogAction(t *testing.T) {
	f, err := ioutil.TempFile("", "events")
	assert.NoError(t, err)
	defer os.Remove(f.Name())

	ev := pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.power", "command": "held"})
	_, ea := setupAction(ev)
	ea.service.log = f
	ea.Log("$name held")

	data, _ := ioutil.ReadFile(f.Name())
	assert.Contains(t, string(data), "Power button held")
}

func TestStartTimer(t *testing.T) {
	ev := pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.power", "command": "on"})
	pub, ea := setupAction(ev)
	ea.StartTimer("bedtime", 0)
	time.Sleep(50 * time.Millisecond)

	if assert.Len(t, pub.Events, 1) {
		assert.Equal(t, "timer", pub.Events[0].Topic)
		assert.Equal(t, "bedtime", pub.Events[0].Source())
		assert.Equal(t, "on", pub.Events[0].Command())
	}
}

func TestDynamicCallActions(t *testing.T) {
	ev := pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.r2d2", "command": "on"})
	pub, ea := setupAction(ev)

	assert.NoError(t, DynamicCall(ea, "Woo()"))
	assert.NoError(t, DynamicCall(ea, `Switch("led.blaster", true)`))
	assert.Error(t, DynamicCall(ea, "Unknown()"))

	if assert.Len(t, pub.Events, 2) {
		assert.Equal(t, "r2d2_woooo", pub.Events[0].StringField("sound"))
		assert.Equal(t, "led.blaster", pub.Events[1].Device())
		assert.Equal(t, "on", pub.Events[1].Command())
	}
}
