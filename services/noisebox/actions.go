package noisebox

import (
	"log"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/util"
)

// Timings of the scenario sequences, variables so tests can shrink them.
var (
	saberFadeTime   = 2 * time.Second
	saberCloseDelay = 500 * time.Millisecond
	blinkySpacing   = time.Second
)

func command(device string, cmd string, fields pubsub.Fields) {
	ev := pubsub.NewCommand(device, cmd)
	ev.SetFields(fields)
	services.Publisher.Emit(ev)
}

func devicesByPrefix(prefix string) []string {
	var ret []string
	for name := range services.Config.Devices {
		if strings.HasPrefix(name, prefix) {
			ret = append(ret, name)
		}
	}
	sort.Strings(ret)
	return ret
}

func (self EventAction) substitute(msg string) string {
	device := services.Config.LookupDeviceName(self.event)
	name := services.Config.Devices[device].Name
	now := time.Now()
	vals := map[string]string{
		"name":      name,
		"duration":  util.FriendlyDuration(self.change.Duration),
		"timestamp": now.Format(time.Kitchen),
		"datetime":  now.Format(time.StampMilli),
	}
	return Substitute(msg, vals)
}

// Log appends a line to the events log.
func (self EventAction) Log(msg string) {
	msg = self.substitute("$datetime: " + msg)
	self.service.appendLog(msg)
}

// Alert sends an alert to the given target (eg 'telegram').
func (self EventAction) Alert(message string, target string) {
	message = self.substitute(message)
	log.Printf("%s: %s", strings.Title(target), message)
	services.SendAlert(message, target, "", 0)
}

// Sound plays a one-shot sample.
func (self EventAction) Sound(name string) {
	fields := pubsub.Fields{"command": "play", "sound": name}
	services.Publisher.Emit(pubsub.NewEvent("audio", fields))
}

// Music starts a looping track, replacing any playing.
func (self EventAction) Music(name string) {
	fields := pubsub.Fields{"command": "music", "sound": name}
	services.Publisher.Emit(pubsub.NewEvent("audio", fields))
}

// StopMusic stops the looping track.
func (self EventAction) StopMusic() {
	fields := pubsub.Fields{"command": "stop"}
	services.Publisher.Emit(pubsub.NewEvent("audio", fields))
}

// Switch a device on or off.
func (self EventAction) Switch(device string, state bool) {
	onoff := "off"
	if state {
		onoff = "on"
	}
	log.Printf("Switching %s %s", device, onoff)
	command(device, onoff, nil)
}

// Script runs a script, non-blocking.
func (self EventAction) Script(cmd string) {
	log.Println("Script:", cmd)
	go func() {
		cmd = util.ExpandUser(cmd)
		_, err := exec.Command(cmd).Output()
		if err != nil {
			log.Printf("Exec %s: %s", cmd, err)
		}
	}()
}

// StartTimer starts a named timer, emitting a timer event on expiry.
// Restarted if already running.
func (self EventAction) StartTimer(name string, d int64) {
	duration := time.Duration(d) * time.Second
	if timer, ok := self.service.timers[name]; ok {
		// cancel any existing
		timer.Stop()
	}

	timer := time.AfterFunc(duration, func() {
		fields := pubsub.Fields{
			"source":  name,
			"command": "on",
		}
		services.Publisher.Emit(pubsub.NewEvent("timer", fields))
	})
	self.service.timers[name] = timer
}

// LightsaberOpen ignites the saber: open swoosh, looping hum, the blade leds
// fading up in sequence then left glowing.
func (self EventAction) LightsaberOpen() {
	log.Println("Lightsaber: opening")
	self.Sound("lightsaber_open")
	self.Music("lightsaber_hum")
	go func() {
		leds := devicesByPrefix("led.lightsaber")
		if len(leds) == 0 {
			return
		}
		per := saberFadeTime / time.Duration(len(leds))
		for _, led := range leds {
			command(led, "fade", pubsub.Fields{"level": 100.0, "duration": per.Seconds()})
			time.Sleep(per)
		}
		for _, led := range leds {
			command(led, "glow", pubsub.Fields{"min": 80.0, "max": 100.0})
		}
	}()
}

// LightsaberClose retracts the saber: hum stops, close swoosh, the blade leds
// fading down tip first.
func (self EventAction) LightsaberClose() {
	log.Println("Lightsaber: closing")
	go func() {
		time.Sleep(saberCloseDelay)
		self.StopMusic()
		self.Sound("lightsaber_close")
		leds := devicesByPrefix("led.lightsaber")
		if len(leds) == 0 {
			return
		}
		per := saberFadeTime / time.Duration(len(leds))
		for i := len(leds) - 1; i >= 0; i-- {
			command(leds[i], "fade", pubsub.Fields{"level": 0.0, "duration": per.Seconds()})
			time.Sleep(per)
		}
	}()
}

// BlinkyStart blinks the leds, the second starting half a period later so
// they alternate.
func (self EventAction) BlinkyStart() {
	log.Println("Blinky: starting")
	go func() {
		for i, led := range devicesByPrefix("led.blinky") {
			if i > 0 {
				time.Sleep(blinkySpacing)
			}
			command(led, "blink", pubsub.Fields{"interval": 1.0})
		}
	}()
}

// BlinkyStop stops the blinking. The last led is left on as the stopped
// indicator.
func (self EventAction) BlinkyStop() {
	log.Println("Blinky: stopping")
	leds := devicesByPrefix("led.blinky")
	for i, led := range leds {
		if i == len(leds)-1 {
			command(led, "on", nil)
		} else {
			command(led, "off", nil)
		}
	}
}

// Scream plays the r2d2 scream.
func (self EventAction) Scream() {
	log.Println("R2D2: screaming")
	self.Sound("r2d2_scream")
}

// Woo plays the r2d2 woo.
func (self EventAction) Woo() {
	log.Println("R2D2: wooing")
	self.Sound("r2d2_woooo")
}

// Blaster fires: pew pew sound and a burst of flashes on the barrel led.
func (self EventAction) Blaster() {
	log.Println("Blaster: firing")
	self.Sound("blaster")
	for _, led := range devicesByPrefix("led.blaster") {
		command(led, "flash", pubsub.Fields{"repeat": 20.0, "interval": 0.05})
	}
}

// DiscoStart starts the funk looping and the disco leds strobing.
func (self EventAction) DiscoStart() {
	log.Println("Disco: starting")
	self.Music("star_wars_funk")
	for _, led := range devicesByPrefix("led.disco") {
		command(led, "blink", pubsub.Fields{"interval": 0.25})
	}
}

// DiscoStop kills the funk.
func (self EventAction) DiscoStop() {
	log.Println("Disco: stopping")
	self.StopMusic()
	for _, led := range devicesByPrefix("led.disco") {
		command(led, "off", nil)
	}
}

// Poweroff shuts the machine down.
func (self EventAction) Poweroff() {
	log.Println("Powering off")
	go func() {
		out, err := exec.Command("sudo", "poweroff").CombinedOutput()
		if err != nil {
			log.Printf("Poweroff failed: %s: %s", err, out)
		}
	}()
}
