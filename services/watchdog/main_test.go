package watchdog

import (
	"strings"
	"testing"
	"time"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/stretchr/testify/assert"
)

func ExampleInterfaces() {
	var _ services.Service = (*Service)(nil)
	var _ services.Queryable = (*Service)(nil)
	// Output:
}

var testYaml = `
systemd:
  services: [gpio, audio]
watchdog:
  devices:
    heartbeat.gpio: 2m
  processes: [mosquitto]
  pings: [gateway.local]
`

func testSetup() *Service {
	services.Config = config.Must(config.OpenReader(strings.NewReader(testYaml)))
	self := &Service{}
	self.setup()
	return self
}

func TestSetup(t *testing.T) {
	testSetup()
	assert.Len(t, devices, 4)
	assert.Contains(t, devices, "heartbeat.gpio")
	assert.Contains(t, devices, "heartbeat.audio")
	assert.Contains(t, devices, "process.mosquitto")
	assert.Contains(t, devices, "ping.gateway.local")
	// the explicit config wins over the generated heartbeat entry
	assert.Equal(t, 2*time.Minute, devices["heartbeat.gpio"].Timeout)
}

func TestTimeoutAndRecover(t *testing.T) {
	testSetup()
	w := devices["heartbeat.gpio"]
	w.LastEvent = time.Now().Add(-10 * time.Minute)
	checkTimeouts()
	assert.True(t, w.Alerted)

	// an event recovers it
	checkEvent(pubsub.NewEvent("heartbeat", pubsub.Fields{"device": "heartbeat.gpio"}))
	assert.False(t, w.Alerted)

	// stale retained events don't regress the clock
	last := w.LastEvent
	stale := pubsub.NewEvent("heartbeat", pubsub.Fields{"device": "heartbeat.gpio", "timestamp": "2020-01-02 03:04:05.000"})
	checkEvent(stale)
	assert.Equal(t, last, w.LastEvent)
}

func TestSilenced(t *testing.T) {
	testSetup()
	w := devices["heartbeat.gpio"]
	w.LastEvent = time.Now().Add(-10 * time.Minute)
	w.Silenced = time.Now().Add(time.Hour)
	checkTimeouts()
	assert.False(t, w.Alerted)
}

func TestQuerySilence(t *testing.T) {
	self := testSetup()
	out := self.querySilence(services.Question{Args: "process 2h"})
	assert.Contains(t, out, "Silenced process.mosquitto")
	assert.True(t, devices["process.mosquitto"].Silenced.After(time.Now()))

	out = self.querySilence(services.Question{Args: "heartbeat"})
	assert.Contains(t, out, "ambiguous")

	out = self.querySilence(services.Question{Args: "nonsense"})
	assert.Contains(t, out, "not found")
}

func TestQueryStatus(t *testing.T) {
	self := testSetup()
	out := self.queryStatus(services.Question{})
	assert.Contains(t, out, "Service audio")
	assert.Contains(t, out, "Ping gateway.local")
}
