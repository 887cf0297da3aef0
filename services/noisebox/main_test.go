package noisebox

import (
	"testing"

	"github.com/barnybug/gofsm"
	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/stretchr/testify/assert"
)

func init() {
	services.Config = config.ExampleConfig
}

var (
	evOn      = NewEventWrapper(pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.disco", "command": "on", "timestamp": "2026-08-25 19:24:22.069"}))
	evHeld    = NewEventWrapper(pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.power", "command": "held", "timestamp": "2026-08-25 19:24:22.069"}))
	evTimer   = NewEventWrapper(pubsub.NewEvent("timer", pubsub.Fields{"source": "bedtime", "command": "on", "timestamp": "2026-08-25 22:30:00.000"}))
	evMissing = NewEventWrapper(pubsub.NewEvent("gpio", pubsub.Fields{"timestamp": "2026-08-25 19:24:22.069"}))
)

func ExampleInterfaces() {
	var _ services.Service = (*Service)(nil)
	var _ services.Queryable = (*Service)(nil)
	var _ gofsm.Event = EventWrapper{}
	// Output:
}

func TestEventSimple(t *testing.T) {
	assert.True(t, evOn.Match("device=='button.disco' && command=='on'"))
	assert.False(t, evOn.Match("device=='button.disco' && command=='off'"))
}

func TestEventType(t *testing.T) {
	assert.True(t, evOn.Match("type=='button' && command=='on'"))
	assert.True(t, evOn.Match("type=='button'"))
}

func TestEventOr(t *testing.T) {
	assert.True(t, evOn.Match("device=='button.blaster' && command=='on' || device=='button.disco' && command=='on'"))
	assert.True(t, evOn.Match("device=='button.disco' && command=='on' || device=='button.blaster' && command=='on'"))
}

func TestEventHeld(t *testing.T) {
	assert.True(t, evHeld.Match("device=='button.power' && command=='held'"))
	assert.False(t, evHeld.Match("device=='button.power' && command=='on'"))
}

func TestEventTimer(t *testing.T) {
	assert.True(t, evTimer.Match("topic=='timer' && source=='bedtime'"))
	assert.False(t, evTimer.Match("topic=='timer' && source=='matinee'"))
}

func TestEventMissing(t *testing.T) {
	assert.False(t, evMissing.Match("device=='button.disco' && command=='on'"))
}

func TestEventNotABoolean(t *testing.T) {
	assert.False(t, evOn.Match("'abc'"))
}

func TestBadExpression(t *testing.T) {
	assert.False(t, evOn.Match("blah()"))
}

var SimpleAutomata = `
simple:
  start: Start
  states:
    Start: {}
  transitions:
    Start: []
`

func TestStateFunction(t *testing.T) {
	assert.False(t, evOn.Match("State()"))
	automata, _ = gofsm.Load([]byte(SimpleAutomata))
	assert.True(t, evOn.Match("State('simple')=='Start'"))
	assert.False(t, evOn.Match("State('simple')=='Cobblers'"))
	assert.False(t, evOn.Match("State('blah')=='Cobblers'"))
}

func TestEventWrapperString(t *testing.T) {
	assert.Equal(t, "button.disco command=on", evOn.String())
}

func BenchmarkEventTrue(b *testing.B) {
	for i := 0; i < b.N; i++ {
		evOn.Match("device=='button.blaster' && command=='on' || device=='button.disco' && command=='on'")
	}
}

func BenchmarkEventFalse(b *testing.B) {
	for i := 0; i < b.N; i++ {
		evMissing.Match("device=='button.blaster' && command=='on' || device=='button.disco' && command=='on'")
	}
}

func TestExampleAutomata(t *testing.T) {
	aut, err := gofsm.Load([]byte(ExampleAutomataYaml))
	assert.NoError(t, err)
	assert.Len(t, aut.Automaton, 6)

	// opening the lightsaber
	ev := NewEventWrapper(pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.lightsaber", "command": "on"}))
	aut.Process(ev)
	change := <-aut.Changes
	assert.Equal(t, "noisebox.lightsaber", change.Automaton)
	assert.Equal(t, "Closed", change.Old)
	assert.Equal(t, "Open", change.New)
	action := <-aut.Actions
	assert.Equal(t, "LightsaberOpen()", action.Name)

	// firing the blaster changes no state
	ev = NewEventWrapper(pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.blaster", "command": "on"}))
	aut.Process(ev)
	action = <-aut.Actions
	assert.Equal(t, "Blaster()", action.Name)
	assert.Equal(t, "Ready", aut.Automaton["noisebox.blaster"].State.Name)

	// holding the power button
	ev = NewEventWrapper(pubsub.NewEvent("gpio", pubsub.Fields{"device": "button.power", "command": "held"}))
	aut.Process(ev)
	action = <-aut.Actions
	assert.Equal(t, `Log("power held, shutting down")`, action.Name)
	action = <-aut.Actions
	assert.Equal(t, `Alert("Noisebox powering off", "telegram")`, action.Name)
	action = <-aut.Actions
	assert.Equal(t, "Poweroff()", action.Name)
}

func TestLoadAutomataTemplated(t *testing.T) {
	templated := `
{{if .devices}}noisebox.disco:
  start: Quiet
  states:
    Quiet: {}
    Party: {}
  transitions:
    Quiet->Party:
    - when: device=='button.disco' && command=='on'
    Party->Quiet:
    - when: device=='button.disco' && command=='off'
{{end}}`
	aut, err := loadAutomata([]byte(templated))
	assert.NoError(t, err)
	assert.Len(t, aut.Automaton, 1)
}
