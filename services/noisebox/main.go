// Service for state machine based behaviour of the noisebox. State machines
// wired to the button events decide what happens: the lightsaber opens and
// closes, blinky blinks, the blaster fires, disco starts the funk and holding
// the power button shuts the box down.
//
// The state machines are yaml configuration published retained under the
// config/automata topic, so behaviour rewires over the wire without touching
// the box:
//
//	noisypi config noisebox.yml
//
// For more details on the configuration format, see:
//
// http://godoc.org/github.com/barnybug/gofsm
package noisebox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/barnybug/gofsm"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/util"
)

var eventsLogPath = config.LogPath("events.log")

func openLogFile() *os.File {
	logfile, err := os.OpenFile(eventsLogPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		log.Println("Couldn't open events.log:", err)
		logfile, _ = os.Open(os.DevNull)
		return logfile
	}
	return logfile
}

// Service noisebox
type Service struct {
	timers map[string]*time.Timer
	log    *os.File
}

func (self *Service) ID() string {
	return "noisebox"
}

// automata is the live set of state machines, swapped on config reload. The
// State() expression function reads it.
var automata *gofsm.Automata

type EventAction struct {
	service *Service
	event   *pubsub.Event
	change  gofsm.Change
}

// EventWrapper adapts an event to the gofsm Event interface, matching
// transition conditions as govaluate expressions over the event fields.
type EventWrapper struct {
	event  *pubsub.Event
	params map[string]interface{}
}

func NewEventWrapper(event *pubsub.Event) EventWrapper {
	device := services.Config.LookupDeviceName(event)
	params := map[string]interface{}{
		"topic":  event.Topic,
		"device": device,
		"type":   strings.Split(device, ".")[0],
	}
	for k, v := range event.Fields {
		params[k] = v
	}
	return EventWrapper{event, params}
}

var exprFunctions = map[string]govaluate.ExpressionFunction{
	"State": func(args ...interface{}) (interface{}, error) {
		if automata == nil || len(args) != 1 {
			return "", nil
		}
		name, _ := args[0].(string)
		if aut, ok := automata.Automaton[name]; ok {
			return aut.State.Name, nil
		}
		return "", nil
	},
}

func (self EventWrapper) Match(when string) bool {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(when, exprFunctions)
	if err != nil {
		log.Printf("Bad expression %q: %s", when, err)
		return false
	}
	result, err := expr.Evaluate(self.params)
	if err != nil {
		return false
	}
	ret, ok := result.(bool)
	return ok && ret
}

func (self EventWrapper) String() string {
	s := services.Config.LookupDeviceName(self.event)
	if self.event.Command() != "" {
		s += fmt.Sprintf(" command=%s", self.event.Command())
	} else if self.event.State() != "" {
		s += fmt.Sprintf(" state=%s", self.event.State())
	}
	return s
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": services.TextHandler(self.queryStatus),
		"switch": services.TextHandler(self.querySwitch),
		"logs":   services.TextHandler(self.queryLogs),
		"help": services.StaticHandler("" +
			"status: get automata states\n" +
			"switch device on|off: switch device\n" +
			"logs: get recent event logs\n"),
	}
}

func (self *Service) queryStatus(q services.Question) string {
	var out string
	now := time.Now()
	var keys []string
	for k := range automata.Automaton {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	group := ""
	for _, k := range keys {
		if strings.Split(k, ".")[0] != group {
			group = strings.Split(k, ".")[0]
			out += group + "\n"
		}
		name := k
		if dev, ok := services.Config.Devices[k]; ok {
			name = dev.Name
		}
		aut := automata.Automaton[k]
		du := util.ShortDuration(now.Sub(aut.Since))
		out += fmt.Sprintf("- %s: %s for %s\n", name, aut.State.Name, du)
	}
	return out
}

func (self *Service) querySwitch(q services.Question) string {
	if q.Args == "" {
		// return a list of the switchable devices
		var devices []string
		for dev, conf := range services.Config.Devices {
			if conf.IsSwitchable() {
				devices = append(devices, dev)
			}
		}
		sort.Strings(devices)
		return strings.Join(devices, ", ")
	}
	args := strings.Split(q.Args, " ")
	name := args[0]
	command := "on"
	if len(args) > 1 && args[1] == "off" {
		command = "off"
	}
	matches := services.MatchDevices(name)
	if len(matches) == 0 {
		return fmt.Sprintf("device %s not found", name)
	}
	if len(matches) > 1 {
		return fmt.Sprintf("device %s is ambiguous", strings.Join(matches, ", "))
	}
	services.Publisher.Emit(pubsub.NewCommand(matches[0], command))
	return fmt.Sprintf("Switched %s %s", matches[0], command)
}

func tail(filename string, lines int64) ([]byte, error) {
	n := fmt.Sprintf("-n%d", lines)
	return exec.Command("tail", n, filename).Output()
}

func (self *Service) queryLogs(q services.Question) string {
	data, err := tail(eventsLogPath, 25)
	if err != nil {
		return fmt.Sprintf("Couldn't retrieve logs: %s", err)
	}
	return string(data)
}

func storeKey(automaton string) string {
	return "noisypi/state/noisebox/" + automaton
}

func (self *Service) PersistStore(automaton string) {
	state := automata.Persist()
	v := state[automaton]
	value, _ := json.Marshal(v)
	err := services.Stor.Set(storeKey(automaton), string(value))
	if err != nil {
		log.Println("Persisting automata state to store failed:", err)
	}
}

func (self *Service) RestoreStore(aut *gofsm.Automata) {
	p := gofsm.AutomataState{}
	for name := range aut.Automaton {
		value, err := services.Stor.Get(storeKey(name))
		var ps gofsm.AutomatonState
		if err == nil {
			err = json.Unmarshal([]byte(value), &ps)
		}
		if err != nil {
			log.Println("Restoring automata state from store failed:", err)
			continue
		}
		p[name] = ps
	}
	aut.Restore(p)
}

// loadAutomata parses the automata yaml, templated with the configured
// devices.
func loadAutomata(data []byte) (*gofsm.Automata, error) {
	tmpl, err := template.New("automata").Parse(string(data))
	if err != nil {
		return nil, err
	}
	context := map[string]interface{}{
		"devices": services.Config.Devices,
	}
	wr := new(bytes.Buffer)
	if err = tmpl.Execute(wr, context); err != nil {
		return nil, err
	}
	return gofsm.Load(wr.Bytes())
}

func (self *Service) Run() error {
	self.log = openLogFile()
	self.timers = map[string]*time.Timer{}

	waiter := services.NewConfigWaiter(pubsub.Exact("config/automata"))
	waiter.Wait()
	var err error
	automata, err = loadAutomata(waiter.Value)
	if err != nil {
		return err
	}
	go waiter.Watch()

	// persistence can take a while, so run in background
	chanPersist := make(chan string, 32)
	go func() {
		for automaton := range chanPersist {
			self.PersistStore(automaton)
		}
	}()

	self.RestoreStore(automata)
	log.Printf("Initial states:\n%s", automata)

	events := services.Subscriber.Subscribe(pubsub.Exact("gpio"), pubsub.Exact("timer"))
	for {
		select {
		case ev := <-events:
			if ev.Command() == "" && ev.State() == "" {
				continue
			}
			automata.Process(NewEventWrapper(ev))

		case change := <-automata.Changes:
			trigger := change.Trigger.(EventWrapper)
			s := fmt.Sprintf("%-22s %s->%s", "["+change.Automaton+"]", change.Old, change.New)
			log.Printf("%-45s (event: %s)", s, trigger)
			chanPersist <- change.Automaton
			if !strings.Contains(change.Automaton, ".") {
				continue
			}
			// emit state change event
			ps := strings.SplitN(change.Automaton, ".", 2)
			fields := pubsub.Fields{
				"source":  ps[1],
				"state":   change.New,
				"trigger": trigger.String(),
			}
			services.Publisher.Emit(pubsub.NewEvent(ps[0], fields))

		case action := <-automata.Actions:
			wrapper := action.Trigger.(EventWrapper)
			ea := EventAction{self, wrapper.event, action.Change}
			if err := DynamicCall(ea, action.Name); err != nil {
				log.Println("Error:", err)
			}

		case <-waiter.Updated:
			// live reload the automata
			log.Println("Automata config updated, reloading")
			updated, err := loadAutomata(waiter.Value)
			if err != nil {
				log.Println("Failed to reload automata:", err)
				continue
			}
			self.RestoreStore(updated)
			automata = updated
			log.Println("Automata reloaded successfully")
		}
	}
}

func (self *Service) appendLog(msg string) {
	fmt.Fprintln(self.log, msg)
}
