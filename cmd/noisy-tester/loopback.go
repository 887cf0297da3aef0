package main

import (
	"math/rand"
	"sort"
	"time"

	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
)

// loopback is a broker in miniature: events emitted come straight back on the
// subscriber.
type loopback struct {
	ch chan *pubsub.Event
}

func (self *loopback) ID() string {
	return "loopback"
}

func (self *loopback) Emit(ev *pubsub.Event) {
	self.ch <- ev
	ev.Published.Set()
}

func (self *loopback) Close() {}

func setupLoopback() {
	lb := &loopback{ch: make(chan *pubsub.Event, 16)}
	services.Publisher = lb
	services.Subscriber = pubsub.NewFilteredSubscriber("loopback", lb.ch)
}

// twiddle stands in for the services, pressing buttons and driving leds at
// random so the display has something to show.
func twiddle() {
	var buttons, leds []string
	for name, dev := range services.Config.Devices {
		switch dev.Type {
		case "button":
			buttons = append(buttons, name)
		case "led":
			leds = append(leds, name)
		}
	}
	sort.Strings(buttons)
	sort.Strings(leds)
	commands := []string{"on", "off", "blink", "glow"}
	for {
		time.Sleep(time.Duration(500+rand.Intn(2000)) * time.Millisecond)
		if len(leds) > 0 && rand.Intn(2) == 0 {
			name := leds[rand.Intn(len(leds))]
			command := commands[rand.Intn(len(commands))]
			ev := pubsub.NewCommand(name, command)
			switch command {
			case "blink":
				ev.SetField("interval", 0.5)
			case "glow":
				ev.SetField("min", 20.0)
				ev.SetField("max", 80.0)
			}
			services.Publisher.Emit(ev)
		} else if len(buttons) > 0 {
			name := buttons[rand.Intn(len(buttons))]
			services.Publisher.Emit(pubsub.NewEvent("gpio", pubsub.Fields{"device": name, "command": "on"}))
			time.Sleep(time.Duration(100+rand.Intn(400)) * time.Millisecond)
			services.Publisher.Emit(pubsub.NewEvent("gpio", pubsub.Fields{"device": name, "command": "off"}))
		}
	}
}
