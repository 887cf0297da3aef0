package dummy

import "github.com/noisypi/noisypi/pubsub"

// Dummy Publisher for testing
type Publisher struct {
	Events []*pubsub.Event
}

func (self *Publisher) ID() string {
	return "dummy"
}

func (self *Publisher) Emit(ev *pubsub.Event) {
	self.Events = append(self.Events, ev)
	ev.Published.Set()
}

func (self *Publisher) Close() {
}
