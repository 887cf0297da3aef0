package pubsub

import "sync"

type eventChannel struct {
	C      chan *Event
	topics []Topic
}

// FilteredSubscriber filters client-side, for transports that deliver every
// event regardless of subscriptions.
type FilteredSubscriber struct {
	id           string
	channels     []eventChannel
	channelsLock sync.Mutex
}

func NewFilteredSubscriber(id string, ch <-chan *Event) Subscriber {
	self := &FilteredSubscriber{id: id}
	go self.run(ch)
	return self
}

func (self *FilteredSubscriber) ID() string {
	return self.id
}

func (self *FilteredSubscriber) run(ch <-chan *Event) {
	for event := range ch {
		self.channelsLock.Lock()
		for _, ch := range self.channels {
			for _, t := range ch.topics {
				if t.Match(event.Topic) {
					ch.C <- event
					break
				}
			}
		}
		self.channelsLock.Unlock()
	}
}

func (self *FilteredSubscriber) Subscribe(topics ...Topic) <-chan *Event {
	ch := eventChannel{
		C:      make(chan *Event, 16),
		topics: topics,
	}
	self.channelsLock.Lock()
	self.channels = append(self.channels, ch)
	self.channelsLock.Unlock()
	return ch.C
}

func (self *FilteredSubscriber) Close(channel <-chan *Event) {
	self.channelsLock.Lock()
	var channels []eventChannel
	for _, ch := range self.channels {
		if channel == chan *Event(ch.C) {
			close(ch.C)
		} else {
			channels = append(channels, ch)
		}
	}
	self.channels = channels
	self.channelsLock.Unlock()
}
