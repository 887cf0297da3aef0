package mqtt

import (
	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/noisypi/noisypi/pubsub"
)

// Publisher for mqtt
type Publisher struct {
	broker string
	client MQTT.Client
}

// ID of Publisher
func (self *Publisher) ID() string {
	return "mqtt: " + self.broker
}

// Emit an event
func (self *Publisher) Emit(ev *pubsub.Event) {
	// all topics live under noisypi/
	topic := "noisypi/" + ev.Topic
	if token := self.client.Publish(topic, 1, ev.Retained, ev.Bytes()); token.Wait() && token.Error() != nil {
		return
	}
	ev.Published.Set()
}

// Close flushes and disconnects
func (self *Publisher) Close() {
	self.client.Disconnect(250)
}
