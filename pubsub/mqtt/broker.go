package mqtt

import (
	"fmt"
	"log"
	"math/rand"
	"os"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/noisypi/noisypi/pubsub"
)

type Broker struct {
	broker     string
	client     MQTT.Client
	subscriber *Subscriber
}

func NewBroker(url string, name string) *Broker {
	self := &Broker{broker: url}
	self.subscriber = NewSubscriber(self)

	// generate a unique client id
	hostname, _ := os.Hostname()
	clientId := fmt.Sprintf("noisypi/%s-%s-%d-%d", name, hostname, os.Getpid(), rand.Int())
	opts := MQTT.NewClientOptions()
	opts.AddBroker(url)
	opts.SetClientID(clientId)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(self.subscriber.connectHandler)
	opts.SetConnectionLostHandler(func(client MQTT.Client, err error) {
		log.Println("MQTT connection lost:", err)
	})

	self.client = MQTT.NewClient(opts)
	if token := self.client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln("Couldn't connect to mqtt:", token.Error())
	}
	return self
}

func (self *Broker) ID() string {
	return "mqtt: " + self.broker
}

func (self *Broker) Subscriber() pubsub.Subscriber {
	return self.subscriber
}

func (self *Broker) Publisher() *Publisher {
	return &Publisher{broker: self.broker, client: self.client}
}
