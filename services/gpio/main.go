// Service to connect the Raspberry Pi GPIO pins to the event bus. Buttons
// become gpio events, LEDs answer to command events with simple on/off or
// longer running effects (blink, flash, fade, glow) driven by software PWM.
package gpio

import (
	"log"
	"strconv"
	"time"

	"github.com/barnybug/ener314/rpio"

	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
)

// Pin is the subset of rpio.Pin the service drives, so tests can fake it.
type Pin interface {
	Input()
	Output()
	PullUp()
	Read() rpio.State
	Write(state rpio.State)
}

// Service gpio
type Service struct {
	outputs    map[string]*Output
	interrupts chan InterruptEvent
}

// ID of the service
func (self *Service) ID() string {
	return "gpio"
}

type InterruptEvent struct {
	source  string
	command string
}

const DefaultPollInterval = time.Millisecond * 20

func pollInterval() time.Duration {
	if services.Config.Gpio.Poll != nil {
		return services.Config.Gpio.Poll.Duration
	}
	return DefaultPollInterval
}

// interruptListener polls an input pin, emitting press and release
// interrupts. Buttons are wired to ground with the internal pull-up, so a low
// reading means pressed. Held buttons fire an extra "held" interrupt once the
// hold time passes.
func interruptListener(pin Pin, source string, hold time.Duration, poll time.Duration, interrupts chan InterruptEvent) {
	state := pin.Read()
	pressedAt := time.Now()
	held := false
	for {
		current := pin.Read()
		if current != state {
			state = current
			if state == rpio.Low {
				pressedAt = time.Now()
				held = false
				interrupts <- InterruptEvent{source, "on"}
			} else {
				interrupts <- InterruptEvent{source, "off"}
			}
		} else if state == rpio.Low && hold > 0 && !held && time.Since(pressedAt) >= hold {
			held = true
			interrupts <- InterruptEvent{source, "held"}
		}
		time.Sleep(poll)
	}
}

func pinNumber(device string) (int, bool) {
	ident, ok := services.Config.LookupDeviceProtocol(device, "gpio")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(ident)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (self *Service) setupPins() {
	poll := pollInterval()
	for _, dev := range services.Config.DevicesByProtocol("gpio") {
		n, ok := pinNumber(dev.Id)
		if !ok {
			log.Println("Pin not recognised:", dev.Source)
			continue
		}
		pin := rpio.Pin(n)
		switch {
		case dev.Cap["button"]:
			pin.Input()
			pin.PullUp()
			var hold time.Duration
			if dev.Hold != nil {
				hold = dev.Hold.Duration
			}
			go interruptListener(pin, dev.Source, hold, poll, self.interrupts)
		case dev.Cap["led"]:
			pin.Output()
			pin.Write(rpio.Low)
			self.outputs[dev.Id] = NewOutput(pin)
		default:
			log.Println("Device not button or led:", dev.Id)
		}
	}
}

func (self *Service) handleCommand(ev *pubsub.Event) {
	device := ev.Device()
	out, ok := self.outputs[device]
	if !ok {
		return
	}
	command := ev.Command()
	log.Println("Command:", device, command)
	switch command {
	case "on":
		out.On()
	case "off":
		out.Off()
	case "level":
		level, _ := ev.FloatField("level")
		out.Level(level)
	case "blink":
		out.Blink(durationField(ev, "interval", 500*time.Millisecond))
	case "flash":
		repeat := int(ev.IntField("repeat"))
		if repeat == 0 {
			repeat = 20
		}
		out.Flash(repeat, durationField(ev, "interval", 50*time.Millisecond))
	case "fade":
		level, ok := ev.FloatField("level")
		if !ok {
			level = 100
		}
		out.Fade(level, durationField(ev, "duration", time.Second))
	case "glow":
		min, ok := ev.FloatField("min")
		if !ok {
			min = 80
		}
		max, ok := ev.FloatField("max")
		if !ok {
			max = 100
		}
		out.Glow(min, max)
	default:
		log.Println("Command not recognised:", command)
	}
}

// durationField reads a seconds field (eg interval: 0.05).
func durationField(ev *pubsub.Event, name string, def time.Duration) time.Duration {
	if secs, ok := ev.FloatField(name); ok && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

func (self *Service) handleInterrupt(iv InterruptEvent) {
	log.Println("Input", iv.source, iv.command)
	fields := pubsub.Fields{
		"source":  iv.source,
		"command": iv.command,
	}
	ev := pubsub.NewEvent("gpio", fields)
	services.Config.AddDeviceToEvent(ev)
	services.Publisher.Emit(ev)
}

// Run the service
func (self *Service) Run() error {
	err := rpio.Open()
	if err != nil {
		log.Fatalln("Couldn't open /dev/gpiomem:", err)
	}
	defer rpio.Close()

	self.outputs = map[string]*Output{}
	self.interrupts = make(chan InterruptEvent, 10)

	self.setupPins()
	commands := services.Subscriber.Subscribe(pubsub.Prefix("command"))

	for {
		select {
		case ev := <-commands:
			self.handleCommand(ev)
		case iv := <-self.interrupts:
			self.handleInterrupt(iv)
		}
	}
}
