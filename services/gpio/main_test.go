package gpio

import (
	"sync"
	"testing"
	"time"

	"github.com/barnybug/ener314/rpio"
	"github.com/stretchr/testify/assert"

	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
)

func ExampleInterfaces() {
	var _ services.Service = (*Service)(nil)
	var _ Pin = rpio.Pin(0)
	// Output:
}

type fakePin struct {
	mu    sync.Mutex
	state rpio.State
}

func (self *fakePin) Input()  {}
func (self *fakePin) Output() {}
func (self *fakePin) PullUp() {}

func (self *fakePin) Read() rpio.State {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.state
}

func (self *fakePin) Write(state rpio.State) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.state = state
}

func TestInterruptListener(t *testing.T) {
	pin := &fakePin{state: rpio.High}
	interrupts := make(chan InterruptEvent, 10)
	go interruptListener(pin, "gpio.3", 50*time.Millisecond, time.Millisecond, interrupts)
	time.Sleep(20 * time.Millisecond)

	pin.Write(rpio.Low) // press
	assert.Equal(t, InterruptEvent{"gpio.3", "on"}, <-interrupts)
	// held fires after the hold time
	assert.Equal(t, InterruptEvent{"gpio.3", "held"}, <-interrupts)
	pin.Write(rpio.High) // release
	assert.Equal(t, InterruptEvent{"gpio.3", "off"}, <-interrupts)
}

func TestInterruptListenerNoHold(t *testing.T) {
	pin := &fakePin{state: rpio.High}
	interrupts := make(chan InterruptEvent, 10)
	go interruptListener(pin, "gpio.26", 0, time.Millisecond, interrupts)
	time.Sleep(20 * time.Millisecond)

	pin.Write(rpio.Low)
	assert.Equal(t, InterruptEvent{"gpio.26", "on"}, <-interrupts)
	pin.Write(rpio.High)
	assert.Equal(t, InterruptEvent{"gpio.26", "off"}, <-interrupts)
}

func TestHandleCommand(t *testing.T) {
	pin := &fakePin{}
	service := &Service{outputs: map[string]*Output{"led.blaster": NewOutput(pin)}}

	service.handleCommand(pubsub.NewCommand("led.blaster", "on"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, rpio.High, pin.Read())

	service.handleCommand(pubsub.NewCommand("led.blaster", "off"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, rpio.Low, pin.Read())

	// unknown devices are ignored
	service.handleCommand(pubsub.NewCommand("led.unknown", "on"))
}
