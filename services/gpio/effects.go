package gpio

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/barnybug/ener314/rpio"
)

// The Pi has hardware PWM on two pins only, so LED brightness is done in
// software: each output runs a goroutine cycling the pin at pwmFrequency with
// the duty cycle set by the current level.
const pwmFrequency = 100

// PWM drives a pin with a software pulse width modulated signal.
type PWM struct {
	pin   Pin
	level uint32
	stop  chan struct{}
}

func NewPWM(pin Pin) *PWM {
	self := &PWM{pin: pin, stop: make(chan struct{})}
	go self.run()
	return self
}

func (self *PWM) run() {
	period := time.Second / pwmFrequency
	for {
		select {
		case <-self.stop:
			self.pin.Write(rpio.Low)
			return
		default:
		}
		level := atomic.LoadUint32(&self.level)
		on := period * time.Duration(level) / 100
		if level > 0 {
			self.pin.Write(rpio.High)
			time.Sleep(on)
		}
		if level < 100 {
			self.pin.Write(rpio.Low)
			time.Sleep(period - on)
		}
	}
}

// Set the level (percent, 0-100).
func (self *PWM) Set(level float64) {
	level = math.Max(0, math.Min(100, level))
	atomic.StoreUint32(&self.level, uint32(level))
}

func (self *PWM) Level() float64 {
	return float64(atomic.LoadUint32(&self.level))
}

func (self *PWM) Close() {
	close(self.stop)
}

// Output is an LED on a pin. One effect runs at a time: starting a new
// command cancels the previous effect.
type Output struct {
	pwm      *PWM
	mu       sync.Mutex
	stopping chan struct{}
	done     chan struct{}
}

func NewOutput(pin Pin) *Output {
	return &Output{pwm: NewPWM(pin)}
}

// cancel the running effect, waiting for it to finish so a late effect write
// can't overwrite the following command.
func (self *Output) cancel() {
	self.mu.Lock()
	stopping, done := self.stopping, self.done
	self.stopping, self.done = nil, nil
	self.mu.Unlock()
	if stopping != nil {
		close(stopping)
		<-done
	}
}

func (self *Output) start(effect func(set func(float64), stop <-chan struct{})) {
	self.cancel()
	self.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	self.stopping = stop
	self.done = done
	self.mu.Unlock()
	go func() {
		effect(self.pwm.Set, stop)
		close(done)
	}()
}

func (self *Output) On() {
	self.cancel()
	self.pwm.Set(100)
}

func (self *Output) Off() {
	self.cancel()
	self.pwm.Set(0)
}

func (self *Output) Level(level float64) {
	self.cancel()
	self.pwm.Set(level)
}

func (self *Output) Blink(interval time.Duration) {
	self.start(func(set func(float64), stop <-chan struct{}) {
		blink(set, interval, stop)
	})
}

func (self *Output) Flash(repeat int, interval time.Duration) {
	self.start(func(set func(float64), stop <-chan struct{}) {
		flash(set, repeat, interval, stop)
	})
}

func (self *Output) Fade(level float64, duration time.Duration) {
	from := self.pwm.Level()
	self.start(func(set func(float64), stop <-chan struct{}) {
		fade(set, from, level, duration, stop)
	})
}

func (self *Output) Glow(min, max float64) {
	self.start(func(set func(float64), stop <-chan struct{}) {
		glow(set, min, max, stop)
	})
}

// sleep, interruptible. Returns false when stopped.
func sleep(d time.Duration, stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-time.After(d):
		return true
	}
}

func blink(set func(float64), interval time.Duration, stop <-chan struct{}) {
	for {
		set(100)
		if !sleep(interval, stop) {
			return
		}
		set(0)
		if !sleep(interval, stop) {
			return
		}
	}
}

func flash(set func(float64), repeat int, interval time.Duration, stop <-chan struct{}) {
	for i := 0; i < repeat; i++ {
		set(100)
		if !sleep(interval, stop) {
			return
		}
		set(0)
		if !sleep(interval, stop) {
			return
		}
	}
}

const fadeSteps = 100

func fade(set func(float64), from, to float64, duration time.Duration, stop <-chan struct{}) {
	step := duration / fadeSteps
	for i := 1; i <= fadeSteps; i++ {
		set(from + (to-from)*float64(i)/fadeSteps)
		if !sleep(step, stop) {
			return
		}
	}
}

// glow ramps between min and max with random pauses in between, for a
// flickering energy effect.
func glow(set func(float64), min, max float64, stop <-chan struct{}) {
	level := max
	up := false
	for {
		target := min
		if up {
			target = max
		}
		for level != target {
			if up {
				level = math.Min(level+1, target)
			} else {
				level = math.Max(level-1, target)
			}
			set(level)
			if !sleep(10*time.Millisecond, stop) {
				return
			}
		}
		up = !up
		pause := time.Duration(100+rand.Intn(1900)) * time.Millisecond
		if !sleep(pause, stop) {
			return
		}
	}
}
