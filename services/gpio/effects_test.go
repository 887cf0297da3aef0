package gpio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlash(t *testing.T) {
	var levels []float64
	set := func(level float64) {
		levels = append(levels, level)
	}
	flash(set, 2, time.Millisecond, make(chan struct{}))
	assert.Equal(t, []float64{100, 0, 100, 0}, levels)
}

func TestFade(t *testing.T) {
	var levels []float64
	set := func(level float64) {
		levels = append(levels, level)
	}
	fade(set, 0, 100, 10*time.Millisecond, make(chan struct{}))
	assert.Len(t, levels, fadeSteps)
	assert.Equal(t, float64(1), levels[0])
	assert.Equal(t, float64(100), levels[len(levels)-1])
}

func TestFadeDown(t *testing.T) {
	var levels []float64
	set := func(level float64) {
		levels = append(levels, level)
	}
	fade(set, 100, 0, 10*time.Millisecond, make(chan struct{}))
	assert.Equal(t, float64(99), levels[0])
	assert.Equal(t, float64(0), levels[len(levels)-1])
}

func TestBlinkStops(t *testing.T) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		blink(func(float64) {}, time.Millisecond, stop)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blink did not stop")
	}
}

func TestGlowBounds(t *testing.T) {
	var levels []float64
	set := func(level float64) {
		levels = append(levels, level)
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		glow(set, 80, 100, stop)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	close(stop)
	<-done
	assert.NotEmpty(t, levels)
	for _, level := range levels {
		assert.True(t, level >= 80 && level <= 100, "level out of range: %f", level)
	}
}

func TestOutputCancelsEffect(t *testing.T) {
	pin := &fakePin{}
	out := NewOutput(pin)
	out.Blink(time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	// a new command cancels the blinking
	out.Off()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, float64(0), out.pwm.Level())
}

func TestPWMSetClamps(t *testing.T) {
	pin := &fakePin{}
	pwm := NewPWM(pin)
	defer pwm.Close()
	pwm.Set(150)
	assert.Equal(t, float64(100), pwm.Level())
	pwm.Set(-10)
	assert.Equal(t, float64(0), pwm.Level())
}
