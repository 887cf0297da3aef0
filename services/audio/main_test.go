package audio

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/services"
	"github.com/stretchr/testify/assert"
)

func ExampleInterfaces() {
	var _ services.Service = (*Service)(nil)
	// Output:
}

func ExampleSoundPath() {
	services.Config = config.Must(config.OpenReader(strings.NewReader(`
audio:
  path: /home/pi/noisypi/sounds
  sounds:
    funk: disco-funk.wav`)))
	fmt.Println(soundPath("hum"))
	fmt.Println(soundPath("funk"))
	fmt.Println(soundPath("/tmp/beep.wav"))
	// Output:
	// /home/pi/noisypi/sounds/hum.wav
	// /home/pi/noisypi/sounds/disco-funk.wav
	// /tmp/beep.wav
}

func TestPlayOneShot(t *testing.T) {
	var mu sync.Mutex
	var played []string
	player := &Player{Command: func(file string) *exec.Cmd {
		mu.Lock()
		played = append(played, file)
		mu.Unlock()
		return exec.Command("true")
	}}
	player.Play("blaster.wav")
	player.Play("scream.wav")
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"blaster.wav", "scream.wav"}, played)
}

func TestMusicReplaces(t *testing.T) {
	var mu sync.Mutex
	var started []string
	player := &Player{Command: func(file string) *exec.Cmd {
		mu.Lock()
		started = append(started, file)
		mu.Unlock()
		return exec.Command("sleep", "60")
	}}
	player.Music("hum.wav")
	time.Sleep(50 * time.Millisecond)
	player.Music("funk.wav")
	time.Sleep(50 * time.Millisecond)
	player.StopMusic()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hum.wav", "funk.wav"}, started)
}

func TestStopAll(t *testing.T) {
	player := &Player{Command: func(file string) *exec.Cmd {
		return exec.Command("sleep", "60")
	}}
	player.Play("blaster.wav")
	player.Music("hum.wav")
	time.Sleep(50 * time.Millisecond)
	player.StopAll()
	time.Sleep(50 * time.Millisecond)

	player.mu.Lock()
	defer player.mu.Unlock()
	assert.Empty(t, player.oneshots)
	assert.Nil(t, player.music)
}

func TestStopMusicIdle(t *testing.T) {
	player := &Player{}
	player.StopMusic()
	player.StopAll()
}
