// Service to play sounds through an external player (aplay by default).
//
// Samples requested with the 'play' command run concurrently as one-shots,
// so overlapping button presses layer their sounds. Music requested with the
// 'music' command is a single looping track - starting new music stops the
// current track first, and 'stop' silences it. 'stopall' kills the music and
// any one-shots still playing.
package audio

import (
	"log"
	"os/exec"
	"path"
	"strings"
	"sync"

	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/util"
)

// Service audio
type Service struct {
	player *Player
}

func (self *Service) ID() string {
	return "audio"
}

// Player runs the external player. One-shots are fire and forget, music is a
// looping track restarted until stopped.
type Player struct {
	// Command builds the player invocation for a sound file, replaceable
	// under test.
	Command func(file string) *exec.Cmd

	mu       sync.Mutex
	stop     chan struct{}
	music    *exec.Cmd
	oneshots map[*exec.Cmd]bool
}

func playerCommand(file string) *exec.Cmd {
	player := services.Config.Audio.Player
	if player == "" {
		player = "aplay"
	}
	var args []string
	if services.Config.Audio.Args != "" {
		args = strings.Split(services.Config.Audio.Args, " ")
	}
	args = append(args, file)
	return exec.Command(player, args...)
}

func (self *Player) command(file string) *exec.Cmd {
	if self.Command != nil {
		return self.Command(file)
	}
	return playerCommand(file)
}

// Play a one-shot sample.
func (self *Player) Play(file string) {
	cmd := self.command(file)
	self.mu.Lock()
	if self.oneshots == nil {
		self.oneshots = map[*exec.Cmd]bool{}
	}
	self.oneshots[cmd] = true
	self.mu.Unlock()
	go func() {
		if err := cmd.Run(); err != nil {
			log.Printf("Error playing %s: %s", file, err)
		}
		self.mu.Lock()
		delete(self.oneshots, cmd)
		self.mu.Unlock()
	}()
}

// Music starts a looping track, replacing any track already playing.
func (self *Player) Music(file string) {
	self.StopMusic()
	self.mu.Lock()
	stop := make(chan struct{})
	self.stop = stop
	self.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			cmd := self.command(file)
			self.mu.Lock()
			self.music = cmd
			self.mu.Unlock()
			if err := cmd.Start(); err != nil {
				log.Printf("Error playing %s: %s", file, err)
				return
			}
			cmd.Wait()
		}
	}()
}

// StopMusic stops the looping track, if any. One-shots play out.
func (self *Player) StopMusic() {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.stop != nil {
		close(self.stop)
		self.stop = nil
	}
	if self.music != nil && self.music.Process != nil {
		self.music.Process.Kill()
		self.music = nil
	}
}

// StopAll silences everything: the looping track and any one-shots still
// playing.
func (self *Player) StopAll() {
	self.StopMusic()
	self.mu.Lock()
	defer self.mu.Unlock()
	for cmd := range self.oneshots {
		// Process is nil for a one-shot that has not started yet
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}
}

// soundPath resolves a sound name to a file. Names can be remapped in
// configuration, otherwise they are wav files under the sounds directory.
func soundPath(name string) string {
	if name == "" {
		return ""
	}
	if file, ok := services.Config.Audio.Sounds[name]; ok {
		name = file
	} else if !strings.Contains(name, ".") {
		name += ".wav"
	}
	if !path.IsAbs(name) {
		name = path.Join(util.ExpandUser(services.Config.Audio.Path), name)
	}
	return name
}

func (self *Service) handleCommand(ev *pubsub.Event) {
	sound := ev.StringField("sound")
	switch ev.Command() {
	case "play":
		if file := soundPath(sound); file != "" {
			log.Println("Playing:", file)
			self.player.Play(file)
		} else {
			log.Println("Ignoring play without sound")
		}
	case "music":
		if file := soundPath(sound); file != "" {
			log.Println("Playing music:", file)
			self.player.Music(file)
		} else {
			log.Println("Ignoring music without sound")
		}
	case "stop":
		log.Println("Stopping music")
		self.player.StopMusic()
	case "stopall":
		log.Println("Stopping all sounds")
		self.player.StopAll()
	}
}

func (self *Service) Run() error {
	self.player = &Player{}
	for ev := range services.Subscriber.Subscribe(pubsub.Exact("audio")) {
		self.handleCommand(ev)
	}
	return nil
}
