package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/services/systemd"
)

var brokerReady bool

func setupBroker() {
	if !brokerReady {
		services.SetupBroker("cli")
		brokerReady = true
	}
}

// pushConfig concatenates the files and publishes them retained under path.
// Running services pick the update up immediately, and services started
// later replay it from the broker.
func pushConfig(p string, filenames []string) {
	if p != "config" && !strings.HasPrefix(p, "config/") {
		fmt.Println("Path must begin with 'config'")
		return
	}

	// concatenate files together
	data := &bytes.Buffer{}
	for _, filename := range filenames {
		f, err := os.Open(filename)
		if err != nil {
			fmt.Printf("Error opening %s: %s\n", filename, err)
			return
		}
		defer f.Close()
		_, err = io.Copy(data, f)
		if err != nil {
			fmt.Printf("Error reading %s: %s\n", filename, err)
			return
		}

		data.WriteByte('\n')
	}

	fields := pubsub.Fields{
		"config": data.String(),
	}

	ev := pubsub.NewEvent(p, fields)
	ev.SetRetained(true) // config messages are retained
	setupBroker()
	services.Publisher.Emit(ev)
	fmt.Printf("Updated %s (%d bytes)\n", p, data.Len())
}

// pushDefaults publishes ~/.config/noisypi/noisypi.yml and the automata file
// it names.
func pushDefaults() {
	filename := config.ConfigPath("noisypi.yml")
	pushConfig("config", []string{filename})

	cfg, err := config.Open()
	if err != nil {
		fmtFatalf("Error reading %s: %s\n", filename, err)
	}
	if cfg.Noisebox.Automata == "" {
		return
	}
	automata := cfg.Noisebox.Automata
	if !path.IsAbs(automata) {
		automata = config.ConfigPath(automata)
	}
	pushConfig("config/automata", []string{automata})
}

// install pushes the configuration, then renders and installs the systemd
// template unit and starts the configured services.
func install() {
	cfg, err := config.Open()
	if err != nil {
		fmtFatalf("Error reading config: %s\n", err)
	}
	pushDefaults()
	if err := systemd.Install(cfg); err != nil {
		fmtFatalf("Install failed: %s\n", err)
	}
}
