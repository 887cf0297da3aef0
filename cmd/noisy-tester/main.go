// noisy-tester is a terminal stand-in for the noisebox hardware, for
// exercising the services on a desk without a Pi. It draws the configured
// devices, injects gpio events when keys are pressed and shows what the
// services are doing to the leds and the speaker.
//
// Point NOISYPI_MQTT at the same broker as the services under test, run
// `noisypi service noisebox` (the audio service too, if the desk has
// speakers) and poke away. With --dummy no broker is needed at all: the
// tester runs on the example configuration and invents its own traffic.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/services"
)

var dummy = flag.Bool("dummy", false, "no broker: run on the example config with invented traffic")

func main() {
	flag.Parse()
	services.SetupLogging()
	if *dummy {
		services.Config = config.ExampleConfig
		setupLoopback()
		go twiddle()
	} else {
		services.SetupBroker("noisy-tester")
		fmt.Println("Waiting for config (push with: noisypi config)")
		services.WaitForConfig()
	}

	// logging would corrupt the display
	log.SetOutput(io.Discard)

	program := tea.NewProgram(newModel(), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	services.Shutdown()
}
