// Service to launch an external script/executable and transmit events on any
// valid data the process emits to stdout. This allows easy integration of
// extra input devices developed in any other language:
//
//	noisypi service script -- ~/noisypi/scripts/distance-sensor.py
package script

import (
	"bufio"
	"log"
	"os"
	"os/exec"

	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/util"
)

// Service script
type Service struct{}

func (self *Service) ID() string {
	return "script"
}

func (self *Service) Run() error {
	// skip to script name and arguments
	args := os.Args
	for i := range args {
		if args[i] == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) == 0 {
		log.Fatalln("Usage: noisypi service script -- <script> [args]")
	}
	name := util.ExpandUser(args[0])
	args = args[1:]

	cmd := exec.Command(name, args...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Fatalln("Couldn't create StdoutPipe:", err)
	}
	err = cmd.Start()
	if err != nil {
		log.Fatalln("Couldn't start:", name, args)
	}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		ev := pubsub.Parse(line, "")
		if ev == nil {
			log.Printf("Ignored: '%s'\n", line)
			continue
		}

		services.Publisher.Emit(ev)
	}

	cmd.Wait()

	return nil
}
