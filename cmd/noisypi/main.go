package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/processes"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/services/api"
	"github.com/noisypi/noisypi/services/audio"
	"github.com/noisypi/noisypi/services/daemon"
	"github.com/noisypi/noisypi/services/gpio"
	"github.com/noisypi/noisypi/services/hwmon"
	"github.com/noisypi/noisypi/services/noisebox"
	"github.com/noisypi/noisypi/services/script"
	"github.com/noisypi/noisypi/services/sender"
	"github.com/noisypi/noisypi/services/systemd"
	"github.com/noisypi/noisypi/services/telegram"
	"github.com/noisypi/noisypi/services/watchdog"
	"github.com/noisypi/noisypi/util"
)

func registerServices() {
	// register available services
	services.Register(&api.Service{})
	services.Register(&audio.Service{})
	services.Register(&daemon.Service{})
	services.Register(&gpio.Service{})
	services.Register(&hwmon.Service{})
	services.Register(&noisebox.Service{})
	services.Register(&script.Service{})
	services.Register(&sender.Service{})
	services.Register(&systemd.Service{})
	services.Register(&telegram.Service{})
	services.Register(&watchdog.Service{})
}

func usage() {
	fmt.Println("Usage: noisypi COMMAND [SERVICE/ARGS]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("   config  [path file..]     Push configuration (default: noisypi.yml and automata)")
	fmt.Println("   install                   Install the systemd units and start the services")
	fmt.Println("   logs                      Tail logs")
	fmt.Println("   ps                        List running services")
	fmt.Println("   query   ...               Query services")
	fmt.Println("   restart [service]         Restart a service")
	fmt.Println("   rotate  [process..]       Rotate process logs")
	fmt.Println("   service [service..]       Run services in the foreground")
	fmt.Println("   start   [service]         Start a service")
	fmt.Println("   status  [service]         Get service status")
	fmt.Println("   stop    [service]         Stop a service")
	fmt.Println("   switch  device on|off     Switch a device")
	fmt.Println("   trigger device command [field=value..]  Inject a synthetic gpio event")
	fmt.Println()
}

var emptyParams = url.Values{}

func main() {
	log.SetOutput(os.Stdout)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	ps := []string{}
	if flag.NArg() > 1 {
		ps = flag.Args()[1:]
	}
	// ignore anything after '--'
	for i := range ps {
		if ps[i] == "--" {
			ps = ps[0:i]
			break
		}
	}

	services.SetupLogging()
	defer services.Shutdown()

	command := flag.Args()[0]
	switch command {
	default:
		usage()
	case "config":
		if len(ps) == 0 {
			pushDefaults()
		} else if len(ps) >= 2 {
			pushConfig(ps[0], ps[1:])
		} else {
			usage()
		}
	case "install":
		install()
	case "start":
		query("start", ps, emptyParams)
	case "stop":
		query("stop", ps, emptyParams)
	case "restart":
		query("restart", ps, emptyParams)
	case "rotate":
		// rotation runs locally, so needs the local config
		services.Config = config.Must(config.Open())
		processes.Rotate(ps)
	case "ps":
		query("ps", []string{}, url.Values{"timeout": {"1000"}})
	case "status":
		if len(ps) == 0 {
			// all services
			query("status", []string{}, emptyParams)
		} else {
			// single service
			query(ps[0]+"/status", []string{}, url.Values{"responses": {"1"}})
		}
	case "run", "service":
		service(ps)
	case "switch":
		commandSwitch(ps)
	case "trigger":
		trigger(ps)
	case "query":
		if len(ps) == 0 {
			usage()
			return
		}
		query(ps[0], ps[1:], url.Values{"timeout": {"5000"}, "responses": {"1"}})
	case "logs":
		stream("logs", emptyParams)
	}
}

func commandSwitch(ps []string) {
	if len(ps) < 2 {
		usage()
		return
	}

	control := "0"
	if ps[1] == "on" {
		control = "1"
	}
	params := url.Values{
		"id":      []string{ps[0]},
		"control": []string{control},
	}
	resp, err := request("devices/control", params)
	if err != nil {
		fmtFatalf("error: %s\n", err)
	}
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
}

// trigger emits a gpio event as if the button had been pressed, handy for
// exercising the automata without the hardware.
func trigger(ps []string) {
	if len(ps) < 2 {
		usage()
		return
	}

	setupBroker()
	command, fields := util.ParseArgs(ps[1:])
	fields["device"] = ps[0]
	fields["command"] = command
	ev := pubsub.NewEvent("gpio", fields)
	services.Publisher.Emit(ev)
	fmt.Printf("Sent %s %s\n", ps[0], command)
}

// Start builtin services
func service(ss []string) {
	if len(ss) == 0 {
		fmtFatalf("Usage: noisypi service [service..]\n")
	}
	services.Setup(strings.Join(ss, ","))
	registerServices()
	services.Launch(ss)
}
