// Service for launching and restarting external processes. Like systemd, but
// simpler - used for the helper processes (mqtt broker, testers) that aren't
// noisypi services themselves.
//
// See the noisypi command line utility for controlling this.
package daemon

import (
	"fmt"
	"sort"
	"time"

	"github.com/noisypi/noisypi/processes"
	"github.com/noisypi/noisypi/services"
)

// Service daemon
type Service struct{}

// ID of the service
func (self *Service) ID() string {
	return "daemon"
}

func (self *Service) Run() error {
	delay := time.Duration(0)
	if services.Config.Systemd.Restart_Sec != nil {
		delay = services.Config.Systemd.Restart_Sec.Duration
	}
	processes.Daemon(delay)
	return nil
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": services.TextHandler(self.queryStatus),
		"help":   services.StaticHandler("status: get status\n"),
	}
}

func writeTable(table [][]string) string {
	var out string
	lengths := map[int]int{}
	for _, row := range table {
		for i, value := range row {
			if len(value) > lengths[i] {
				lengths[i] = len(value)
			}
		}
	}

	for _, row := range table {
		for i, value := range row {
			format := fmt.Sprintf("%%-%ds", lengths[i]+1)
			out += fmt.Sprintf(format, value)
		}
		out += "\n"
	}
	return out
}

func allProcesses() []string {
	var ret []string
	for key := range services.Config.Processes {
		ret = append(ret, key)
	}
	return ret
}

func (self *Service) queryStatus(q services.Question) string {
	ps := allProcesses()
	sort.Strings(ps)

	running := processes.GetRunning()
	table := [][]string{
		{"Process", "Status", "PID", "Started"},
	}
	for _, name := range ps {
		pinfo := running[name]
		if pinfo.Pid == 0 {
			table = append(table, []string{name, "stopped", "", ""})
		} else {
			table = append(table, []string{name, "running", fmt.Sprint(pinfo.Pid), pinfo.Started})
		}
	}
	return writeTable(table)
}
