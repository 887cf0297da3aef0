// Service for launching and supervising the noisypi services through systemd.
//
// Renders and installs the noisypi@.service template unit, so each service
// runs as an instance (noisypi@gpio, noisypi@noisebox, ...) that systemd
// restarts after a fixed delay if it crashes, indefinitely.
//
// See the noisypi command line utility for controlling this.
package systemd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"os/exec"
	"path"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	"github.com/pkg/errors"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/util"
)

// Service systemd
type Service struct{}

// ID of the service
func (self *Service) ID() string {
	return "systemd"
}

func (self *Service) Run() error {
	// tail logs and retransmit under topic: log
	journalTailer(services.Config.Systemd.User)
	return nil
}

func journalTailer(user bool) {
	args := []string{"-f", "-n0", "-q", "--output=json"}
	if user {
		args = append(args, "--user-unit=noisypi@*.service")
	} else {
		args = append(args, "-u", "noisypi@*.service")
	}
	cmd := exec.Command("journalctl", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		var data map[string]interface{}
		err := json.Unmarshal([]byte(scanner.Text()), &data)
		if err != nil {
			log.Println("Error decoding json:", err)
			continue
		}

		if message, ok := data["MESSAGE"].(string); ok {
			var source string
			if unitName, ok := unitField(data); ok {
				source = stripUnitName(unitName)
			} else {
				source = "systemd"
			}
			fields := map[string]interface{}{
				"message": message,
				"source":  source,
			}
			ev := pubsub.NewEvent("log", fields)
			services.Publisher.Emit(ev)
		}
	}
}

func unitField(data map[string]interface{}) (string, bool) {
	if s, ok := data["_SYSTEMD_USER_UNIT"].(string); ok {
		return s, true
	}
	if s, ok := data["_SYSTEMD_UNIT"].(string); ok {
		return s, true
	}
	return "", false
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"ps":      services.TextHandler(self.queryStatus),
		"status":  services.TextHandler(self.queryStatus),
		"start":   services.TextHandler(self.queryStartStopRestart),
		"stop":    services.TextHandler(self.queryStartStopRestart),
		"restart": services.TextHandler(self.queryStartStopRestart),
		"install": services.TextHandler(self.queryInstall),
		"help": services.StaticHandler("" +
			"status: get status\n" +
			"ps: alias for 'status'\n" +
			"start service: start a service\n" +
			"stop service: stop a service\n" +
			"restart service: restart a service\n" +
			"install: install the template unit and enable services\n"),
	}
}

func systemctl(user bool, first string, args ...string) string {
	cmdarg := append([]string{first}, args...)
	if user {
		cmdarg = append([]string{"--user"}, cmdarg...)
	}
	cmd := exec.Command("systemctl", cmdarg...)
	out, _ := cmd.CombinedOutput()
	return string(out)
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

type ByStatus []UnitStatus

func (a ByStatus) Len() int {
	return len(a)
}

func (a ByStatus) Swap(i, j int) {
	a[i], a[j] = a[j], a[i]
}

func (a ByStatus) Less(i, j int) bool {
	x := strings.Compare(a[i].Status, a[j].Status)
	y := strings.Compare(a[i].Process, a[j].Process)
	return (x == 0 && y < 0) || (x != 0 && x > 0)
}

func (self *Service) queryStatus(q services.Question) string {
	host, _ := os.Hostname()
	table := [][]string{
		{"Process", "Host", "Status", "PID", "Started"},
	}
	units := getStatus(services.Config.Systemd.User)
	sort.Sort(ByStatus(units))
	for _, unit := range units {
		table = append(table, []string{unit.Process, host, unit.Status, unit.MainPid, unit.Started})
	}
	return writeTable(table)
}

type UnitStatus struct {
	Process string
	Status  string
	MainPid string
	Started string
}

func parseShowOutput(reader io.Reader) []UnitStatus {
	scanner := bufio.NewScanner(reader)
	results := []UnitStatus{}
	current := UnitStatus{}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			results = append(results, current)
			current = UnitStatus{}
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "Id":
			current.Process = stripUnitName(parts[1])
		case "MainPID":
			if parts[1] == "0" {
				parts[1] = ""
			}
			current.MainPid = parts[1]
		case "ActiveState":
			if parts[1] == "active" {
				parts[1] = "running"
			}
			current.Status = parts[1]
		case "ExecMainStartTimestamp":
			current.Started = parts[1]
		}
	}
	if current.Process != "" {
		results = append(results, current)
	}
	return results
}

func getStatus(user bool) []UnitStatus {
	args := []string{"show", "--property=Id,MainPID,ActiveState,ExecMainStartTimestamp", "noisypi@*"}
	if user {
		args = append([]string{"--user"}, args...)
	}
	cmd := exec.Command("systemctl", args...)
	stdout, err := cmd.StdoutPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		log.Println(err)
		return []UnitStatus{}
	}
	return parseShowOutput(stdout)
}

func stripUnitName(s string) string {
	return strings.Replace(
		strings.Replace(s, "noisypi@", "", 1),
		".service", "", 1)
}

func (self *Service) queryStartStopRestart(q services.Question) string {
	args := strings.Split(q.Args, " ")
	if len(args) == 0 {
		return "Expected a service argument"
	}

	units := getStatus(services.Config.Systemd.User)
	names := map[string]bool{}
	for _, unit := range units {
		names[unit.Process] = true
	}

	pnames := []string{}
	fnames := []string{}
	for _, n := range args {
		// ignore any units not directed to us
		if _, ok := names[n]; ok {
			pnames = append(pnames, "noisypi@"+n+".service")
			fnames = append(fnames, n)
		}
	}
	if len(pnames) == 0 {
		// no units
		return ""
	}
	systemctl(services.Config.Systemd.User, q.Verb, pnames...)
	return fmt.Sprintf("%sed %s", q.Verb, strings.Join(fnames, ", "))
}

func (self *Service) queryInstall(q services.Question) string {
	err := Install(services.Config)
	if err != nil {
		return fmt.Sprint("Install failed: ", err)
	}
	return fmt.Sprint("Installed and enabled: ", strings.Join(services.Config.Systemd.Services, ", "))
}

func restartSec(conf config.SystemdConf) string {
	if conf.Restart_Sec == nil {
		return "5s"
	}
	return fmt.Sprintf("%ds", int(conf.Restart_Sec.Duration.Seconds()))
}

// Render the noisypi@.service template unit.
func Render(cfg *config.Config) ([]byte, error) {
	conf := cfg.Systemd
	executable, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "locating executable")
	}

	runtimeDir := conf.Runtime_Directory
	if runtimeDir == "" {
		runtimeDir = "noisypi"
	}
	target := "multi-user.target"
	if conf.User {
		target = "default.target"
	}

	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "noisypi %i service"),
		unit.NewUnitOption("Unit", "After", "network.target"),
		// restart indefinitely, never hit the start rate limit
		unit.NewUnitOption("Unit", "StartLimitIntervalSec", "0"),
		unit.NewUnitOption("Service", "Type", "simple"),
	}
	if conf.Working_Directory != "" {
		opts = append(opts, unit.NewUnitOption("Service", "WorkingDirectory", conf.Working_Directory))
	}
	opts = append(opts,
		unit.NewUnitOption("Service", "ExecStart", executable+" service %i"),
		unit.NewUnitOption("Service", "Restart", "always"),
		unit.NewUnitOption("Service", "RestartSec", restartSec(conf)),
		unit.NewUnitOption("Service", "PIDFile", "%t/"+runtimeDir+"/%i.pid"),
		unit.NewUnitOption("Service", "RuntimeDirectory", runtimeDir),
	)
	if conf.Watchdog_Sec != nil {
		opts = append(opts,
			unit.NewUnitOption("Service", "WatchdogSec", fmt.Sprintf("%ds", int(conf.Watchdog_Sec.Duration.Seconds()))),
			unit.NewUnitOption("Service", "NotifyAccess", "main"),
		)
	}
	if cfg.Endpoints.Mqtt.Broker != "" {
		opts = append(opts, unit.NewUnitOption("Service", "Environment", "NOISYPI_MQTT="+cfg.Endpoints.Mqtt.Broker))
	}
	opts = append(opts, unit.NewUnitOption("Install", "WantedBy", target))

	return ioutil.ReadAll(unit.Serialize(opts))
}

// UnitPath the template unit is installed to.
func UnitPath(cfg *config.Config) string {
	if cfg.Systemd.User {
		return util.ExpandUser("~/.config/systemd/user/noisypi@.service")
	}
	return "/etc/systemd/system/noisypi@.service"
}

// Install writes the template unit, reloads systemd and enables + starts the
// configured services.
func Install(cfg *config.Config) error {
	data, err := Render(cfg)
	if err != nil {
		return err
	}
	unitPath := UnitPath(cfg)
	if err := os.MkdirAll(path.Dir(unitPath), 0755); err != nil {
		return errors.Wrap(err, "writing unit")
	}
	if err := ioutil.WriteFile(unitPath, data, 0644); err != nil {
		return errors.Wrap(err, "writing unit")
	}
	log.Println("Wrote", unitPath)

	user := cfg.Systemd.User
	systemctl(user, "daemon-reload")
	if len(cfg.Systemd.Services) == 0 {
		return nil
	}
	var units []string
	for _, name := range cfg.Systemd.Services {
		units = append(units, "noisypi@"+name+".service")
	}
	systemctl(user, "enable", units...)
	systemctl(user, "start", units...)
	return nil
}
