// Service for monitoring the health of the noisebox. Watches a given list of
// devices and service heartbeats, and alerts if an event has not been seen
// within a configurable time period. Also checks configured processes are
// running and configured hosts answer pings.
//
// Alerts go to the configured alert target (eg telegram), and by email when
// configured. Noisy devices can be silenced for a while:
//
//	noisypi watchdog silence heartbeat.gpio 2h
package watchdog

import (
	"fmt"
	"log"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/tatsushid/go-fastping"

	"github.com/noisypi/noisypi/processes"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/util"
)

type WatchdogDevice struct {
	Name        string
	Timeout     time.Duration
	Alerted     bool
	LastAlerted time.Time
	LastEvent   time.Time
	Silenced    time.Time
}

type WatchdogDevices []*WatchdogDevice

func (self WatchdogDevices) Less(i, j int) bool {
	return self[i].LastEvent.Before(self[j].LastEvent)
}

func (self WatchdogDevices) Len() int {
	return len(self)
}

func (self WatchdogDevices) Swap(i, j int) {
	self[i], self[j] = self[j], self[i]
}

var devices map[string]*WatchdogDevice
var repeatInterval, _ = time.ParseDuration("12h")

// missing two heartbeats marks a service as a problem
const heartbeatTimeout = 121 * time.Second
const pingTimeout = 3 * time.Minute

func sendAlert(name, state string, since time.Time) {
	log.Printf("Sending %s watchdog alert for: %s\n", state, name)
	duration := time.Now().Sub(since)
	message := fmt.Sprintf("%s: %s since %s (%s ago)", state, name, since.Local().Format(time.Stamp), util.ShortDuration(duration))

	if target := services.Config.Watchdog.Alert; target != "" {
		services.SendAlert(message, target, "", 0)
	}

	email := services.Config.General.Email
	if email.Server == "" || email.Admin == "" {
		return
	}
	to := []string{email.Admin}
	msg := fmt.Sprintf("Subject: %s: %s\n\n%s\n", state, name, message)
	err := smtp.SendMail(email.Server, nil, email.From, to, []byte(msg))
	if err != nil {
		log.Println("Error sending email:", err)
	}
}

func checkEvent(ev *pubsub.Event) {
	// check if in devices monitored
	device := services.Config.LookupDeviceName(ev)
	touch(device, ev.Timestamp)
}

func touch(device string, timestamp time.Time) {
	w := devices[device]
	if w == nil {
		return
	}
	if !timestamp.After(w.LastEvent) {
		// stale, eg a retained heartbeat replayed on connect
		return
	}
	w.LastEvent = timestamp

	// recovered?
	if w.Alerted {
		w.Alerted = false
		sendAlert(w.Name, "RECOVERED", w.LastEvent)
	}
}

func checkTimeouts() {
	var timeouts []string
	var lastEvent time.Time
	now := time.Now()
	for _, w := range devices {
		if w.Silenced.After(now) {
			continue
		}
		if w.Alerted {
			// check if should repeat
			if time.Since(w.LastAlerted) > repeatInterval {
				timeouts = append(timeouts, w.Name)
				lastEvent = w.LastEvent
				w.LastAlerted = now
			}
		} else if time.Since(w.LastEvent) > w.Timeout {
			// first alert
			timeouts = append(timeouts, w.Name)
			lastEvent = w.LastEvent
			w.Alerted = true
			w.LastAlerted = now
		}
	}

	// send a single alert for multiple devices
	if len(timeouts) > 0 {
		sort.Strings(timeouts)
		sendAlert(strings.Join(timeouts, ", "), "PROBLEM", lastEvent)
	}
}

func checkProcesses() {
	if len(services.Config.Watchdog.Processes) == 0 {
		return
	}
	running := processes.GetRunning()
	now := time.Now()
	for _, name := range services.Config.Watchdog.Processes {
		if _, ok := running[name]; ok {
			touch("process."+name, now)
		}
	}
}

// ping runs one round of pings, reporting the hosts answering on responses.
func ping(hosts []string, responses chan<- string) {
	p := fastping.NewPinger()
	// unprivileged pings, the watchdog doesn't run as root
	p.Network("udp")
	p.MaxRTT = 5 * time.Second
	addrs := map[string]string{}
	for _, host := range hosts {
		ra, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			log.Printf("Failed to resolve %s: %s", host, err)
			continue
		}
		addrs[ra.String()] = host
		p.AddIPAddr(ra)
	}
	p.OnRecv = func(addr *net.IPAddr, rtt time.Duration) {
		if host, ok := addrs[addr.String()]; ok {
			responses <- host
		}
	}
	err := p.Run()
	if err != nil {
		log.Println("Ping failed:", err)
	}
}

// Service watchdog
type Service struct{}

func (self *Service) ID() string {
	return "watchdog"
}

func (self *Service) setup() {
	devices = map[string]*WatchdogDevice{}
	now := time.Now()
	for device, timeout := range services.Config.Watchdog.Devices {
		duration, err := util.ParseDuration(timeout)
		if err != nil {
			log.Println("Failed to parse:", timeout)
			continue
		}
		name := device
		if conf, ok := services.Config.Devices[device]; ok && conf.Name != "" {
			name = conf.Name
		}
		// give devices a grace period for their first event
		devices[device] = &WatchdogDevice{
			Name:      name,
			Timeout:   duration,
			LastEvent: now,
		}
	}

	// monitor the heartbeats of the systemd managed services
	for _, svc := range services.Config.Systemd.Services {
		device := fmt.Sprintf("heartbeat.%s", svc)
		if _, exists := devices[device]; exists {
			continue
		}
		devices[device] = &WatchdogDevice{
			Name:      fmt.Sprintf("Service %s", svc),
			Timeout:   heartbeatTimeout,
			LastEvent: now,
		}
	}

	for _, name := range services.Config.Watchdog.Processes {
		devices["process."+name] = &WatchdogDevice{
			Name:      fmt.Sprintf("Process %s", name),
			Timeout:   heartbeatTimeout,
			LastEvent: now,
		}
	}

	for _, host := range services.Config.Watchdog.Pings {
		devices["ping."+host] = &WatchdogDevice{
			Name:      fmt.Sprintf("Ping %s", host),
			Timeout:   pingTimeout,
			LastEvent: now,
		}
	}
}

func (self *Service) Run() error {
	self.setup()

	ticker := time.NewTicker(time.Minute)
	responses := make(chan string, 8)
	events := services.Subscriber.Subscribe(pubsub.All())
	for {
		select {
		case ev := <-events:
			checkEvent(ev)
		case host := <-responses:
			touch("ping."+host, time.Now())
		case <-ticker.C:
			checkProcesses()
			if len(services.Config.Watchdog.Pings) > 0 {
				go ping(services.Config.Watchdog.Pings, responses)
			}
			checkTimeouts()
		}
	}
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status":  services.TextHandler(self.queryStatus),
		"silence": services.TextHandler(self.querySilence),
		"help": services.StaticHandler("" +
			"status: get status\n" +
			"silence device [2h | sunday 7pm]: silence alerts for a device\n"),
	}
}

func (self *Service) querySilence(q services.Question) string {
	args := strings.SplitN(q.Args, " ", 2)
	if len(args) == 0 || args[0] == "" {
		return "usage: silence device [duration]"
	}
	now := time.Now()
	until := now.Add(time.Hour)
	if len(args) > 1 {
		// a duration (2h) or a relative time point (sunday 7pm)
		var err error
		until, err = util.ParseRelative(now, args[1])
		if err != nil {
			return fmt.Sprintf("Couldn't parse %s", args[1])
		}
	}

	var matches []string
	for key := range devices {
		if strings.Contains(key, args[0]) {
			matches = append(matches, key)
		}
	}
	if len(matches) == 0 {
		return fmt.Sprintf("device %s not found", args[0])
	}
	if len(matches) > 1 {
		sort.Strings(matches)
		return fmt.Sprintf("device %s is ambiguous", strings.Join(matches, ", "))
	}
	w := devices[matches[0]]
	w.Silenced = until
	return fmt.Sprintf("Silenced %s for %s", matches[0], util.FriendlyDuration(until.Sub(now)))
}

func (self *Service) queryStatus(q services.Question) string {
	var out string
	var list WatchdogDevices
	for _, device := range devices {
		list = append(list, device)
	}
	// return oldest last
	sort.Sort(sort.Reverse(list))

	now := time.Now()
	for _, w := range list {
		problem := ""
		if w.Alerted {
			problem = "PROBLEM"
		}
		if w.Silenced.After(now) {
			problem += " (silenced)"
		}
		ago := util.ShortDuration(now.Sub(w.LastEvent))
		out += fmt.Sprintf("- %-6s %s %s\n", ago, w.Name, problem)
	}
	return out
}
