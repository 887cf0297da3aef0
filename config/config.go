package config

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/util"
)

type DeviceConf struct {
	Id       string          `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Group    string          `json:"group,omitempty"`
	Location string          `json:"location,omitempty"`
	Source   string          `json:"source"`
	Caps     []string        `json:"caps"`
	Aliases  []string        `json:"aliases"`
	Hold     *Duration       `json:"hold,omitempty"`
	Cap      map[string]bool `json:"-"`
}

type EndpointsConf struct {
	Mqtt struct {
		Broker string
	}
	Api string
}

type ProcessConf struct {
	Cmd  string
	Path string
}

type AudioConf struct {
	Player string
	Args   string
	Path   string
	Sounds map[string]string
}

type GpioConf struct {
	Poll *Duration
}

type NoiseboxConf struct {
	Automata string
}

type SystemdConf struct {
	User              bool
	Working_Directory string
	Restart_Sec       *Duration
	Runtime_Directory string
	Watchdog_Sec      *Duration
	Services          []string
}

type GeneralEmailConf struct {
	Admin  string
	From   string
	Server string
}

type GeneralConf struct {
	Email   GeneralEmailConf
	Scripts string
}

type TelegramConf struct {
	Token   string
	Chat_id int64
}

type WatchdogConf struct {
	Alert     string
	Devices   map[string]string
	Processes []string
	Pings     []string
}

type HwmonConf struct {
	Interval *Duration
}

type Duration struct {
	Duration time.Duration
}

func (self *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}
	if val, err := time.ParseDuration(value); err == nil {
		self.Duration = val
		return nil
	}
	// longer units: d, w, y
	val, err := util.ParseDuration(value)
	if err != nil {
		return err
	}
	self.Duration = val
	return nil
}

func (self Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(self.Duration.String())
}

// Configuration structure
type Config struct {
	// yaml fields
	Devices   map[string]DeviceConf
	Endpoints EndpointsConf
	Processes map[string]ProcessConf
	Audio     AudioConf
	Gpio      GpioConf
	Noisebox  NoiseboxConf
	Systemd   SystemdConf
	General   GeneralConf
	Telegram  TelegramConf
	Watchdog  WatchdogConf
	Hwmon     HwmonConf

	sources map[string]string
}

// Open configuration from disk.
func Open() (*Config, error) {
	file, err := os.Open(ConfigPath("noisypi.yml"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return OpenReader(file)
}

// Open configuration from a reader.
func OpenReader(r io.Reader) (*Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return OpenRaw(data)
}

// Open configuration from []byte.
func OpenRaw(data []byte) (*Config, error) {
	self := &Config{}
	err := yaml.Unmarshal(data, self)
	if err != nil {
		return nil, err
	}

	self.sources = map[string]string{}
	for id, device := range self.Devices {
		device.Id = id
		if len(device.Caps) == 0 {
			major := strings.Split(id, ".")[0]
			device.Caps = []string{major}
		}
		device.Type = device.Caps[0]
		device.Cap = map[string]bool{}
		for _, c := range device.Caps {
			device.Cap[c] = true
		}
		self.Devices[id] = device
		if device.Source != "" {
			self.sources[device.Source] = id
		}
	}

	return self, nil
}

// Must panics on configuration errors.
func Must(config *Config, err error) *Config {
	if err != nil {
		panic(err)
	}
	return config
}

// IsSwitchable for devices accepting on/off commands.
func (self *DeviceConf) IsSwitchable() bool {
	return self.Cap["led"] || self.Cap["switch"]
}

// LookupSource finds the device named by a source (eg "gpio.26"), or "".
func (self *Config) LookupSource(source string) string {
	return self.sources[source]
}

// LookupDeviceName resolves an event to a device name, falling back to the
// source itself for unconfigured devices.
func (self *Config) LookupDeviceName(ev *pubsub.Event) string {
	if device := ev.Device(); device != "" {
		return device
	}
	source := ev.Source()
	if device, ok := self.sources[source]; ok {
		return device
	}
	return source
}

func (self *Config) AddDeviceToEvent(ev *pubsub.Event) {
	if device := self.LookupDeviceName(ev); device != "" {
		ev.SetField("device", device)
	}
}

// LookupDeviceProtocol finds the protocol identifier for a device, eg the pin
// number of a gpio device.
func (self *Config) LookupDeviceProtocol(device string, protocol string) (string, bool) {
	if d, ok := self.Devices[device]; ok {
		prefix := protocol + "."
		if strings.HasPrefix(d.Source, prefix) {
			return d.Source[len(prefix):], true
		}
	}
	return "", false
}

// DevicesByProtocol returns the devices sourced from the given protocol.
func (self *Config) DevicesByProtocol(protocol string) []DeviceConf {
	var ret []DeviceConf
	prefix := protocol + "."
	for _, device := range self.Devices {
		if strings.HasPrefix(device.Source, prefix) {
			ret = append(ret, device)
		}
	}
	return ret
}

// helpers

// Resolve a configuration file under .config/noisypi
func ConfigPath(p string) string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		config = path.Join(os.Getenv("HOME"), ".config")
	}
	return path.Join(config, "noisypi", p)
}

// Get path to a log file
func LogPath(p string) string {
	return path.Join(util.ExpandUser("~/noisypi/log"), p)
}
