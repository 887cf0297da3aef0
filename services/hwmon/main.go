// Service to track hardware stats of the pi: core temperatures, load
// average, memory and sd card space. Worth keeping an eye on - the noisebox
// lives in a cupboard.
package hwmon

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/c9s/goprocinfo/linux"

	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/util"
)

// Service hwmon
type Service struct{}

// ID of the service
func (self *Service) ID() string {
	return "hwmon"
}

const DefaultInterval = time.Minute

// paths read, variables so tests can point at fakes
var (
	thermalGlob = "/sys/devices/virtual/thermal/thermal_zone?/temp"
	procLoadavg = "/proc/loadavg"
	procMeminfo = "/proc/meminfo"
	diskPath    = "/"
)

var reNumber = regexp.MustCompile(`(\d+)`)

func deviceName(path string) string {
	nums := reNumber.FindAllString(path, -1)
	i, err := strconv.Atoi(nums[len(nums)-1])
	if err != nil {
		log.Fatal(err)
	}

	hostname, _ := os.Hostname()
	return fmt.Sprintf("thermal.%s%d", hostname, i)
}

func readTemp(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var temp float64
	_, err = fmt.Fscanf(f, "%f", &temp)
	if err != nil {
		return 0, err
	}
	return temp / 1000, nil
}

func readTemps(zones map[string]string) {
	for name, path := range zones {
		temp, err := readTemp(path)
		if err != nil {
			log.Printf("error reading %s: %s", path, err)
			continue
		}

		ev := pubsub.NewEvent("temp",
			pubsub.Fields{"temp": temp, "device": name})
		services.Publisher.Emit(ev)
	}
}

func statsFields() pubsub.Fields {
	hostname, _ := os.Hostname()
	fields := pubsub.Fields{"device": "hwmon." + hostname}
	if loadavg, err := linux.ReadLoadAvg(procLoadavg); err == nil {
		fields["load1"] = loadavg.Last1Min
		fields["load5"] = loadavg.Last5Min
		fields["load15"] = loadavg.Last15Min
	} else {
		log.Printf("error reading %s: %s", procLoadavg, err)
	}
	if meminfo, err := linux.ReadMemInfo(procMeminfo); err == nil {
		fields["mem_total"] = meminfo.MemTotal
		fields["mem_available"] = meminfo.MemAvailable
	} else {
		log.Printf("error reading %s: %s", procMeminfo, err)
	}
	if disk, err := linux.ReadDisk(diskPath); err == nil {
		fields["disk_used"] = disk.Used
		fields["disk_free"] = disk.Free
	} else {
		log.Printf("error reading disk %s: %s", diskPath, err)
	}
	return fields
}

func readStats() {
	ev := pubsub.NewEvent("hwmon", statsFields())
	services.Publisher.Emit(ev)
}

func findThermalDevices() (zones map[string]string, err error) {
	zones = map[string]string{}
	matches, err := filepath.Glob(thermalGlob)
	if err != nil {
		return
	}
	for _, match := range matches {
		zones[deviceName(match)] = match
	}
	return
}

func interval() time.Duration {
	if services.Config.Hwmon.Interval != nil {
		return services.Config.Hwmon.Interval.Duration
	}
	return DefaultInterval
}

// Run the service
func (self *Service) Run() error {
	zones, err := findThermalDevices()
	if err != nil {
		return err
	}
	log.Printf("%d thermal zones", len(zones))

	// initial read
	readTemps(zones)
	readStats()
	// samples aligned to the wall clock, so graphs line up across hosts
	ticker := util.NewScheduler(0, interval())
	for range ticker.C {
		readTemps(zones)
		readStats()
	}
	return nil
}
