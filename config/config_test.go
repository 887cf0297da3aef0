package config

import (
	"fmt"
	"sort"

	"github.com/noisypi/noisypi/pubsub"
)

var yml = `
devices:
  button.one:
    source: gpio.26
    hold: 3s
general:
  email:
    admin:
      test@example.com
`

func ExampleOpenRaw() {
	config, _ := OpenRaw([]byte(yml))
	fmt.Println(config.General.Email.Admin)
	// Output:
	// test@example.com
}

func Example_lookupDeviceName() {
	config, _ := OpenRaw([]byte(yml))
	fields := pubsub.Fields{"source": "gpio.26"}
	ev := pubsub.NewEvent("gpio", fields)
	fmt.Println(config.LookupDeviceName(ev))
	// Output:
	// button.one
}

func Example_lookupDeviceNameMissing() {
	config, _ := OpenRaw([]byte(yml))
	fields := pubsub.Fields{"source": "gpio.13"}
	ev := pubsub.NewEvent("gpio", fields)
	fmt.Println(config.LookupDeviceName(ev))
	// Output:
	// gpio.13
}

func Example_deviceCaps() {
	config, _ := OpenRaw([]byte(yml))
	device := config.Devices["button.one"]
	fmt.Println(device.Type, device.Cap["button"], device.Hold.Duration)
	// Output:
	// button true 3s
}

func Example_devicesByProtocol() {
	var names []string
	for _, device := range ExampleConfig.DevicesByProtocol("gpio") {
		names = append(names, device.Id)
	}
	sort.Strings(names)
	fmt.Println(len(names), names[0])
	// Output:
	// 13 button.blaster
}
