package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/pubsub/dummy"
	"github.com/noisypi/noisypi/services"

	"github.com/stretchr/testify/assert"
)

var testYaml = `
devices:
  button.power:
    name: Power button
    source: gpio.3
    hold: 3s
  led.blaster:
    name: Blaster barrel
    source: gpio.19
`

func init() {
	services.Config = config.Must(config.OpenReader(strings.NewReader(testYaml)))
}

func Example_interfaces() {
	var _ services.Service = (*Service)(nil)
	// Output:
}

func ExampleIndex() {
	rec := httptest.NewRecorder()
	r := http.Request{}
	apiIndex(rec, &r)
	fmt.Println(rec.Body)
	// Output:
	// <html>Noisypi is listening</html>
}

func Example_devices() {
	services.Stor = services.NewMockStore()
	rec := httptest.NewRecorder()
	r := http.Request{}
	apiDevices(rec, &r)
	fmt.Println(rec.Body)
	// Output:
	// {"button.power":{"aliases":null,"caps":["button"],"events":{},"hold":"3s","id":"button.power","name":"Power button","source":"gpio.3","type":"button"},"led.blaster":{"aliases":null,"caps":["led"],"events":{},"id":"led.blaster","name":"Blaster barrel","source":"gpio.19","type":"led"}}
}

func ExampleDevicesSingle() {
	store := services.NewMockStore()
	store.Set("noisypi/state/devices/led.blaster/gpio",
		`{"topic":"gpio","timestamp":"2023-05-01 12:00:00.000","source":"gpio.19","device":"led.blaster","command":"on"}`)
	services.Stor = store
	rec := httptest.NewRecorder()
	r := http.Request{}
	apiDevicesSingle(rec, &r, map[string]string{"device": "led.blaster"})
	fmt.Println(rec.Body)
	// Output:
	// {"aliases":null,"caps":["led"],"events":{"gpio":{"command":"on","device":"led.blaster","source":"gpio.19","timestamp":"2023-05-01 12:00:00.000","topic":"gpio"}},"id":"led.blaster","name":"Blaster barrel","source":"gpio.19","type":"led"}
}

func ExampleDevicesSingleNotFound() {
	services.Stor = services.NewMockStore()
	rec := httptest.NewRecorder()
	r := http.Request{}
	apiDevicesSingle(rec, &r, map[string]string{"device": "abc"})
	fmt.Println(rec.Body)
	// Output:
	// not found: abc
}

func ExampleDevicesControl() {
	me := dummy.Publisher{}
	services.Publisher = &me
	rec := httptest.NewRecorder()
	uri, _ := url.Parse("http://example.com/devices/control?id=led.blaster&control=1")
	r := http.Request{
		URL: uri,
	}
	apiDevicesControl(rec, &r)
	fmt.Println(rec.Body)
	fmt.Println(me.Events[0].Topic, me.Events[0].Command())
	// Output:
	// true
	// command/led.blaster on
}

func TestConfigGet(t *testing.T) {
	store := services.NewMockStore()
	store.Set("noisypi/config", "devices:\n")
	services.Stor = store

	r := httptest.NewRequest("GET", "http://example.com/config?path=noisypi/config", nil)
	rec := httptest.NewRecorder()
	apiConfig(rec, r)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "devices:\n", rec.Body.String())

	r = httptest.NewRequest("GET", "http://example.com/config", nil)
	rec = httptest.NewRecorder()
	apiConfig(rec, r)
	assert.Equal(t, 500, rec.Code)
}

func TestConfigPost(t *testing.T) {
	store := services.NewMockStore()
	services.Stor = store
	me := dummy.Publisher{}
	services.Publisher = &me

	body := strings.NewReader("noisebox.power:\n  start: Up\n")
	r := httptest.NewRequest("POST", "http://example.com/config?path=noisypi/config/automata", body)
	rec := httptest.NewRecorder()
	apiConfig(rec, r)

	value, err := store.Get("noisypi/config/automata")
	assert.NoError(t, err)
	assert.Contains(t, value, "noisebox.power")
	if assert.Len(t, me.Events, 1) {
		ev := me.Events[0]
		assert.Equal(t, "config/automata", ev.Topic)
		assert.True(t, ev.Retained)
		assert.Equal(t, value, ev.StringField("config"))
	}
}

func TestRecordEvents(t *testing.T) {
	store := services.NewMockStore()
	services.Stor = store
	sub := dummy.Subscriber{Events: []*pubsub.Event{
		pubsub.NewEvent("gpio", pubsub.Fields{"source": "gpio.19", "command": "on"}),
		pubsub.NewEvent("config/automata", pubsub.Fields{"config": "noisebox.power:\n"}),
	}}
	services.Subscriber = &sub
	recordEvents()

	value, err := store.Get("noisypi/state/devices/led.blaster/gpio")
	assert.NoError(t, err)
	assert.Contains(t, value, `"command":"on"`)

	value, err = store.Get("noisypi/config/automata")
	assert.NoError(t, err)
	assert.Equal(t, "noisebox.power:\n", value)
}
