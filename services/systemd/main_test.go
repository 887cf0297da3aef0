package systemd

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/services"
)

func ExampleInterfaces() {
	var _ services.Service = (*Service)(nil)
	var _ services.Queryable = (*Service)(nil)
	// Output:
}

func ExampleParseShowOutput() {
	reader := strings.NewReader(`MainPID=0
ExecMainStartTimestamp=Thu 2015-08-27 19:19:13 BST
Id=noisypi@noisebox.service
ActiveState=failed

MainPID=21805
ExecMainStartTimestamp=Thu 2015-08-27 17:36:49 BST
Id=noisypi@gpio.service
ActiveState=active
`)
	ret := parseShowOutput(reader)
	fmt.Printf("%+v\n", ret)
	// Output:
	// [{Process:noisebox Status:failed MainPid: Started:Thu 2015-08-27 19:19:13 BST} {Process:gpio Status:running MainPid:21805 Started:Thu 2015-08-27 17:36:49 BST}]
}

func TestRender(t *testing.T) {
	data, err := Render(config.ExampleConfig)
	assert.NoError(t, err)
	rendered := string(data)
	assert.Contains(t, rendered, "Type=simple")
	assert.Contains(t, rendered, "WorkingDirectory=/home/pi/noisypi")
	assert.Contains(t, rendered, "ExecStart=")
	assert.Contains(t, rendered, "Restart=always")
	assert.Contains(t, rendered, "RestartSec=5s")
	assert.Contains(t, rendered, "PIDFile=%t/noisypi/%i.pid")
	assert.Contains(t, rendered, "RuntimeDirectory=noisypi")
	assert.Contains(t, rendered, "WatchdogSec=60s")
	assert.Contains(t, rendered, "StartLimitIntervalSec=0")
	assert.Contains(t, rendered, "Environment=NOISYPI_MQTT=tcp://127.0.0.1:1883")
	assert.Contains(t, rendered, "WantedBy=default.target")
}

func TestRenderDefaults(t *testing.T) {
	cfg, err := config.OpenRaw([]byte("systemd:\n  user: true"))
	assert.NoError(t, err)
	data, err := Render(cfg)
	assert.NoError(t, err)
	rendered := string(data)
	assert.Contains(t, rendered, "RestartSec=5s")
	assert.NotContains(t, rendered, "WorkingDirectory")
	assert.NotContains(t, rendered, "WatchdogSec")
}
