package telegram

import (
	"fmt"

	"github.com/noisypi/noisypi/services"
)

func ExampleInterfaces() {
	var _ services.Service = (*Service)(nil)
	// Output:
}

func ExampleRewriteTelegramCommands() {
	fmt.Println(rewriteTelegramCommands("/noisebox_status"))
	fmt.Println(rewriteTelegramCommands("/watchdog_silence heartbeat.gpio 2h"))
	fmt.Println(rewriteTelegramCommands("help"))
	// Output:
	// noisebox/status
	// watchdog/silence heartbeat.gpio 2h
	// help
}
