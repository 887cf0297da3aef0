// The noisypi noise box system
//
// A Raspberry Pi wired into a wooden box of buttons, switches and leds that
// makes Star Wars noises. This repository is everything the box runs:
//
// - gpio service reading the buttons and driving the leds (fade, glow,
// blink, flash)
//
// - noisebox service running the behaviour state machines (lightsaber,
// blaster, blinky, disco, power button)
//
// - audio service playing the samples and music through aplay
//
// - MQTT event bus between the services (run them on one Pi or several
// machines)
//
// - systemd service installing and supervising the lot, restarting anything
// that crashes
//
// - watchdog and hwmon services alerting when something wedges or overheats
//
// - REST API and telegram bot for poking it remotely
//
// - a terminal tester standing in for the hardware on a desk
//
// See README.md for the deployment walkthrough.
package noisypi
