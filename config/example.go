package config

import "strings"

var ExampleYaml = `
devices:
  button.power:
    name: Power button
    source: gpio.3
    hold: 3s
  button.lightsaber:
    name: Lightsaber button
    source: gpio.26
  button.blinky:
    name: Blinky button
    source: gpio.27
  button.r2d2:
    name: R2D2 button
    source: gpio.6
  button.blaster:
    name: Blaster button
    source: gpio.13
  button.disco:
    name: Disco button
    source: gpio.23
  led.lightsaber1:
    name: Lightsaber blade 1
    source: gpio.21
    caps: [led, pwm]
  led.lightsaber2:
    name: Lightsaber blade 2
    source: gpio.4
    caps: [led, pwm]
  led.lightsaber3:
    name: Lightsaber blade 3
    source: gpio.17
    caps: [led, pwm]
  led.blinky1:
    name: Blinky 1
    source: gpio.22
  led.blinky2:
    name: Blinky 2
    source: gpio.5
  led.blaster:
    name: Blaster barrel
    source: gpio.19
  led.disco:
    name: Disco ball
    source: gpio.18
    caps: [led, pwm]
endpoints:
  mqtt:
    broker: tcp://127.0.0.1:1883
  api: :8723
processes:
  mosquitto:
    cmd: /usr/sbin/mosquitto -c /etc/mosquitto/mosquitto.conf
audio:
  player: aplay
  path: ~/noisypi/sounds
gpio:
  poll: 20ms
noisebox:
  automata: noisebox.yml
systemd:
  user: true
  working_directory: /home/pi/noisypi
  restart_sec: 5s
  runtime_directory: noisypi
  watchdog_sec: 60s
  services: [gpio, audio, noisebox]
general:
  email:
    admin: admin@example.com
    from: pi@example.com
    server: localhost:25
  scripts: ~/noisypi/scripts
telegram:
  token: 123456:ABCDEF
  chat_id: 100001
watchdog:
  alert: telegram
  devices:
    heartbeat.gpio: 2m
    heartbeat.audio: 2m
    heartbeat.noisebox: 2m
  processes: [mosquitto]
  pings: [gateway.local]
hwmon:
  interval: 1m`

var ExampleConfig = Must(OpenReader(strings.NewReader(ExampleYaml)))
