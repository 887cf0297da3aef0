package noisebox

// ExampleAutomataYaml is the stock noisebox behaviour, matching the devices
// in config.ExampleYaml.
var ExampleAutomataYaml = `
noisebox.power:
  start: Up
  states:
    Up: {}
  transitions:
    Up:
    - when: device=='button.power' && command=='held'
      actions:
      - Log("power held, shutting down")
      - Alert("Noisebox powering off", "telegram")
      - Poweroff()

noisebox.lightsaber:
  start: Closed
  states:
    Closed:
      entering:
      - LightsaberClose()
    Open:
      entering:
      - LightsaberOpen()
  transitions:
    Closed->Open:
    - when: device=='button.lightsaber' && command=='on'
    Open->Closed:
    - when: device=='button.lightsaber' && command=='off'

noisebox.blinky:
  start: Idle
  states:
    Idle:
      entering:
      - BlinkyStop()
    Blinking:
      entering:
      - BlinkyStart()
  transitions:
    Idle->Blinking:
    - when: device=='button.blinky' && command=='on'
    Blinking->Idle:
    - when: device=='button.blinky' && command=='off'

noisebox.r2d2:
  start: Ready
  states:
    Ready: {}
  transitions:
    Ready:
    - when: device=='button.r2d2' && command=='on'
      actions:
      - Scream()

noisebox.blaster:
  start: Ready
  states:
    Ready: {}
  transitions:
    Ready:
    - when: device=='button.blaster' && command=='on'
      actions:
      - Blaster()

noisebox.disco:
  start: Quiet
  states:
    Quiet:
      entering:
      - DiscoStop()
    Party:
      entering:
      - DiscoStart()
  transitions:
    Quiet->Party:
    - when: device=='button.disco' && command=='on'
    Party->Quiet:
    - when: device=='button.disco' && command=='off'
`
