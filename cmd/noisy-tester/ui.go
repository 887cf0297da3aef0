package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
	"github.com/noisypi/noisypi/util"
)

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Press key.Binding
	Hold  key.Binding
	Quit  key.Binding
}

var keys = keyMap{
	Up:    key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
	Down:  key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
	Press: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "press")),
	Hold:  key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hold")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	faintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("255"))
	onStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	offStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	heldStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// deviceRow is the displayed state of one device, updated from the bus.
type deviceRow struct {
	conf    config.DeviceConf
	pressed bool   // buttons: latched on/off
	state   string // last command or effect
	at      time.Time
}

type automatonRow struct {
	state string
	since time.Time
}

type eventMsg struct {
	ev *pubsub.Event
}

type tickMsg time.Time

type model struct {
	rows     []*deviceRow
	index    map[string]*deviceRow
	cursor   int
	automata map[string]automatonRow
	music    string
	sound    string
	soundAt  time.Time
	events   <-chan *pubsub.Event
	width    int
	height   int
}

func newModel() model {
	var rows []*deviceRow
	index := map[string]*deviceRow{}
	for name, dev := range services.Config.Devices {
		row := &deviceRow{conf: dev, state: "-"}
		rows = append(rows, row)
		index[name] = row
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].conf.Id < rows[j].conf.Id
	})

	events := services.Subscriber.Subscribe(
		pubsub.Exact("gpio"),
		pubsub.Prefix("command"),
		pubsub.Exact("noisebox"),
		pubsub.Exact("audio"),
	)
	return model{
		rows:     rows,
		index:    index,
		automata: map[string]automatonRow{},
		events:   events,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listenEvents(m.events), tick())
}

// listenEvents blocks until the next bus event, delivering it as an eventMsg.
func listenEvents(ch <-chan *pubsub.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{ev}
	}
}

// tick redraws every second, for the ago column.
func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tick()

	case eventMsg:
		m.apply(msg.ev)
		return m, listenEvents(m.events)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Press):
			m.press(m.cursor, false)
		case key.Matches(msg, keys.Hold):
			m.press(m.cursor, true)
		default:
			if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(m.rows) {
				m.cursor = n - 1
				m.press(m.cursor, false)
			}
		}
	}
	return m, nil
}

// press injects the gpio event the hardware would emit: on/off alternating
// like a latching switch, or held.
func (m *model) press(i int, held bool) {
	row := m.rows[i]
	if row.conf.Type != "button" {
		return
	}
	command := "on"
	if held {
		command = "held"
	} else if row.pressed {
		command = "off"
	}
	fields := pubsub.Fields{
		"device":  row.conf.Id,
		"command": command,
	}
	if row.conf.Source != "" {
		fields["source"] = row.conf.Source
	}
	ev := pubsub.NewEvent("gpio", fields)
	// emit blocks on the broker ack, keep the ui responsive. The event
	// echoes back through the subscription to update the row.
	go services.Publisher.Emit(ev)
}

func (m *model) apply(ev *pubsub.Event) {
	switch {
	case ev.Topic == "gpio":
		if row, ok := m.index[services.Config.LookupDeviceName(ev)]; ok {
			row.state = ev.Command()
			row.pressed = ev.Command() != "off"
			row.at = time.Now()
		}
	case strings.HasPrefix(ev.Topic, "command/"):
		if row, ok := m.index[ev.Device()]; ok {
			row.state = commandDetail(ev)
			row.at = time.Now()
		}
	case ev.Topic == "noisebox":
		m.automata[ev.Source()] = automatonRow{ev.State(), time.Now()}
	case ev.Topic == "audio":
		switch ev.Command() {
		case "play":
			m.sound = ev.StringField("sound")
			m.soundAt = time.Now()
		case "music":
			m.music = ev.StringField("sound")
		case "stop":
			m.music = ""
		}
	}
}

// commandDetail summarises a led command event for display.
func commandDetail(ev *pubsub.Event) string {
	switch command := ev.Command(); command {
	case "level":
		if level, ok := ev.FloatField("level"); ok {
			return fmt.Sprintf("level %.0f%%", level)
		}
		return "level"
	case "blink":
		if interval, ok := ev.FloatField("interval"); ok {
			return fmt.Sprintf("blink %.2gs", interval)
		}
		return "blink"
	case "flash":
		if repeat, ok := ev.FloatField("repeat"); ok {
			return fmt.Sprintf("flash x%.0f", repeat)
		}
		return "flash"
	case "fade":
		level, _ := ev.FloatField("level")
		duration, _ := ev.FloatField("duration")
		return fmt.Sprintf("fade %.0f%% %.2gs", level, duration)
	case "glow":
		min, _ := ev.FloatField("min")
		max, _ := ev.FloatField("max")
		return fmt.Sprintf("glow %.0f-%.0f%%", min, max)
	default:
		return command
	}
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case "on":
		return onStyle
	case "off", "-":
		return offStyle
	case "held":
		return heldStyle
	}
	return activeStyle
}

func ago(now time.Time, at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return util.ShortDuration(now.Sub(at)) + " ago"
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("noisypi tester"))
	b.WriteString(faintStyle.Render("  " + os.Getenv("NOISYPI_MQTT")))
	b.WriteString("\n\n")

	now := time.Now()
	for i, row := range m.rows {
		prefix := fmt.Sprintf(" %2d  %-16s %-20s ", i+1, row.conf.Id, row.conf.Name)
		state := fmt.Sprintf("%-16s", row.state)
		suffix := ago(now, row.at)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(prefix + state + suffix))
		} else {
			b.WriteString(prefix + stateStyle(row.state).Render(state) + faintStyle.Render(suffix))
		}
		b.WriteString("\n")
	}

	if len(m.automata) > 0 {
		b.WriteString("\n" + titleStyle.Render("automata") + "\n")
		var names []string
		for name := range m.automata {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			row := m.automata[name]
			b.WriteString(fmt.Sprintf("     %-16s ", name) +
				activeStyle.Render(fmt.Sprintf("%-16s", row.state)) +
				faintStyle.Render(ago(now, row.since)) + "\n")
		}
	}

	b.WriteString("\n" + titleStyle.Render("audio") + "\n")
	music := m.music
	if music == "" {
		music = "-"
	}
	b.WriteString("     music           " + stateStyle(music).Render(music) + "\n")
	if m.sound != "" && now.Sub(m.soundAt) < 5*time.Second {
		b.WriteString("     play            " + activeStyle.Render(m.sound) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("j/k: move  space: press  h: hold  1-9: press device  q: quit"))
	return b.String()
}
