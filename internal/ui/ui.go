package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
)

const commandTimeout = time.Minute

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConsoleView ViewState = iota
	DevicesView
)

// Processor handles one intent and returns its response.
type Processor interface {
	Process(ctx context.Context, intent models.Intent) (models.Response, bool)
}

// SnapshotSource hands out the cached playlists and devices.
type SnapshotSource interface {
	Get(ctx context.Context) (*models.Snapshot, error)
}

type entry struct {
	input   string
	text    string
	handled bool
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	processor Processor
	snapshots SnapshotSource
	room      string
	skillName string

	input   textinput.Model
	history []entry
	pending bool
	devices list.Model
	err     error

	width  int
	height int
	help   help.Model
	keys   keyMap
}

// NewModel creates a console that sends commands for room, addressed to the skill named skillName.
func NewModel(ctx context.Context, processor Processor, snapshots SnapshotSource, room, skillName string) *Model {
	input := textinput.New()
	input.Placeholder = "play playlist 1"
	input.Prompt = "› "
	input.CharLimit = 200
	input.Focus()

	devices := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	devices.Title = "Devices"
	devices.SetShowHelp(false)

	return &Model{
		ctx:       ctx,
		view:      ConsoleView,
		processor: processor,
		snapshots: snapshots,
		room:      room,
		skillName: skillName,
		input:     input,
		devices:   devices,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init starts the cursor blink.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		m.devices.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		switch m.view {
		case ConsoleView:
			return m.handleConsoleKeys(msg)
		case DevicesView:
			return m.handleDevicesKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgResponse:
		data := msg.data.(responseData)
		m.pending = false
		m.history = append(m.history, entry{input: data.input, text: data.resp.Text, handled: data.handled})
	case MsgSnapshot:
		data := msg.data.(snapshotData)
		m.err = data.err
		if data.err == nil {
			cmd := m.devices.SetItems(deviceItems(data.snapshot.Devices))
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) handleConsoleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.pending {
			return m, nil
		}
		m.pending = true
		m.input.Reset()
		return m, m.process(text)
	case key.Matches(msg, m.keys.devices):
		m.view = DevicesView
		return m, m.loadSnapshot()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleDevicesKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = ConsoleView
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.loadSnapshot()
	}

	var cmd tea.Cmd
	m.devices, cmd = m.devices.Update(msg)
	return m, cmd
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ConsoleView:
		m.input, cmd = m.input.Update(msg)
	case DevicesView:
		m.devices, cmd = m.devices.Update(msg)
	}
	return m, cmd
}

// Intent wraps a typed line into the intent a voice assistant would publish for the console's room.
func (m *Model) Intent(text string) models.Intent {
	id := shared.GenerateID()
	return models.Intent{
		ID:    id,
		Nouns: []string{m.skillName},
		Rooms: []string{m.room},
		ClientRequest: models.ClientRequest{
			ID:   id,
			Text: text,
			Room: m.room,
		},
	}
}

func (m *Model) process(text string) tea.Cmd {
	intent := m.Intent(text)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, commandTimeout)
		defer cancel()

		resp, ok := m.processor.Process(ctx, intent)
		return responseMsg(text, resp, ok)
	}
}

func (m *Model) loadSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.snapshots.Get(m.ctx)
		return snapshotMsg(snap, err)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case DevicesView:
		return m.renderDevices()
	default:
		return m.renderConsole()
	}
}

func (m *Model) renderConsole() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("spotskill • %s", strings.ReplaceAll(m.room, "_", " "))))
	b.WriteString("\n")

	for _, e := range m.visibleHistory() {
		b.WriteString(styles.prompt.Render("› " + e.input))
		b.WriteString("\n")
		if e.handled {
			b.WriteString(styles.response.Render(e.text))
		} else {
			b.WriteString(styles.ignored.Render("(not a command for this skill)"))
		}
		b.WriteString("\n\n")
	}

	if m.pending {
		b.WriteString(styles.help.Render("working..."))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// visibleHistory returns the newest entries that fit the window.
func (m *Model) visibleHistory() []entry {
	if m.height <= 0 {
		return m.history
	}
	fit := (m.height - 8) / 3
	if fit < 1 {
		fit = 1
	}
	if len(m.history) <= fit {
		return m.history
	}
	return m.history[len(m.history)-fit:]
}

func (m *Model) renderDevices() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" +
			m.help.ShortHelpView([]key.Binding{m.keys.refresh, m.keys.back, m.keys.quit})
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.refresh, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.devices.View(), helpView)
}
