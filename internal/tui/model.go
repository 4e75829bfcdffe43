package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/brushrig/internal/panel"
	"github.com/tturner/brushrig/internal/presets"
	"github.com/tturner/brushrig/internal/protocol"
	"github.com/tturner/brushrig/internal/rigconn"
)

const (
	defaultWidth         = 72
	defaultToastDuration = 3 * time.Second
	selectPlaceholder    = "-- Select a saved configuration --"
)

// Socket status lines shown on connection changes.
const (
	socketConnected    = "Connected to device"
	socketDisconnected = "Disconnected from device"
)

// StatusMsg carries a connection state change into the program.
type StatusMsg struct {
	State rigconn.State
}

// InboundMsg carries one frame received from the rig.
type InboundMsg struct {
	Inbound protocol.Inbound
}

type connectResultMsg struct {
	err error
}

type toastExpiredMsg struct {
	id int
}

// Config wires a Model to its collaborators.
type Config struct {
	Controller    *panel.Controller
	Feedback      *Feedback
	Sender        *RecordingSender
	Conn          Connector
	URL           string
	Brushes       []string
	Rows          int
	ToastDuration time.Duration
}

type focusKind int

const (
	focusBrush focusKind = iota
	focusCycles
	focusName
	focusPreset
)

type rowModel struct {
	brush  int
	cycles textinput.Model
}

// Model is the panel's Bubble Tea model.
type Model struct {
	cfg    Config
	styles Styles
	width  int
	height int

	brushes   []string
	rows      []rowModel
	name      textinput.Model
	presets   []string
	preset    int
	selection panel.Selection
	focus     int

	state      rigconn.State
	socketLine string

	toast   *panel.Notice
	toastID int
	alerts  []string
	status  string
}

// NewModel creates a new TUI model.
func NewModel(cfg Config) *Model {
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = defaultToastDuration
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 1
	}
	brushes := cfg.Brushes
	if len(brushes) == 0 || brushes[0] != presets.NoBrush {
		brushes = append([]string{presets.NoBrush}, brushes...)
	}

	m := &Model{
		cfg:        cfg,
		styles:     DefaultStyles,
		brushes:    brushes,
		preset:     -1,
		state:      rigconn.Disconnected,
		socketLine: socketDisconnected,
	}
	if cfg.Conn != nil {
		m.state = cfg.Conn.State()
	}

	for i := 0; i < cfg.Rows; i++ {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = "cycles"
		in.CharLimit = 6
		in.Width = 7
		m.rows = append(m.rows, rowModel{cycles: in})
	}

	m.name = textinput.New()
	m.name.Prompt = ""
	m.name.Placeholder = "configuration name"
	m.name.CharLimit = 64
	m.name.Width = 32

	m.refreshPresets()
	m.setFocus(0)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.connectCmd()
}

func (m *Model) connectCmd() tea.Cmd {
	if m.cfg.Conn == nil {
		return nil
	}
	conn := m.cfg.Conn
	return func() tea.Msg {
		return connectResultMsg{err: conn.Connect(context.Background())}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StatusMsg:
		m.state = msg.State
		switch msg.State {
		case rigconn.Connected:
			m.socketLine = socketConnected
		case rigconn.Disconnected:
			m.socketLine = socketDisconnected
		}
		return m, nil

	case InboundMsg:
		m.socketLine = msg.Inbound.Status
		return m, nil

	case connectResultMsg:
		if msg.err != nil {
			m.status = "Connect failed, retrying in the background"
		} else {
			m.status = ""
		}
		return m, nil

	case toastExpiredMsg:
		if msg.id == m.toastID {
			m.toast = nil
		}
		return m, nil

	case clipboardCopyMsg:
		if msg.success {
			m.status = "Last message copied to clipboard"
		} else if msg.err != nil {
			m.status = fmt.Sprintf("Copy failed: %v", msg.err)
		} else {
			m.status = "Copy failed"
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// An alert blocks everything until dismissed.
	if len(m.alerts) > 0 {
		switch key {
		case "enter", "esc", " ":
			m.alerts = m.alerts[1:]
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	switch key {
	case "ctrl+c", "ctrl+q":
		return m, tea.Quit
	case "tab", "down":
		return m, m.setFocus(m.focus + 1)
	case "shift+tab", "up":
		return m, m.setFocus(m.focus - 1)
	case "ctrl+x":
		return m.emergency()
	case "ctrl+y":
		return m.copyLast()
	case "ctrl+o":
		m.status = "Reconnecting..."
		return m, m.connectCmd()
	case "ctrl+s":
		return m.save()
	case "ctrl+r":
		return m.runCycle()
	}

	kind, row := m.focusAt(m.focus)
	if kind != focusName {
		switch key {
		case "!":
			return m.emergency()
		case "y":
			return m.copyLast()
		case "q":
			return m, tea.Quit
		}
	}

	switch kind {
	case focusBrush:
		n := len(m.brushes)
		switch key {
		case "left", "h":
			m.rows[row].brush = (m.rows[row].brush - 1 + n) % n
		case "right", "l", " ":
			m.rows[row].brush = (m.rows[row].brush + 1) % n
		case "enter", "t":
			return m.test(row)
		}
		return m, nil

	case focusCycles:
		if key == "enter" {
			return m.test(row)
		}
		if msg.Type == tea.KeyRunes && !allDigits(msg.Runes) {
			return m, nil
		}
		var cmd tea.Cmd
		m.rows[row].cycles, cmd = m.rows[row].cycles.Update(msg)
		return m, cmd

	case focusName:
		if key == "enter" {
			return m.save()
		}
		var cmd tea.Cmd
		m.name, cmd = m.name.Update(msg)
		return m, cmd

	case focusPreset:
		switch key {
		case "left", "h":
			m.selectPreset(m.preset - 1)
		case "right", "l", " ":
			m.selectPreset(m.preset + 1)
		case "enter", "r":
			return m.runCycle()
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) test(row int) (tea.Model, tea.Cmd) {
	r := m.rows[row]
	m.cfg.Controller.Test(row, m.brushes[r.brush], r.cycles.Value())
	return m, m.applyFeedback()
}

func (m *Model) save() (tea.Model, tea.Cmd) {
	if m.cfg.Controller.Save(m.name.Value(), m.rowInputs()) {
		m.name.SetValue("")
	}
	// A failed send still leaves the preset stored.
	m.refreshPresets()
	return m, m.applyFeedback()
}

func (m *Model) runCycle() (tea.Model, tea.Cmd) {
	m.cfg.Controller.RunCycle(m.selectedName())
	return m, m.applyFeedback()
}

func (m *Model) emergency() (tea.Model, tea.Cmd) {
	m.cfg.Controller.Emergency()
	return m, m.applyFeedback()
}

func (m *Model) copyLast() (tea.Model, tea.Cmd) {
	if m.cfg.Sender == nil || m.cfg.Sender.Last() == "" {
		m.status = "Nothing sent yet"
		return m, nil
	}
	return m, copyToClipboard(m.cfg.Sender.Last())
}

// applyFeedback moves buffered notices and alerts into the view. The last
// notice replaces any toast still showing.
func (m *Model) applyFeedback() tea.Cmd {
	notices, alerts := m.cfg.Feedback.drain()
	m.alerts = append(m.alerts, alerts...)
	if len(notices) == 0 {
		return nil
	}
	n := notices[len(notices)-1]
	m.toast = &n
	m.toastID++
	id := m.toastID
	return tea.Tick(m.cfg.ToastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func (m *Model) rowInputs() []panel.RowInput {
	out := make([]panel.RowInput, len(m.rows))
	for i, r := range m.rows {
		out[i] = panel.RowInput{Brush: m.brushes[r.brush], Cycles: r.cycles.Value()}
	}
	return out
}

func (m *Model) selectedName() string {
	if m.preset < 0 || m.preset >= len(m.presets) {
		return ""
	}
	return m.presets[m.preset]
}

func (m *Model) refreshPresets() {
	current := m.selectedName()
	m.presets = m.cfg.Controller.Names()
	m.preset = -1
	for i, name := range m.presets {
		if name == current {
			m.preset = i
		}
	}
	m.selection = m.cfg.Controller.Select(m.selectedName())
}

// selectPreset moves the selector, wrapping through the empty choice.
func (m *Model) selectPreset(i int) {
	n := len(m.presets) + 1
	m.preset = ((i+1)%n+n)%n - 1
	m.selection = m.cfg.Controller.Select(m.selectedName())
}

func (m *Model) focusCount() int {
	return 2*len(m.rows) + 2
}

func (m *Model) focusAt(i int) (focusKind, int) {
	switch {
	case i < 2*len(m.rows):
		if i%2 == 0 {
			return focusBrush, i / 2
		}
		return focusCycles, i / 2
	case i == 2*len(m.rows):
		return focusName, -1
	default:
		return focusPreset, -1
	}
}

func (m *Model) setFocus(i int) tea.Cmd {
	n := m.focusCount()
	m.focus = (i%n + n) % n

	for r := range m.rows {
		m.rows[r].cycles.Blur()
	}
	m.name.Blur()

	kind, row := m.focusAt(m.focus)
	switch kind {
	case focusCycles:
		return m.rows[row].cycles.Focus()
	case focusName:
		return m.name.Focus()
	}
	return nil
}

// View implements tea.Model.
func (m *Model) View() string {
	s := m.styles
	width := m.width
	if width <= 0 || width > 100 {
		width = defaultWidth
	}

	if len(m.alerts) > 0 {
		body := m.alerts[0] + "\n\n" + s.Dim.Render("[enter] OK")
		box := s.AlertBox.Render(body)
		if m.height > 0 {
			return lipgloss.Place(width, m.height, lipgloss.Center, lipgloss.Center, box)
		}
		return box
	}

	var b strings.Builder

	b.WriteString(s.Title.Render("brushrig") + "  " + ConnectionBadge(m.state, s))
	if m.cfg.URL != "" {
		b.WriteString("  " + s.Dim.Render(m.cfg.URL))
	}
	b.WriteString("\n")
	b.WriteString(s.Label.Render("Socket") + s.Info.Render(m.socketLine) + "\n\n")

	kind, focusRow := m.focusAt(m.focus)

	var rows strings.Builder
	for i, r := range m.rows {
		cursor := "  "
		if focusRow == i && (kind == focusBrush || kind == focusCycles) {
			cursor = s.Selected.Render("> ")
		}
		brushActive := kind == focusBrush && focusRow == i
		rows.WriteString(cursor)
		rows.WriteString(padRight(fmt.Sprintf("Row %d", i+1), 7))
		rows.WriteString(Selector(m.brushes[r.brush], brushActive, 6, s))
		rows.WriteString("  ")
		rows.WriteString(r.cycles.View())
		if focusRow == i {
			rows.WriteString("  " + s.KeyHint.Render("[enter] Test"))
		}
		if i < len(m.rows)-1 {
			rows.WriteString("\n")
		}
	}
	b.WriteString(SectionBox("TEST ROWS", rows.String(), width, kind == focusBrush || kind == focusCycles, s))
	b.WriteString("\n")

	save := s.Label.Render("Name") + m.name.View()
	if kind == focusName {
		save += "  " + s.KeyHint.Render("[enter] Save")
	}
	b.WriteString(SectionBox("SAVE CONFIGURATION", save, width, kind == focusName, s))
	b.WriteString("\n")

	label := m.selectedName()
	if label == "" {
		label = selectPlaceholder
	}
	saved := s.Label.Render("Preset") + Selector(label, kind == focusPreset, 34, s)
	if m.selection.Visible {
		saved += "\n"
		if !m.selection.Found {
			saved += s.Dim.Render(m.selection.Message)
		} else {
			saved += PresetCards(m.selection.Cards, s)
		}
	}
	if m.selection.RunVisible {
		saved += "\n" + s.KeyBinding.Render("[enter]") + " " + s.KeyHint.Render("Run cycle")
	}
	b.WriteString(SectionBox("SAVED CONFIGURATIONS", saved, width, kind == focusPreset, s))
	b.WriteString("\n\n")

	b.WriteString(s.Emergency.Render("[!] EMERGENCY STOP"))
	b.WriteString("\n\n")

	if m.toast != nil {
		b.WriteString(Toast(*m.toast, s))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(s.Dim.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(Divider(width, s) + "\n")
	b.WriteString(s.Footer.Render(KeyHints([]KeyHint{
		{Key: "tab", Label: "Next"},
		{Key: "←/→", Label: "Choose"},
		{Key: "!", Label: "Emergency"},
		{Key: "y", Label: "Copy JSON"},
		{Key: "ctrl+o", Label: "Reconnect"},
		{Key: "ctrl+c", Label: "Quit"},
	}, s)))

	return b.String()
}

func allDigits(runes []rune) bool {
	for _, r := range runes {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
