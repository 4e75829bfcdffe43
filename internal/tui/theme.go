package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/brushrig/internal/rigconn"
)

// Theme is the panel's color palette.
type Theme struct {
	Ink         lipgloss.Color // text drawn on filled badges
	TextPrimary lipgloss.Color
	TextDim     lipgloss.Color
	TextMuted   lipgloss.Color

	Border        lipgloss.Color
	BorderFocused lipgloss.Color

	Accent  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
}

// DefaultTheme is a dark palette.
var DefaultTheme = Theme{
	Ink:         lipgloss.Color("#16161e"),
	TextPrimary: lipgloss.Color("#d5d9f0"),
	TextDim:     lipgloss.Color("#6b7394"),
	TextMuted:   lipgloss.Color("#454b66"),

	Border:        lipgloss.Color("#454b66"),
	BorderFocused: lipgloss.Color("#82a8f5"),

	Accent:  lipgloss.Color("#82a8f5"),
	Success: lipgloss.Color("#98c96b"),
	Warning: lipgloss.Color("#e3b56d"),
	Error:   lipgloss.Color("#f26d86"),
	Info:    lipgloss.Color("#7fd3f7"),
}

// Styles holds the lipgloss styles the panel renders with.
type Styles struct {
	Dim   lipgloss.Style
	Muted lipgloss.Style
	Bold  lipgloss.Style

	Title  lipgloss.Style
	Header lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	Selected   lipgloss.Style
	KeyBinding lipgloss.Style
	KeyHint    lipgloss.Style

	Card       lipgloss.Style
	AlertBox   lipgloss.Style
	ToastOK    lipgloss.Style
	ToastError lipgloss.Style
	Emergency  lipgloss.Style

	Label lipgloss.Style
	Input lipgloss.Style

	Footer lipgloss.Style
}

// NewStyles builds the panel styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Dim:   lipgloss.NewStyle().Foreground(t.TextDim),
		Muted: lipgloss.NewStyle().Foreground(t.TextMuted),
		Bold:  lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true),

		Title: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),

		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Foreground(t.Error),
		Info:    lipgloss.NewStyle().Foreground(t.Info),

		Selected: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),
		KeyBinding: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),
		KeyHint: lipgloss.NewStyle().
			Foreground(t.TextDim),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1).
			Align(lipgloss.Center),
		AlertBox: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(t.Error).
			Foreground(t.TextPrimary).
			Padding(1, 3),
		ToastOK: lipgloss.NewStyle().
			Foreground(t.Ink).
			Background(t.Success).
			Padding(0, 1),
		ToastError: lipgloss.NewStyle().
			Foreground(t.Ink).
			Background(t.Error).
			Padding(0, 1),
		Emergency: lipgloss.NewStyle().
			Foreground(t.Ink).
			Background(t.Error).
			Bold(true).
			Padding(0, 2),

		Label: lipgloss.NewStyle().
			Foreground(t.TextDim).
			Width(8),
		Input: lipgloss.NewStyle().
			Foreground(t.TextPrimary),

		Footer: lipgloss.NewStyle().
			Foreground(t.TextDim),
	}
}

var DefaultStyles = NewStyles(DefaultTheme)

// StateIcon returns a colored indicator for a connection state.
func StateIcon(state rigconn.State, s Styles) string {
	switch state {
	case rigconn.Connected:
		return s.Success.Render("●")
	case rigconn.Connecting:
		return s.Warning.Render("◐")
	case rigconn.Error:
		return s.Error.Render("●")
	default:
		return s.Dim.Render("○")
	}
}
