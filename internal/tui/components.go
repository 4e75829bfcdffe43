package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/brushrig/internal/panel"
	"github.com/tturner/brushrig/internal/rigconn"
)

// SectionBox renders a titled box with content.
//
//	╭─ TITLE ──────────────────────────╮
//	│  content line 1                  │
//	│  content line 2                  │
//	╰──────────────────────────────────╯
func SectionBox(title, content string, width int, focused bool, s Styles) string {
	if width < 20 {
		width = 60
	}

	border := DefaultTheme.Border
	if focused {
		border = DefaultTheme.BorderFocused
	}
	edge := lipgloss.NewStyle().Foreground(border)

	// Build title bar: ─ TITLE ──────
	titleText := " " + title + " "
	titleLen := lipgloss.Width(titleText)
	remainingWidth := width - 4 - titleLen // 4 for corners and initial dash
	if remainingWidth < 0 {
		remainingWidth = 0
	}
	titleBar := edge.Render("─") + s.Header.Render(titleText) + edge.Render(strings.Repeat("─", remainingWidth))

	box := lipgloss.NewStyle().
		Border(lipgloss.Border{
			Top:         "",
			Bottom:      "─",
			Left:        "│",
			Right:       "│",
			TopLeft:     "╭",
			TopRight:    "╮",
			BottomLeft:  "╰",
			BottomRight: "╯",
		}).
		BorderForeground(border).
		Width(width - 2). // Account for border
		Padding(0, 1)

	// Build the full box manually for the custom top border
	contentBox := box.Render(content)
	lines := strings.Split(contentBox, "\n")

	var result strings.Builder
	result.WriteString(edge.Render("╭") + titleBar + edge.Render("╮") + "\n")
	for i := 1; i < len(lines); i++ {
		result.WriteString(lines[i])
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}

	return result.String()
}

// ConnectionBadge renders the connection indicator.
//
//	● Connected
func ConnectionBadge(state rigconn.State, s Styles) string {
	icon := StateIcon(state, s)
	var style lipgloss.Style
	switch state {
	case rigconn.Connected:
		style = s.Success
	case rigconn.Connecting:
		style = s.Warning
	case rigconn.Error:
		style = s.Error
	default:
		style = s.Dim
	}
	return icon + " " + style.Render(state.Label())
}

// Selector renders a left/right chooser.
//
//	‹ B1 ›
func Selector(value string, active bool, width int, s Styles) string {
	text := padCenter(truncateString(value, width), width)
	if active {
		return s.Selected.Render("‹ " + text + " ›")
	}
	return s.Dim.Render("  ") + s.Input.Render(text) + s.Dim.Render("  ")
}

// PresetCards renders one card per preset row.
//
//	╭────────╮ ╭────────╮
//	│   B1   │ │   B2   │
//	│3 cycles│ │5 cycles│
//	╰────────╯ ╰────────╯
func PresetCards(cards []panel.Card, s Styles) string {
	if len(cards) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(cards))
	for _, c := range cards {
		body := s.Bold.Render(c.Brush) + "\n" + s.Dim.Render(c.Cycles)
		rendered = append(rendered, s.Card.Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// Toast renders a notice banner.
func Toast(n panel.Notice, s Styles) string {
	if n.Kind == panel.KindError {
		return s.ToastError.Render(n.Text)
	}
	return s.ToastOK.Render(n.Text)
}

// KeyHints renders a row of keyboard shortcuts.
//
//	[tab] Next    [!] Emergency    [ctrl+c] Quit
func KeyHints(hints []KeyHint, s Styles) string {
	var parts []string
	for _, h := range hints {
		key := s.KeyBinding.Render("[" + h.Key + "]")
		label := s.KeyHint.Render(h.Label)
		parts = append(parts, key+" "+label)
	}
	return strings.Join(parts, "    ")
}

// KeyHint represents a keyboard shortcut hint.
type KeyHint struct {
	Key   string
	Label string
}

// Divider renders a horizontal divider line.
func Divider(width int, s Styles) string {
	return s.Muted.Render(strings.Repeat("─", width))
}

func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func padCenter(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	left := (width - w) / 2
	right := width - w - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// truncateString cuts s to limit bytes, ending in "..." when it had to cut.
func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:limit]
	}
	return s[:limit-3] + "..."
}
