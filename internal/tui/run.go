package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/brushrig/internal/logging"
	"github.com/tturner/brushrig/internal/panel"
	"github.com/tturner/brushrig/internal/protocol"
	"github.com/tturner/brushrig/internal/rigconn"
)

// RunOptions sets up the panel layout.
type RunOptions struct {
	Brushes       []string
	Rows          int
	Offline       bool
	ToastDuration time.Duration
}

// Run starts the panel against m and blocks until the user quits. The
// manager is closed on return.
func Run(m *rigconn.Manager, store panel.Store, opts RunOptions, logger *logging.Logger) error {
	defer m.Close()

	feedback := NewFeedback()
	sender := NewRecordingSender(m)
	ctrl := panel.New(sender, store, feedback, panel.Options{Offline: opts.Offline}, logger)

	model := NewModel(Config{
		Controller:    ctrl,
		Feedback:      feedback,
		Sender:        sender,
		Conn:          m,
		URL:           m.URL(),
		Brushes:       opts.Brushes,
		Rows:          opts.Rows,
		ToastDuration: opts.ToastDuration,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Send blocks until the event loop reads the message, so callbacks
	// must never fire from inside Update.
	m.OnStatus(func(s rigconn.State) { program.Send(StatusMsg{State: s}) })
	m.OnMessage(func(in protocol.Inbound) { program.Send(InboundMsg{Inbound: in}) })

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run panel: %w", err)
	}
	return nil
}
