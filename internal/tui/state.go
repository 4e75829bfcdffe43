package tui

import (
	"context"
	"sync"

	"github.com/tturner/brushrig/internal/panel"
	"github.com/tturner/brushrig/internal/protocol"
	"github.com/tturner/brushrig/internal/rigconn"
)

// Connector is the part of the connection manager the UI drives.
type Connector interface {
	Connect(ctx context.Context) error
	State() rigconn.State
}

// Feedback buffers controller notices and alerts until the model drains
// them after each action. It implements panel.Notifier.
type Feedback struct {
	mu      sync.Mutex
	notices []panel.Notice
	alerts  []string
}

// NewFeedback returns an empty buffer.
func NewFeedback() *Feedback {
	return &Feedback{}
}

func (f *Feedback) Notice(n panel.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
}

func (f *Feedback) Alert(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, text)
}

func (f *Feedback) drain() ([]panel.Notice, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	notices, alerts := f.notices, f.alerts
	f.notices, f.alerts = nil, nil
	return notices, alerts
}

// RecordingSender remembers the last message it sent successfully so the
// UI can copy it.
type RecordingSender struct {
	inner panel.Sender

	mu   sync.Mutex
	last string
}

// NewRecordingSender wraps inner.
func NewRecordingSender(inner panel.Sender) *RecordingSender {
	return &RecordingSender{inner: inner}
}

func (r *RecordingSender) Send(message any) error {
	if err := r.inner.Send(message); err != nil {
		return err
	}
	if data, err := protocol.Encode(message); err == nil {
		r.mu.Lock()
		r.last = string(data)
		r.mu.Unlock()
	}
	return nil
}

// Last returns the JSON of the last successful send, or "".
func (r *RecordingSender) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
