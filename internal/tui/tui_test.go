package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/brushrig/internal/panel"
	"github.com/tturner/brushrig/internal/presets"
	"github.com/tturner/brushrig/internal/protocol"
	"github.com/tturner/brushrig/internal/rigconn"
)

type fakeConn struct {
	calls int
	err   error
	state rigconn.State
}

func (c *fakeConn) Connect(ctx context.Context) error {
	c.calls++
	return c.err
}

func (c *fakeConn) State() rigconn.State { return c.state }

type fakeSender struct {
	err  error
	sent []any
}

func (f *fakeSender) Send(message any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message)
	return nil
}

type testPanel struct {
	model  *Model
	sender *fakeSender
	store  *presets.Store
	conn   *fakeConn
}

func newTestPanel(t *testing.T) *testPanel {
	t.Helper()
	tp := &testPanel{
		sender: &fakeSender{},
		store:  presets.NewStore(filepath.Join(t.TempDir(), "presets.json"), nil),
		conn:   &fakeConn{},
	}
	feedback := NewFeedback()
	rec := NewRecordingSender(tp.sender)
	ctrl := panel.New(rec, tp.store, feedback, panel.Options{}, nil)
	tp.model = NewModel(Config{
		Controller:    ctrl,
		Feedback:      feedback,
		Sender:        rec,
		Conn:          tp.conn,
		URL:           "ws://rig.test/ws",
		Brushes:       []string{"B1", "B2", "B3"},
		Rows:          2,
		ToastDuration: time.Second,
	})
	return tp
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func (tp *testPanel) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = tp.model.Update(keyMsg(k))
	}
	return cmd
}

func (tp *testPanel) typeText(text string) {
	for _, r := range text {
		tp.model.Update(keyMsg(string(r)))
	}
}

func TestNewModel(t *testing.T) {
	tp := newTestPanel(t)
	m := tp.model

	if m.brushes[0] != presets.NoBrush {
		t.Errorf("expected first brush option %q, got %q", presets.NoBrush, m.brushes[0])
	}
	if len(m.brushes) != 4 {
		t.Errorf("expected 4 brush options, got %d", len(m.brushes))
	}
	if len(m.rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(m.rows))
	}
	if m.preset != -1 {
		t.Errorf("expected no preset selected, got %d", m.preset)
	}
	if m.socketLine != socketDisconnected {
		t.Errorf("expected socket line %q, got %q", socketDisconnected, m.socketLine)
	}
}

func TestInitConnects(t *testing.T) {
	tp := newTestPanel(t)
	tp.conn.err = errors.New("refused")

	cmd := tp.model.Init()
	if cmd == nil {
		t.Fatal("Init should return a connect command")
	}
	msg := cmd()
	if tp.conn.calls != 1 {
		t.Errorf("expected 1 connect call, got %d", tp.conn.calls)
	}
	tp.model.Update(msg)
	if !strings.Contains(tp.model.status, "Connect failed") {
		t.Errorf("expected connect failure status, got %q", tp.model.status)
	}
}

func TestBrushSelectorWraps(t *testing.T) {
	tp := newTestPanel(t)

	tp.press("right")
	if got := tp.model.brushes[tp.model.rows[0].brush]; got != "B1" {
		t.Errorf("right should select B1, got %q", got)
	}
	tp.press("left", "left")
	if got := tp.model.brushes[tp.model.rows[0].brush]; got != "B3" {
		t.Errorf("left should wrap to B3, got %q", got)
	}
}

func TestCyclesInputAcceptsDigitsOnly(t *testing.T) {
	tp := newTestPanel(t)
	tp.press("tab")
	tp.typeText("1a2-3")

	if got := tp.model.rows[0].cycles.Value(); got != "123" {
		t.Errorf("expected cycles %q, got %q", "123", got)
	}
}

func TestEnterTestsRow(t *testing.T) {
	tp := newTestPanel(t)
	tp.press("tab", "tab", "right", "right", "tab")
	tp.typeText("7")
	cmd := tp.press("enter")

	if len(tp.sender.sent) != 1 {
		t.Fatalf("expected 1 message sent, got %d", len(tp.sender.sent))
	}
	msg, ok := tp.sender.sent[0].(protocol.TestCommand)
	if !ok {
		t.Fatalf("expected TestCommand, got %T", tp.sender.sent[0])
	}
	if msg.RowIndex != 2 || msg.BrushName != "B2" || msg.CycleCount != 7 {
		t.Errorf("unexpected test command %+v", msg)
	}
	if tp.model.toast == nil || tp.model.toast.Kind != panel.KindSuccess {
		t.Fatalf("expected success toast, got %+v", tp.model.toast)
	}
	if tp.model.toast.Text != "Row 2 - Testing Brush B2 with 7 cycles" {
		t.Errorf("unexpected toast %q", tp.model.toast.Text)
	}
	if cmd == nil {
		t.Error("a toast should schedule its expiry")
	}
}

func TestInvalidRowShowsErrorToast(t *testing.T) {
	tp := newTestPanel(t)
	tp.press("enter")

	if len(tp.sender.sent) != 0 {
		t.Errorf("expected nothing sent, got %d", len(tp.sender.sent))
	}
	if tp.model.toast == nil || tp.model.toast.Text != panel.MsgSelectBrush {
		t.Errorf("expected %q toast, got %+v", panel.MsgSelectBrush, tp.model.toast)
	}
	if len(tp.model.alerts) != 0 {
		t.Errorf("validation errors should not alert, got %v", tp.model.alerts)
	}
}

func TestAlertBlocksUntilDismissed(t *testing.T) {
	tp := newTestPanel(t)
	tp.sender.err = rigconn.ErrNotConnected

	tp.press("!")
	if len(tp.model.alerts) != 1 || tp.model.alerts[0] != panel.AlertNotConnected {
		t.Fatalf("expected not-connected alert, got %v", tp.model.alerts)
	}
	if !strings.Contains(tp.model.View(), panel.AlertNotConnected) {
		t.Error("view should show the alert")
	}

	tp.press("right")
	if tp.model.rows[0].brush != 0 {
		t.Error("keys other than enter/esc should be ignored while an alert is shown")
	}

	tp.press("esc")
	if len(tp.model.alerts) != 0 {
		t.Errorf("esc should dismiss the alert, got %v", tp.model.alerts)
	}
	if tp.model.toast == nil || tp.model.toast.Kind != panel.KindError {
		t.Errorf("expected error toast behind the alert, got %+v", tp.model.toast)
	}
}

func TestSaveFromNameField(t *testing.T) {
	tp := newTestPanel(t)
	tp.press("right", "tab")
	tp.typeText("4")
	tp.model.setFocus(2 * len(tp.model.rows))
	tp.typeText("Alpha!")
	tp.press("enter")

	rows, ok := tp.store.Get("Alpha!")
	if !ok {
		t.Fatal("preset should be stored")
	}
	if len(rows) != 1 || rows[0] != (presets.Row{BrushName: "B1", CycleCount: 4}) {
		t.Errorf("unexpected rows %+v", rows)
	}
	if tp.model.name.Value() != "" {
		t.Errorf("name should be cleared after save, got %q", tp.model.name.Value())
	}
	if len(tp.model.presets) != 1 || tp.model.presets[0] != "Alpha!" {
		t.Errorf("preset list should refresh, got %v", tp.model.presets)
	}
}

func TestSaveSendFailureKeepsPreset(t *testing.T) {
	tp := newTestPanel(t)
	tp.press("right", "tab")
	tp.typeText("2")
	tp.model.setFocus(2 * len(tp.model.rows))
	tp.typeText("Beta")
	tp.sender.err = errors.New("broken pipe")
	tp.press("enter")

	if _, ok := tp.store.Get("Beta"); !ok {
		t.Error("preset should be stored even when the send fails")
	}
	if tp.model.name.Value() != "Beta" {
		t.Errorf("name should be kept after a failed send, got %q", tp.model.name.Value())
	}
	if len(tp.model.presets) != 1 {
		t.Errorf("stored preset should be listed, got %v", tp.model.presets)
	}
	if len(tp.model.alerts) != 1 || tp.model.alerts[0] != panel.AlertSendError {
		t.Errorf("expected send error alert, got %v", tp.model.alerts)
	}
}

func TestPresetSelectAndRun(t *testing.T) {
	tp := newTestPanel(t)
	if err := tp.store.Save("Daily", []presets.Row{{BrushName: "B3", CycleCount: 10}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	tp.model.refreshPresets()
	tp.model.setFocus(2*len(tp.model.rows) + 1)

	tp.press("enter")
	if tp.model.toast == nil || tp.model.toast.Text != panel.MsgSelectPreset {
		t.Errorf("expected %q toast, got %+v", panel.MsgSelectPreset, tp.model.toast)
	}

	tp.press("right")
	if !tp.model.selection.Found || len(tp.model.selection.Cards) != 1 {
		t.Fatalf("expected one card, got %+v", tp.model.selection)
	}
	if !strings.Contains(tp.model.View(), "10 cycles") {
		t.Error("view should render the preset card")
	}

	tp.press("enter")
	if len(tp.sender.sent) != 1 {
		t.Fatalf("expected run_cycle sent, got %d messages", len(tp.sender.sent))
	}
	msg := tp.sender.sent[0].(protocol.ConfigurationCommand)
	if msg.Type != protocol.TypeRunCycle || msg.ConfigName != "Daily" {
		t.Errorf("unexpected command %+v", msg)
	}

	tp.press("right")
	if tp.model.preset != -1 || tp.model.selection.Visible {
		t.Errorf("selector should wrap to the empty choice, got %d %+v", tp.model.preset, tp.model.selection)
	}
}

func TestEmergencyKeys(t *testing.T) {
	tp := newTestPanel(t)

	tp.press("!")
	tp.model.setFocus(2 * len(tp.model.rows))
	tp.typeText("!")
	if tp.model.name.Value() != "!" {
		t.Errorf("'!' should type into the name field, got %q", tp.model.name.Value())
	}
	tp.press("ctrl+x")

	if len(tp.sender.sent) != 2 {
		t.Fatalf("expected 2 emergency messages, got %d", len(tp.sender.sent))
	}
	for _, sent := range tp.sender.sent {
		msg, ok := sent.(protocol.EmergencyCommand)
		if !ok || msg.Action != protocol.ActionStopAll {
			t.Errorf("unexpected message %+v", sent)
		}
	}
	if tp.model.toast == nil || tp.model.toast.Text != panel.MsgEmergencySent {
		t.Errorf("expected emergency toast, got %+v", tp.model.toast)
	}
}

func TestToastExpiry(t *testing.T) {
	tp := newTestPanel(t)
	tp.press("enter")
	first := tp.model.toastID
	tp.press("enter")

	tp.model.Update(toastExpiredMsg{id: first})
	if tp.model.toast == nil {
		t.Fatal("a stale expiry should not clear a newer toast")
	}
	tp.model.Update(toastExpiredMsg{id: tp.model.toastID})
	if tp.model.toast != nil {
		t.Error("toast should clear on its own expiry")
	}
}

func TestConnectionMessages(t *testing.T) {
	tp := newTestPanel(t)

	tp.model.Update(StatusMsg{State: rigconn.Connected})
	if tp.model.socketLine != socketConnected {
		t.Errorf("expected %q, got %q", socketConnected, tp.model.socketLine)
	}
	if !strings.Contains(tp.model.View(), "Connected") {
		t.Error("view should show the connected badge")
	}

	tp.model.Update(InboundMsg{Inbound: protocol.Decode([]byte(`{"type":"ack"}`))})
	if tp.model.socketLine != "Data acknowledged by server" {
		t.Errorf("unexpected socket line %q", tp.model.socketLine)
	}

	tp.model.Update(StatusMsg{State: rigconn.Disconnected})
	if tp.model.socketLine != socketDisconnected {
		t.Errorf("expected %q, got %q", socketDisconnected, tp.model.socketLine)
	}
}

func TestCopyLastMessage(t *testing.T) {
	var copied string
	orig := clipboardWrite
	clipboardWrite = func(text string) error {
		copied = text
		return nil
	}
	defer func() { clipboardWrite = orig }()

	tp := newTestPanel(t)
	if cmd := tp.press("y"); cmd != nil {
		t.Error("nothing to copy before the first send")
	}
	if tp.model.status != "Nothing sent yet" {
		t.Errorf("unexpected status %q", tp.model.status)
	}

	tp.press("!")
	cmd := tp.press("y")
	if cmd == nil {
		t.Fatal("expected a copy command")
	}
	tp.model.Update(cmd())
	if !strings.Contains(copied, `"action":"STOP_ALL"`) {
		t.Errorf("unexpected clipboard content %q", copied)
	}
	if tp.model.status != "Last message copied to clipboard" {
		t.Errorf("unexpected status %q", tp.model.status)
	}
}

func TestRecordingSenderKeepsLastSuccess(t *testing.T) {
	inner := &fakeSender{}
	rec := NewRecordingSender(inner)

	if err := rec.Send(map[string]any{"type": "test"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	inner.err = errors.New("boom")
	if err := rec.Send(map[string]any{"type": "emergency"}); err == nil {
		t.Fatal("expected send error")
	}
	if rec.Last() != `{"type":"test"}` {
		t.Errorf("unexpected last message %q", rec.Last())
	}
}

func TestQuitKeys(t *testing.T) {
	tp := newTestPanel(t)
	cmd := tp.press("ctrl+c")
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should return tea.Quit")
	}
}
