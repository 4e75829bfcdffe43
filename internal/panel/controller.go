// Package panel holds the control panel's user actions: testing a row,
// saving and running presets, and the emergency stop. It owns no rendering;
// feedback goes through a Notifier so the terminal UI, the CLI and tests can
// all drive the same Controller.
package panel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tturner/brushrig/internal/logging"
	"github.com/tturner/brushrig/internal/presets"
	"github.com/tturner/brushrig/internal/protocol"
	"github.com/tturner/brushrig/internal/rigconn"
)

// Notice and alert texts.
const (
	MsgSelectBrush     = "Please select a brush"
	MsgInvalidCycles   = "Please enter a valid number of cycles"
	MsgNameRequired    = "Please enter a configuration name"
	MsgNoValidRows     = "Please configure at least one row with both brush and cycles before saving"
	MsgSaveSendFailed  = "Failed to send configuration to server. Please check connection."
	MsgSendFailed      = "Failed to send command to server. Please check connection."
	MsgSelectPreset    = "Please select a configuration first"
	MsgPresetMissing   = "No configuration data found"
	MsgEmergencySent   = "Emergency stop signal sent!"
	MsgNoPresetData    = "No data found for this configuration."
	AlertNotConnected  = "Not connected to device. Please wait..."
	AlertSendError     = "Error sending data to device."
	msgStoreFailedFmt  = "Could not save configuration %q: %v"
	msgSavedSentFmt    = "Configuration %q saved and sent to server!"
	msgSavedLocalFmt   = "Configuration %q saved successfully!"
	msgRunningCycleFmt = "Running cycle for %q"
	msgTestingRowFmt   = "Row %d - Testing Brush %s with %d cycles"
)

// Kind classifies a notice.
type Kind int

const (
	KindSuccess Kind = iota
	KindError
)

func (k Kind) String() string {
	if k == KindError {
		return "error"
	}
	return "success"
}

// Notice is a dismissible, auto-expiring message.
type Notice struct {
	Kind Kind
	Text string
}

// Sender transmits one message to the rig. *rigconn.Manager satisfies it.
type Sender interface {
	Send(message any) error
}

// Store persists presets. *presets.Store satisfies it.
type Store interface {
	Names() []string
	Get(name string) ([]presets.Row, bool)
	Save(name string, rows []presets.Row) error
}

// Notifier shows feedback. Notice is non-blocking; Alert blocks until the
// user dismisses it.
type Notifier interface {
	Notice(n Notice)
	Alert(text string)
}

// RowInput is one row as typed by the user: a brush choice and the raw
// cycle count text.
type RowInput struct {
	Brush  string
	Cycles string
}

// Card is one displayed row of a selected preset.
type Card struct {
	Brush  string
	Cycles string
}

// Selection is what the preset display shows for the selected name.
type Selection struct {
	Name       string
	Visible    bool
	Found      bool
	Message    string
	Cards      []Card
	RunVisible bool
}

// Options tunes a Controller.
type Options struct {
	// Offline saves presets locally without transmitting them.
	Offline bool
	// Clock stamps outbound messages; defaults to time.Now.
	Clock func() time.Time
}

// Controller turns panel actions into rig messages.
type Controller struct {
	sender   Sender
	store    Store
	notifier Notifier
	logger   *logging.Logger
	offline  bool
	clock    func() time.Time
}

// New builds a Controller.
func New(sender Sender, store Store, notifier Notifier, opts Options, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		sender:   sender,
		store:    store,
		notifier: notifier,
		logger:   logger,
		offline:  opts.Offline,
		clock:    clock,
	}
}

// Offline reports whether saves stay local.
func (c *Controller) Offline() bool {
	return c.offline
}

// Test sends a test command for one row. rowIndex is 0-based; the message
// carries it 1-based.
func (c *Controller) Test(rowIndex int, brush, cyclesText string) bool {
	if brush == presets.NoBrush || strings.TrimSpace(brush) == "" {
		c.fail(MsgSelectBrush)
		return false
	}
	cycles, ok := ParseCycles(cyclesText)
	if !ok {
		c.fail(MsgInvalidCycles)
		return false
	}

	msg := protocol.NewTest(rowIndex+1, brush, cycles, c.clock())
	if !c.send(msg, "") {
		return false
	}
	c.logger.Verbose("test row %d: brush=%s cycles=%d", rowIndex+1, brush, cycles)
	c.succeed(fmt.Sprintf(msgTestingRowFmt, rowIndex+1, brush, cycles))
	return true
}

// Save validates the rows, stores the valid ones under name and, unless
// offline, sends them to the rig. It returns true when the save completed
// and the name input can be cleared.
func (c *Controller) Save(name string, rows []RowInput) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		c.fail(MsgNameRequired)
		return false
	}

	valid := ValidRows(rows)
	if len(valid) == 0 {
		c.fail(MsgNoValidRows)
		return false
	}

	if err := c.store.Save(name, valid); err != nil {
		c.logger.Error("save preset %q: %v", name, err)
		c.fail(fmt.Sprintf(msgStoreFailedFmt, name, err))
		return false
	}

	if c.offline {
		c.succeed(fmt.Sprintf(msgSavedLocalFmt, name))
		return true
	}

	if !c.send(protocol.NewSaveConfiguration(name, valid, c.clock()), MsgSaveSendFailed) {
		return false
	}
	c.succeed(fmt.Sprintf(msgSavedSentFmt, name))
	return true
}

// RunCycle sends the stored rows of the named preset.
func (c *Controller) RunCycle(name string) bool {
	if name == "" {
		c.fail(MsgSelectPreset)
		return false
	}
	rows, ok := c.store.Get(name)
	if !ok {
		c.fail(MsgPresetMissing)
		return false
	}

	if !c.send(protocol.NewRunCycle(name, rows, c.clock()), "") {
		return false
	}
	c.succeed(fmt.Sprintf(msgRunningCycleFmt, name))
	return true
}

// Emergency sends STOP_ALL. There is no confirmation step.
func (c *Controller) Emergency() bool {
	if !c.send(protocol.NewEmergencyStop(c.clock()), "") {
		return false
	}
	c.succeed(MsgEmergencySent)
	return true
}

// Select describes how the preset display renders name.
func (c *Controller) Select(name string) Selection {
	if name == "" {
		return Selection{}
	}
	rows, ok := c.store.Get(name)
	if !ok {
		return Selection{Name: name, Visible: true, Message: MsgNoPresetData}
	}

	sel := Selection{Name: name, Visible: true, Found: true, RunVisible: true}
	for _, r := range rows {
		if !r.Valid() {
			continue
		}
		sel.Cards = append(sel.Cards, Card{
			Brush:  r.BrushName,
			Cycles: fmt.Sprintf("%d cycles", r.CycleCount),
		})
	}
	return sel
}

// Names lists stored presets for the selector.
func (c *Controller) Names() []string {
	return c.store.Names()
}

// send transmits msg and reports connectivity failures with an alert plus
// a notice. failNotice overrides the default notice text.
func (c *Controller) send(msg any, failNotice string) bool {
	err := c.sender.Send(msg)
	if err == nil {
		return true
	}

	c.logger.Error("send failed: %v", err)
	if errors.Is(err, rigconn.ErrNotConnected) {
		c.notifier.Alert(AlertNotConnected)
	} else {
		c.notifier.Alert(AlertSendError)
	}
	if failNotice == "" {
		failNotice = MsgSendFailed
	}
	c.fail(failNotice)
	return false
}

func (c *Controller) succeed(text string) {
	c.notifier.Notice(Notice{Kind: KindSuccess, Text: text})
}

func (c *Controller) fail(text string) {
	c.notifier.Notice(Notice{Kind: KindError, Text: text})
}

// ValidRows keeps the rows with a brush chosen and a positive cycle count,
// in their original order.
func ValidRows(rows []RowInput) []presets.Row {
	out := make([]presets.Row, 0, len(rows))
	for _, in := range rows {
		cycles, _ := ParseCycles(in.Cycles)
		row := presets.Row{BrushName: in.Brush, CycleCount: cycles}
		if row.Valid() {
			out = append(out, row)
		}
	}
	return out
}

// ParseCycles reads the leading integer of text, ignoring leading space
// and any trailing characters, the way the panel's number field is read.
// It reports false unless the value is a positive integer. Hex prefixes
// such as "0x10" and values that overflow int are rejected.
func ParseCycles(text string) (int, bool) {
	s := strings.TrimLeft(text, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
