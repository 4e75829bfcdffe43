// Package protocol defines the JSON envelopes exchanged with the rig
// controller. The wire format is untyped JSON with an advisory "type" field.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/tturner/brushrig/internal/presets"
)

// Type is the advisory discriminator carried in the "type" field.
type Type string

const (
	TypeTest              Type = "test"
	TypeSaveConfiguration Type = "save_configuration"
	TypeRunCycle          Type = "run_cycle"
	TypeEmergency         Type = "emergency"
	TypeResponse          Type = "response"
	TypeStatus            Type = "status"
	TypeError             Type = "error"
	TypeAck               Type = "ack"
	TypeData              Type = "data"
)

// ActionStopAll is the only emergency action.
const ActionStopAll = "STOP_ALL"

// TimestampLayout matches the browser's Date.toISOString output.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t in UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// TestCommand asks the rig to run one row immediately.
type TestCommand struct {
	Type       Type   `json:"type"`
	RowIndex   int    `json:"rowIndex"`
	BrushName  string `json:"brushName"`
	CycleCount int    `json:"cycleCount"`
	Timestamp  string `json:"timestamp"`
}

// ConfigurationCommand carries a named preset. It is used for both
// save_configuration and run_cycle.
type ConfigurationCommand struct {
	Type       Type          `json:"type"`
	ConfigName string        `json:"configName"`
	ConfigData []presets.Row `json:"configData"`
	Timestamp  string        `json:"timestamp"`
}

// EmergencyCommand stops every brush on the rig.
type EmergencyCommand struct {
	Type      Type   `json:"type"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// NewTest builds a test command. rowIndex is 1-based.
func NewTest(rowIndex int, brush string, cycles int, at time.Time) TestCommand {
	return TestCommand{
		Type:       TypeTest,
		RowIndex:   rowIndex,
		BrushName:  brush,
		CycleCount: cycles,
		Timestamp:  Timestamp(at),
	}
}

// NewSaveConfiguration builds a save_configuration command.
func NewSaveConfiguration(name string, rows []presets.Row, at time.Time) ConfigurationCommand {
	return newConfiguration(TypeSaveConfiguration, name, rows, at)
}

// NewRunCycle builds a run_cycle command.
func NewRunCycle(name string, rows []presets.Row, at time.Time) ConfigurationCommand {
	return newConfiguration(TypeRunCycle, name, rows, at)
}

func newConfiguration(t Type, name string, rows []presets.Row, at time.Time) ConfigurationCommand {
	if rows == nil {
		rows = []presets.Row{}
	}
	return ConfigurationCommand{
		Type:       t,
		ConfigName: name,
		ConfigData: rows,
		Timestamp:  Timestamp(at),
	}
}

// NewEmergencyStop builds the fixed STOP_ALL command.
func NewEmergencyStop(at time.Time) EmergencyCommand {
	return EmergencyCommand{
		Type:      TypeEmergency,
		Action:    ActionStopAll,
		Timestamp: Timestamp(at),
	}
}

// Encode serializes an outbound message. Strings and byte slices are
// passed through untouched.
func Encode(message any) ([]byte, error) {
	switch v := message.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(message)
	}
}
