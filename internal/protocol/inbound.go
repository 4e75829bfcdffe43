package protocol

import (
	"encoding/json"
	"time"
)

// Status lines shown for inbound frames.
const (
	StatusTypedDefault = "Message received from server"
	StatusUntyped      = "Data received from server"
)

var statusLines = map[Type]string{
	TypeResponse: "Command executed successfully",
	TypeError:    "Error from server",
	TypeStatus:   "Status update received",
	TypeAck:      "Data acknowledged by server",
}

// Inbound is one frame received from the rig controller. Frames that are
// not valid JSON are kept opaque in Raw.
type Inbound struct {
	Raw        []byte
	Payload    any
	Parsed     bool
	Type       string
	Status     string
	ReceivedAt time.Time
}

// Decode parses a frame and derives its status line. It never fails.
func Decode(data []byte) Inbound {
	in := Inbound{Raw: data}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		in.Status = StatusUntyped
		return in
	}
	in.Payload = payload
	in.Parsed = true

	typed := false
	if obj, ok := payload.(map[string]any); ok {
		if v, present := obj["type"]; present && truthy(v) {
			typed = true
			if s, ok := v.(string); ok {
				in.Type = s
			}
		}
	}
	in.Status = StatusLine(typed, in.Type)
	return in
}

// StatusLine maps a discriminator to its display line.
func StatusLine(typed bool, t string) string {
	if !typed {
		return StatusUntyped
	}
	if line, ok := statusLines[Type(t)]; ok {
		return line
	}
	return StatusTypedDefault
}

// truthy mirrors how a loosely-typed client treats the discriminator.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return true
	}
}
