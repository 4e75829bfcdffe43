package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tturner/brushrig/internal/presets"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.FixedZone("CET", 3600))

func TestTimestampIsUTCWithMillis(t *testing.T) {
	require.Equal(t, "2024-03-09T13:05:07.123Z", Timestamp(fixedTime))
}

func TestOutboundShapes(t *testing.T) {
	rows := []presets.Row{{BrushName: "B1", CycleCount: 3}}

	tests := []struct {
		name string
		msg  any
		want string
	}{
		{
			name: "test",
			msg:  NewTest(2, "B1", 10, fixedTime),
			want: `{"type":"test","rowIndex":2,"brushName":"B1","cycleCount":10,"timestamp":"2024-03-09T13:05:07.123Z"}`,
		},
		{
			name: "save",
			msg:  NewSaveConfiguration("P1", rows, fixedTime),
			want: `{"type":"save_configuration","configName":"P1","configData":[{"brushName":"B1","cycleCount":3}],"timestamp":"2024-03-09T13:05:07.123Z"}`,
		},
		{
			name: "run",
			msg:  NewRunCycle("P1", rows, fixedTime),
			want: `{"type":"run_cycle","configName":"P1","configData":[{"brushName":"B1","cycleCount":3}],"timestamp":"2024-03-09T13:05:07.123Z"}`,
		},
		{
			name: "run with nil rows",
			msg:  NewRunCycle("P1", nil, fixedTime),
			want: `{"type":"run_cycle","configName":"P1","configData":[],"timestamp":"2024-03-09T13:05:07.123Z"}`,
		},
		{
			name: "emergency",
			msg:  NewEmergencyStop(fixedTime),
			want: `{"type":"emergency","action":"STOP_ALL","timestamp":"2024-03-09T13:05:07.123Z"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncodePassesStringsThrough(t *testing.T) {
	data, err := Encode(`{"already":"json"}`)
	require.NoError(t, err)
	require.Equal(t, `{"already":"json"}`, string(data))

	data, err = Encode([]byte("raw"))
	require.NoError(t, err)
	require.Equal(t, "raw", string(data))
}

func TestEncodeUnsupportedValue(t *testing.T) {
	_, err := Encode(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}

func TestDecodeStatusLines(t *testing.T) {
	tests := []struct {
		frame  string
		typ    string
		status string
		parsed bool
	}{
		{`{"type":"response","ok":true}`, "response", "Command executed successfully", true},
		{`{"type":"error","reason":"jam"}`, "error", "Error from server", true},
		{`{"type":"status","brush":"B1"}`, "status", "Status update received", true},
		{`{"type":"ack"}`, "ack", "Data acknowledged by server", true},
		{`{"type":"data","value":4}`, "data", "Message received from server", true},
		{`{"type":"mystery"}`, "mystery", "Message received from server", true},
		{`{"type":7}`, "", "Message received from server", true},
		{`{"type":""}`, "", "Data received from server", true},
		{`{"value":1}`, "", "Data received from server", true},
		{`[1,2,3]`, "", "Data received from server", true},
		{`not json at all`, "", "Data received from server", false},
		{``, "", "Data received from server", false},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			in := Decode([]byte(tt.frame))
			require.Equal(t, tt.typ, in.Type)
			require.Equal(t, tt.status, in.Status)
			require.Equal(t, tt.parsed, in.Parsed)
			require.Equal(t, tt.frame, string(in.Raw))
		})
	}
}

func TestDecodeKeepsPayload(t *testing.T) {
	in := Decode([]byte(`{"type":"status","cycles":12}`))
	obj, ok := in.Payload.(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 12, obj["cycles"])
}
