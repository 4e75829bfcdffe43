package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tturner/brushrig/internal/config"
	brerrors "github.com/tturner/brushrig/internal/errors"
	"github.com/tturner/brushrig/internal/panel"
	"github.com/tturner/brushrig/internal/rigsim"
)

// writeTestConfig writes a config pointing at url with the store and
// message log inside dir.
func writeTestConfig(t *testing.T, dir, url string) string {
	t.Helper()
	cfg := config.CreateDefaultConfig()
	cfg.Device.URL = url
	cfg.Device.DialTimeoutMs = 1000
	cfg.Reconnect.DelayMs = 50
	cfg.Reconnect.MaxAttempts = 1
	cfg.Store.Path = filepath.Join(dir, "presets.json")
	cfg.Metrics.MessageLog = filepath.Join(dir, "messages.csv")
	cfg.Metrics.MessageJSON = filepath.Join(dir, "messages.json")
	cfg.Logging.Level = "silent"
	path := filepath.Join(dir, "brushrig.yaml")
	require.NoError(t, config.WriteConfig(path, cfg))
	return path
}

func startEmulator(t *testing.T) string {
	t.Helper()
	sim := rigsim.New(rigsim.Options{Listen: "127.0.0.1:0"}, nil)
	require.NoError(t, sim.Start())
	t.Cleanup(func() { _ = sim.Stop(context.Background()) })
	return "ws://" + sim.Addr().String() + "/ws"
}

func TestParseRowSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    panel.RowInput
		wantErr bool
	}{
		{spec: "B1:5", want: panel.RowInput{Brush: "B1", Cycles: "5"}},
		{spec: " B2 : 12 ", want: panel.RowInput{Brush: "B2", Cycles: "12"}},
		{spec: "none:3", want: panel.RowInput{Brush: "none", Cycles: "3"}},
		{spec: "B3:", want: panel.RowInput{Brush: "B3", Cycles: ""}},
		{spec: "B4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseRowSpec(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPresetsSaveListShowOffline(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "ws://127.0.0.1:1/ws")
	rt := RuntimeOptions{ConfigPath: cfgPath, ConfigRequired: true}

	var out bytes.Buffer
	err := RunPresetsSave(PresetSaveOptions{
		PresetsOptions: PresetsOptions{Runtime: rt, Out: &out},
		Name:           "Daily",
		Rows:           []string{"B1:5", "none:3", "B2:0", "B3:7"},
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), `Configuration "Daily" saved successfully!`)

	out.Reset()
	require.NoError(t, RunPresetsList(PresetsOptions{Runtime: rt, Out: &out}))
	require.Contains(t, out.String(), "Daily")
	require.Contains(t, out.String(), "B1,B3")

	out.Reset()
	require.NoError(t, RunPresetsShow(PresetsOptions{Runtime: rt, Out: &out}, "Daily"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[2], "B1")
	require.Contains(t, lines[3], "B3")

	err = RunPresetsShow(PresetsOptions{Runtime: rt, Out: &out}, "Missing")
	require.Error(t, err)
}

func TestPresetsSaveValidation(t *testing.T) {
	dir := t.TempDir()
	rt := RuntimeOptions{ConfigPath: writeTestConfig(t, dir, "ws://127.0.0.1:1/ws")}

	err := RunPresetsSave(PresetSaveOptions{
		PresetsOptions: PresetsOptions{Runtime: rt, Out: &bytes.Buffer{}},
		Name:           "Empty",
		Rows:           []string{"none:5"},
	})
	require.EqualError(t, err, panel.MsgNoValidRows)

	err = RunPresetsSave(PresetSaveOptions{
		PresetsOptions: PresetsOptions{Runtime: rt, Out: &bytes.Buffer{}},
		Name:           "  ",
		Rows:           []string{"B1:5"},
	})
	require.EqualError(t, err, panel.MsgNameRequired)

	err = RunPresetsSave(PresetSaveOptions{
		PresetsOptions: PresetsOptions{Runtime: rt},
		Name:           "Bad",
		Rows:           []string{"B1"},
	})
	require.Error(t, err)
}

func TestPresetsListEmpty(t *testing.T) {
	dir := t.TempDir()
	rt := RuntimeOptions{ConfigPath: writeTestConfig(t, dir, "ws://127.0.0.1:1/ws")}

	var out bytes.Buffer
	require.NoError(t, RunPresetsList(PresetsOptions{Runtime: rt, Out: &out}))
	require.Contains(t, out.String(), "No presets in")
}

func TestRunSendTestAgainstEmulator(t *testing.T) {
	dir := t.TempDir()
	rt := RuntimeOptions{ConfigPath: writeTestConfig(t, dir, startEmulator(t))}

	var out bytes.Buffer
	err := RunSend(SendOptions{
		Runtime: rt,
		Command: SendTest,
		Row:     1,
		Brush:   "B1",
		Cycles:  "3",
		Wait:    2 * time.Second,
		Out:     &out,
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "Row 1 - Testing Brush B1 with 3 cycles")
	require.Contains(t, out.String(), "Reply: Command executed successfully")

	out.Reset()
	require.NoError(t, RunReport(ReportOptions{Runtime: rt, Out: &out}))
	require.Contains(t, out.String(), "Sent: 1 (0 failed)")
	require.Contains(t, out.String(), "test: ")

	data, err := os.ReadFile(filepath.Join(dir, "messages.json"))
	require.NoError(t, err)
	var frames []map[string]any
	require.NoError(t, json.Unmarshal(data, &frames))
	require.NotEmpty(t, frames)
}

func TestRunSendSavedPreset(t *testing.T) {
	dir := t.TempDir()
	rt := RuntimeOptions{ConfigPath: writeTestConfig(t, dir, startEmulator(t))}

	err := RunPresetsSave(PresetSaveOptions{
		PresetsOptions: PresetsOptions{Runtime: rt, Out: &bytes.Buffer{}},
		Name:           "Night",
		Rows:           []string{"B2:4"},
		Send:           true,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	err = RunSend(SendOptions{Runtime: rt, Command: SendRun, Preset: "Night", Wait: 2 * time.Second, Out: &out})
	require.NoError(t, err)
	require.Contains(t, out.String(), `Running cycle for "Night"`)

	err = RunSend(SendOptions{Runtime: rt, Command: SendRun, Preset: "Missing", Out: &out})
	require.EqualError(t, err, panel.MsgPresetMissing)
}

func TestRunSendUnreachable(t *testing.T) {
	dir := t.TempDir()
	rt := RuntimeOptions{ConfigPath: writeTestConfig(t, dir, "ws://127.0.0.1:1/ws")}

	err := RunSend(SendOptions{Runtime: rt, Command: SendEmergency, Out: &bytes.Buffer{}})
	require.Error(t, err)
	var friendly brerrors.UserFriendlyError
	require.True(t, errors.As(err, &friendly))
	require.Contains(t, friendly.Message, "ws://127.0.0.1:1/ws")
}

func TestRunSendRejectsBadArguments(t *testing.T) {
	require.Error(t, RunSend(SendOptions{Command: "launch"}))
	require.Error(t, RunSend(SendOptions{Command: SendTest, Row: 0}))
	require.Error(t, RunSend(SendOptions{Command: SendRun}))
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "ws://rig.local/ws")

	cfg, err := LoadConfig(RuntimeOptions{
		ConfigPath: path,
		URL:        "wss://other.local:9000/ws",
		StorePath:  filepath.Join(dir, "other.json"),
		LogLevel:   "debug",
	})
	require.NoError(t, err)
	require.Equal(t, "wss://other.local:9000/ws", cfg.Device.URL)
	require.Equal(t, filepath.Join(dir, "other.json"), cfg.Store.Path)
	require.Equal(t, "debug", cfg.Logging.Level)

	_, err = LoadConfig(RuntimeOptions{ConfigPath: path, URL: "http://rig.local"})
	require.Error(t, err)
}

func TestRunReportNeedsLog(t *testing.T) {
	dir := t.TempDir()
	cfg := config.CreateDefaultConfig()
	path := filepath.Join(dir, "brushrig.yaml")
	require.NoError(t, config.WriteConfig(path, cfg))

	err := RunReport(ReportOptions{Runtime: RuntimeOptions{ConfigPath: path}})
	require.Error(t, err)
}
