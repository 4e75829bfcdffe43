package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMetricsSummary(t *testing.T) {
	base := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	sink := NewSink()
	sink.Record(Metric{Timestamp: base, Direction: DirectionSend, Type: "test", Bytes: 100, Success: true})
	sink.Record(Metric{Timestamp: base.Add(time.Second), Direction: DirectionRecv, Type: "response", Bytes: 40, Success: true})
	sink.Record(Metric{Timestamp: base.Add(2 * time.Second), Direction: DirectionSend, Type: "emergency", Error: "rigconn: not connected"})
	sink.Record(Metric{Timestamp: base.Add(3 * time.Second), Direction: DirectionSend, Type: "run_cycle", Error: "write: broken pipe"})

	summary := sink.GetSummary()
	if summary.TotalMessages != 4 {
		t.Fatalf("expected 4 messages, got %d", summary.TotalMessages)
	}
	if summary.Sent != 3 || summary.Received != 1 {
		t.Fatalf("unexpected sent/received: %d/%d", summary.Sent, summary.Received)
	}
	if summary.FailedSends != 2 || summary.NotConnected != 1 || summary.WriteFailures != 1 {
		t.Fatalf("unexpected failure counts: %+v", summary)
	}
	if summary.MinBytes != 40 || summary.MaxBytes != 100 {
		t.Fatalf("unexpected size range: %d..%d", summary.MinBytes, summary.MaxBytes)
	}
	if summary.AvgBytes != 70 {
		t.Fatalf("expected avg 70, got %f", summary.AvgBytes)
	}
	if summary.P50Bytes != 40 || summary.P99Bytes != 100 {
		t.Fatalf("unexpected percentiles: %f %f", summary.P50Bytes, summary.P99Bytes)
	}
	if summary.SizeBuckets["lt_64b"] != 1 || summary.SizeBuckets["64_256b"] != 1 {
		t.Fatalf("unexpected buckets: %v", summary.SizeBuckets)
	}
	if stats := summary.ByType["emergency"]; stats == nil || stats.Failed != 1 {
		t.Fatalf("expected emergency failure stats, got %+v", stats)
	}
	if !summary.FirstTimestamp.Equal(base) || !summary.LastTimestamp.Equal(base.Add(3*time.Second)) {
		t.Fatalf("unexpected window: %s .. %s", summary.FirstTimestamp, summary.LastTimestamp)
	}

	// The returned summary is a copy.
	summary.ByType["test"].Count = 99
	if sink.GetSummary().ByType["test"].Count != 1 {
		t.Fatalf("summary shares state with the sink")
	}
}

func TestWriterRoundTripThroughCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "messages.csv")
	jsonPath := filepath.Join(dir, "messages.json")

	w, err := NewWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	sink := NewSink()
	sink.AttachWriter(w)

	base := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	sink.Record(Metric{Timestamp: base, Direction: DirectionSend, Type: "test", Bytes: 90, Success: true})
	sink.Record(Metric{Timestamp: base.Add(time.Second), Direction: DirectionRecv, Type: "ack", Bytes: 20, Success: true, Status: "Data acknowledged by server"})
	if err := sink.WriteErr(); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	metrics, first, last, err := ReadMetricsCSV(csvPath)
	if err != nil {
		t.Fatalf("ReadMetricsCSV failed: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(metrics))
	}
	if !first.Equal(base) || !last.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected window: %s .. %s", first, last)
	}
	if metrics[1].Status != "Data acknowledged by server" || metrics[1].Direction != DirectionRecv {
		t.Fatalf("unexpected second row: %+v", metrics[1])
	}

	summary := Summarize(metrics)
	if summary.Sent != 1 || summary.Received != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	text := FormatSummary(summary)
	if !strings.Contains(text, "Total Messages: 2") || !strings.Contains(text, "ack: 1 msgs") {
		t.Fatalf("unexpected summary text:\n%s", text)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read JSON log: %v", err)
	}
	if !strings.HasPrefix(string(data), "[\n") || !strings.HasSuffix(string(data), "\n]\n") {
		t.Fatalf("JSON log not a closed array:\n%s", data)
	}
}

func TestReadMetricsCSVRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := ReadMetricsCSV(path); err == nil {
		t.Fatalf("expected missing column error")
	}
}

func TestFormatSummaryEmpty(t *testing.T) {
	if got := FormatSummary(NewSink().GetSummary()); got != "Total Messages: 0\n" {
		t.Fatalf("unexpected empty summary: %q", got)
	}
}
