package metrics

// Message log output (CSV/JSON) and summary formatting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"
)

var csvHeader = []string{
	"timestamp",
	"direction",
	"type",
	"bytes",
	"success",
	"error",
	"status",
}

// Writer handles writing metrics to files
type Writer struct {
	csvFile   *os.File
	csvWriter *csv.Writer
	jsonFile  *os.File
	jsonCount int
}

// NewWriter creates a new metrics writer. Either path may be empty.
func NewWriter(csvPath, jsonPath string) (*Writer, error) {
	w := &Writer{}

	if csvPath != "" {
		file, err := os.Create(csvPath)
		if err != nil {
			return nil, fmt.Errorf("create CSV file: %w", err)
		}
		w.csvFile = file
		w.csvWriter = csv.NewWriter(file)

		if err := w.csvWriter.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("write CSV header: %w", err)
		}
		w.csvWriter.Flush()
	}

	if jsonPath != "" {
		file, err := os.Create(jsonPath)
		if err != nil {
			if w.csvFile != nil {
				w.csvFile.Close()
			}
			return nil, fmt.Errorf("create JSON file: %w", err)
		}
		w.jsonFile = file

		if _, err := file.WriteString("[\n"); err != nil {
			file.Close()
			if w.csvFile != nil {
				w.csvFile.Close()
			}
			return nil, fmt.Errorf("write JSON start: %w", err)
		}
	}

	return w, nil
}

// WriteMetric writes a single metric
func (w *Writer) WriteMetric(m Metric) error {
	if w.csvWriter != nil {
		record := []string{
			m.Timestamp.Format(time.RFC3339Nano),
			string(m.Direction),
			m.Type,
			strconv.Itoa(m.Bytes),
			strconv.FormatBool(m.Success),
			m.Error,
			m.Status,
		}
		if err := w.csvWriter.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
		w.csvWriter.Flush()
		if err := w.csvWriter.Error(); err != nil {
			return fmt.Errorf("flush CSV record: %w", err)
		}
	}

	if w.jsonFile != nil {
		jsonData, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}

		if w.jsonCount > 0 {
			if _, err := w.jsonFile.WriteString(",\n"); err != nil {
				return fmt.Errorf("write JSON comma: %w", err)
			}
		}

		var buf bytes.Buffer
		if err := json.Indent(&buf, jsonData, "", "  "); err != nil {
			return fmt.Errorf("indent JSON: %w", err)
		}
		if _, err := w.jsonFile.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		w.jsonCount++
	}

	return nil
}

// Close closes the writer and flushes all data
func (w *Writer) Close() error {
	var errs []error

	if w.csvWriter != nil {
		w.csvWriter.Flush()
	}
	if w.csvFile != nil {
		if err := w.csvFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if w.jsonFile != nil {
		if _, err := w.jsonFile.WriteString("\n]\n"); err != nil {
			errs = append(errs, err)
		}
		if err := w.jsonFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close writer: %v", errs)
	}

	return nil
}

// FormatSummary formats a summary for human-readable output
func FormatSummary(summary *Summary) string {
	var buf string

	buf += fmt.Sprintf("Total Messages: %d\n", summary.TotalMessages)
	if summary.TotalMessages == 0 {
		return buf
	}
	buf += fmt.Sprintf("Sent: %d (%d failed)\n", summary.Sent, summary.FailedSends)
	buf += fmt.Sprintf("Received: %d\n", summary.Received)

	if summary.NotConnected > 0 {
		buf += fmt.Sprintf("Dropped while disconnected: %d\n", summary.NotConnected)
	}
	if summary.WriteFailures > 0 {
		buf += fmt.Sprintf("Write failures: %d\n", summary.WriteFailures)
	}
	if !summary.FirstTimestamp.IsZero() {
		buf += fmt.Sprintf("Window: %s .. %s\n",
			summary.FirstTimestamp.Format(time.RFC3339),
			summary.LastTimestamp.Format(time.RFC3339))
	}

	if summary.MaxBytes > 0 {
		buf += "\nFrame Sizes:\n"
		buf += fmt.Sprintf("  Min: %d B\n", summary.MinBytes)
		buf += fmt.Sprintf("  Max: %d B\n", summary.MaxBytes)
		buf += fmt.Sprintf("  Avg: %.1f B\n", summary.AvgBytes)
		buf += fmt.Sprintf("  P50: %.0f B  P90: %.0f B  P99: %.0f B\n",
			summary.P50Bytes, summary.P90Bytes, summary.P99Bytes)
		buf += fmt.Sprintf("  Buckets: <64B=%d 64-256B=%d 256B-1K=%d 1K-4K=%d >4K=%d\n",
			summary.SizeBuckets["lt_64b"],
			summary.SizeBuckets["64_256b"],
			summary.SizeBuckets["256b_1k"],
			summary.SizeBuckets["1k_4k"],
			summary.SizeBuckets["gt_4k"],
		)
	}

	if len(summary.ByType) > 0 {
		buf += "\nPer-Type Statistics:\n"
		types := make([]string, 0, len(summary.ByType))
		for t := range summary.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			stats := summary.ByType[t]
			buf += fmt.Sprintf("  %s: %d msgs (%d sent, %d received, %d failed)\n",
				t, stats.Count, stats.Sent, stats.Received, stats.Failed)
		}
	}

	return buf
}
