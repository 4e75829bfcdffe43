package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tturner/brushrig/internal/metrics"
)

type ReportOptions struct {
	Runtime RuntimeOptions
	// Path overrides metrics.message_log from the config.
	Path string
	Out  io.Writer
}

// RunReport summarizes a message log written by an earlier session.
func RunReport(opts ReportOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	path := opts.Path
	if path == "" {
		cfg, err := LoadConfig(opts.Runtime)
		if err != nil {
			return err
		}
		path = cfg.Metrics.MessageLog
	}
	if path == "" {
		return fmt.Errorf("no message log given and metrics.message_log is not set")
	}

	records, first, last, err := metrics.ReadMetricsCSV(path)
	if err != nil {
		return fmt.Errorf("read message log: %w", err)
	}

	fmt.Fprintf(out, "Message log: %s\n", path)
	if len(records) > 0 {
		fmt.Fprintf(out, "Duration: %s\n", last.Sub(first).Round(time.Millisecond))
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, metrics.FormatSummary(metrics.Summarize(records)))
	return nil
}
