package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/brushrig/internal/app"
)

func newReportCmd(root *rootFlags) *cobra.Command {
	var logPath string

	cmd := &cobra.Command{
		Use:   "report [message-log.csv]",
		Short: "Summarize a message log",
		Long: `Read a message log written through metrics.message_log and print totals,
failed sends, frame sizes and per-type counts.`,
		Example: `  brushrig report messages.csv`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if logPath == "" && len(args) > 0 {
				logPath = args[0]
			}
			return app.RunReport(app.ReportOptions{
				Runtime: root.runtime(false),
				Path:    logPath,
				Out:     cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVar(&logPath, "input", "", "Message log CSV (default metrics.message_log)")

	return cmd
}
