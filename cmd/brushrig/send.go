package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/brushrig/internal/app"
)

const defaultWait = 2 * time.Second

type sendFlags struct {
	row    int
	brush  string
	cycles string
	preset string
	wait   time.Duration
}

func newSendCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one command to the rig",
		Long: `Connect to the rig controller, send a single command, print the status
line of the first reply and disconnect.`,
	}

	cmd.AddCommand(newSendTestCmd(root))
	cmd.AddCommand(newSendEmergencyCmd(root))
	cmd.AddCommand(newSendRunCmd(root))

	return cmd
}

func newSendTestCmd(root *rootFlags) *cobra.Command {
	flags := &sendFlags{}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test one row",
		Example: `  brushrig send test --row 1 --brush B2 --cycles 25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.brush == "" {
				return missingFlagError(cmd, "--brush")
			}
			if flags.cycles == "" {
				return missingFlagError(cmd, "--cycles")
			}
			return app.RunSend(app.SendOptions{
				Runtime: root.runtime(false),
				Command: app.SendTest,
				Row:     flags.row,
				Brush:   flags.brush,
				Cycles:  flags.cycles,
				Wait:    flags.wait,
				Out:     cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().IntVar(&flags.row, "row", 1, "Row number (1-based)")
	cmd.Flags().StringVar(&flags.brush, "brush", "", "Brush name (required)")
	cmd.Flags().StringVar(&flags.cycles, "cycles", "", "Cycle count (required)")
	cmd.Flags().DurationVar(&flags.wait, "wait", defaultWait, "How long to wait for a reply (0 = don't wait)")

	return cmd
}

func newSendEmergencyCmd(root *rootFlags) *cobra.Command {
	flags := &sendFlags{}
	cmd := &cobra.Command{
		Use:     "emergency",
		Aliases: []string{"stop"},
		Short:   "Send the emergency stop (STOP_ALL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return app.RunSend(app.SendOptions{
				Runtime: root.runtime(false),
				Command: app.SendEmergency,
				Wait:    flags.wait,
				Out:     cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().DurationVar(&flags.wait, "wait", defaultWait, "How long to wait for a reply (0 = don't wait)")

	return cmd
}

func newSendRunCmd(root *rootFlags) *cobra.Command {
	flags := &sendFlags{}
	cmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "Run a saved configuration",
		Example: `  brushrig send run "Daily soak"
  brushrig send run --preset nightly --wait 5s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.preset == "" && len(args) > 0 {
				flags.preset = args[0]
			}
			if flags.preset == "" {
				return missingFlagError(cmd, "--preset")
			}
			return app.RunSend(app.SendOptions{
				Runtime: root.runtime(false),
				Command: app.SendRun,
				Preset:  flags.preset,
				Wait:    flags.wait,
				Out:     cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVar(&flags.preset, "preset", "", "Saved configuration name")
	cmd.Flags().DurationVar(&flags.wait, "wait", defaultWait, "How long to wait for a reply (0 = don't wait)")

	return cmd
}
