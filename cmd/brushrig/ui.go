package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/brushrig/internal/app"
)

type uiFlags struct {
	offline bool
}

func newUICmd(root *rootFlags) *cobra.Command {
	flags := &uiFlags{}
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive control panel",
		Long: `Launch the terminal control panel.

The panel connects to the rig controller in the background and reconnects
after a lost connection. Each row pairs a brush with a cycle count; test a
row on its own, save all valid rows under a name, or run a saved
configuration. Press ! (or ctrl+x anywhere) for the emergency stop.

Log output goes to the --log file only, since the panel owns the terminal.`,
		Example: `  # Open the panel with brushrig.yaml
  brushrig ui

  # Point at another controller and keep a log
  brushrig ui --url ws://10.0.0.20:8080/ws --log panel.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return app.RunUI(app.UIOptions{
				Runtime: root.runtime(false),
				Offline: flags.offline,
			})
		},
	}

	cmd.Flags().BoolVar(&flags.offline, "offline", false, "Save presets locally without sending them")

	return cmd
}
