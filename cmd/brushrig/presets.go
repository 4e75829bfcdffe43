package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/brushrig/internal/app"
)

type presetSaveFlags struct {
	rows []string
	send bool
}

func newPresetsCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "presets",
		Aliases: []string{"preset"},
		Short:   "List, show and save configurations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return app.RunPresetsList(app.PresetsOptions{Runtime: root.runtime(false), Out: cmd.OutOrStdout()})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show the rows of a saved configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunPresetsShow(app.PresetsOptions{Runtime: root.runtime(false), Out: cmd.OutOrStdout()}, args[0])
		},
	})

	cmd.AddCommand(newPresetsSaveCmd(root))

	return cmd
}

func newPresetsSaveCmd(root *rootFlags) *cobra.Command {
	flags := &presetSaveFlags{}
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a configuration",
		Long: `Save a named configuration from brush:cycles rows, in panel order.

Rows without a brush ("none") or with a non-positive cycle count are
dropped, exactly as the panel does. An existing configuration with the same
name is replaced.`,
		Example: `  brushrig presets save "Daily soak" --row B1:100 --row B3:50
  brushrig presets save nightly --row B2:500 --send`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(flags.rows) == 0 {
				return missingFlagError(cmd, "--row")
			}
			return app.RunPresetsSave(app.PresetSaveOptions{
				PresetsOptions: app.PresetsOptions{Runtime: root.runtime(false), Out: cmd.OutOrStdout()},
				Name:           args[0],
				Rows:           flags.rows,
				Send:           flags.send,
			})
		},
	}

	cmd.Flags().StringArrayVar(&flags.rows, "row", nil, "Row as brush:cycles (repeatable)")
	cmd.Flags().BoolVar(&flags.send, "send", false, "Also send the configuration to the rig")

	return cmd
}
