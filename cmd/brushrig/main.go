package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/brushrig/internal/app"
	"github.com/tturner/brushrig/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	url        string
	storePath  string
	logLevel   string
	logFile    string
}

func (f *rootFlags) runtime(required bool) app.RuntimeOptions {
	return app.RuntimeOptions{
		ConfigPath:     f.configPath,
		ConfigRequired: required,
		URL:            f.url,
		StorePath:      f.storePath,
		LogLevel:       f.logLevel,
		LogFile:        f.logFile,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "brushrig",
		Short: "Control panel for the brush cycle test rig",
		Long: `brushrig drives a brush cycle test rig over its WebSocket controller.

Test single rows, save named configurations, run saved cycles and send the
emergency stop, either from the interactive panel or from scripts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultPath, "Config file")
	pf.StringVar(&flags.url, "url", "", "Rig controller WebSocket URL (overrides device.url)")
	pf.StringVar(&flags.storePath, "store", "", "Preset file (overrides store.path)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: silent|error|info|verbose|debug")
	pf.StringVar(&flags.logFile, "log", "", "Also write logs to this file")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newUICmd(flags))
	rootCmd.AddCommand(newSendCmd(flags))
	rootCmd.AddCommand(newPresetsCmd(flags))
	rootCmd.AddCommand(newEmulateCmd(flags))
	rootCmd.AddCommand(newInitCmd(flags))
	rootCmd.AddCommand(newReportCmd(flags))

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if cmd != rootCmd {
			desc := cmd.Long
			if desc == "" {
				desc = cmd.Short
			}
			fmt.Fprintf(out, "%s\n\n%s", desc, cmd.UsageString())
			return
		}
		fmt.Fprintf(out, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(out, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden && subCmd.Name() != "help" && subCmd.Name() != "completion" {
				fmt.Fprintf(out, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(out, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})

	return rootCmd
}
