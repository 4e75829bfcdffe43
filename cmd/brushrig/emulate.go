package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/brushrig/internal/app"
)

type emulateFlags struct {
	listen       string
	path         string
	replyDelayMs int
	logFormat    string
}

func newEmulateCmd(root *rootFlags) *cobra.Command {
	flags := &emulateFlags{}

	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Run the rig controller emulator",
		Long: `Serve an emulated rig controller WebSocket endpoint.

The emulator answers test, run_cycle and emergency with a response frame,
save_configuration with an ack and anything else with an error. Each new
connection is greeted with a status frame.

Press Ctrl+C to stop the emulator.`,
		Example: `  # Listen on :8080/ws (the panel's default URL)
  brushrig emulate

  # Slow replies down to watch the panel's status line
  brushrig emulate --listen 127.0.0.1:9000 --reply-delay-ms 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return app.RunEmulator(app.EmulateOptions{
				ConfigPath:   root.configPath,
				Listen:       flags.listen,
				Path:         flags.path,
				ReplyDelayMs: flags.replyDelayMs,
				LogLevel:     root.logLevel,
				LogFormat:    flags.logFormat,
			})
		},
	}

	cmd.Flags().StringVar(&flags.listen, "listen", "", "Listen address (default from emulator.listen, :8080)")
	cmd.Flags().StringVar(&flags.path, "path", "", "WebSocket path (default /ws)")
	cmd.Flags().IntVar(&flags.replyDelayMs, "reply-delay-ms", 0, "Delay before each reply")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "Log format: text|json")

	return cmd
}
