package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tturner/brushrig/internal/config"
)

type initFlags struct {
	defaults bool
	force    bool
}

// initAnswers holds the wizard's raw input.
type initAnswers struct {
	URL         string
	Rows        string
	Brushes     string
	StorePath   string
	MaxAttempts string
	Offline     bool
	LogFile     string
}

func newInitCmd(root *rootFlags) *cobra.Command {
	flags := &initFlags{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file interactively",
		Long: `Ask for the controller URL, panel layout and preset file, then write the
answers to the --config path (brushrig.yaml by default).`,
		Example: `  brushrig init
  brushrig init --defaults --config lab2.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			path := root.configPath
			if path == "" {
				path = config.DefaultPath
			}
			if !flags.force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}

			answers := defaultAnswers(config.CreateDefaultConfig())
			if !flags.defaults {
				if err := buildInitForm(&answers).Run(); err != nil {
					return fmt.Errorf("init form: %w", err)
				}
			}
			cfg, err := configFromAnswers(answers)
			if err != nil {
				return err
			}
			if err := config.WriteConfig(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.defaults, "defaults", false, "Write the defaults without asking")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Overwrite an existing config file")

	return cmd
}

func defaultAnswers(cfg *config.Config) initAnswers {
	return initAnswers{
		URL:         cfg.Device.URL,
		Rows:        strconv.Itoa(cfg.Panel.Rows),
		Brushes:     strings.Join(cfg.Panel.Brushes, ","),
		StorePath:   cfg.Store.Path,
		MaxAttempts: strconv.Itoa(cfg.Reconnect.MaxAttempts),
		Offline:     cfg.Panel.Offline,
		LogFile:     cfg.Logging.File,
	}
}

func buildInitForm(a *initAnswers) *huh.Form {
	deviceGroup := huh.NewGroup(
		huh.NewInput().
			Title("Rig controller URL").
			Description("WebSocket endpoint, ws:// or wss://").
			Key("url").
			Validate(func(s string) error {
				cfg := config.CreateDefaultConfig()
				cfg.Device.URL = strings.TrimSpace(s)
				return config.Validate(cfg)
			}).
			Value(&a.URL),
		huh.NewInput().
			Title("Reconnect attempts").
			Description("Attempts after a lost connection (0 = keep trying).").
			Key("max_attempts").
			Validate(nonNegativeInt).
			Value(&a.MaxAttempts),
	)

	panelGroup := huh.NewGroup(
		huh.NewInput().
			Title("Rows").
			Description("Brush/cycle rows shown on the panel (1-16).").
			Key("rows").
			Validate(nonNegativeInt).
			Value(&a.Rows),
		huh.NewInput().
			Title("Brushes").
			Description("Comma-separated brush names.").
			Key("brushes").
			Value(&a.Brushes),
		huh.NewConfirm().
			Title("Offline mode").
			Description("Save configurations locally without sending them.").
			Key("offline").
			Value(&a.Offline),
	)

	storageGroup := huh.NewGroup(
		huh.NewInput().
			Title("Preset file").
			Description("JSON file holding saved configurations.").
			Key("store").
			Value(&a.StorePath),
		huh.NewInput().
			Title("Log file (optional)").
			Description("The panel logs only to this file.").
			Key("log_file").
			Value(&a.LogFile),
	)

	return huh.NewForm(deviceGroup, panelGroup, storageGroup)
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number")
	}
	return nil
}

// configFromAnswers builds and validates a config from wizard input.
func configFromAnswers(a initAnswers) (*config.Config, error) {
	cfg := config.CreateDefaultConfig()
	cfg.Device.URL = strings.TrimSpace(a.URL)

	rows, err := strconv.Atoi(strings.TrimSpace(a.Rows))
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	cfg.Panel.Rows = rows

	attempts, err := strconv.Atoi(strings.TrimSpace(a.MaxAttempts))
	if err != nil {
		return nil, fmt.Errorf("reconnect attempts: %w", err)
	}
	cfg.Reconnect.MaxAttempts = attempts

	var brushes []string
	for _, b := range strings.Split(a.Brushes, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brushes = append(brushes, b)
		}
	}
	if len(brushes) > 0 {
		cfg.Panel.Brushes = brushes
	}

	if store := strings.TrimSpace(a.StorePath); store != "" {
		cfg.Store.Path = store
	}
	cfg.Panel.Offline = a.Offline
	cfg.Logging.File = strings.TrimSpace(a.LogFile)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
