package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tturner/brushrig/internal/logging"
	"github.com/tturner/brushrig/internal/rigsim"
)

type EmulateOptions struct {
	ConfigPath   string
	Listen       string
	Path         string
	ReplyDelayMs int
	LogLevel     string
	LogFormat    string
}

// RunEmulator serves the rig emulator until interrupted.
func RunEmulator(opts EmulateOptions) error {
	cfg, err := LoadConfig(RuntimeOptions{ConfigPath: opts.ConfigPath, LogLevel: opts.LogLevel})
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Emulator.Listen = opts.Listen
	}
	if opts.Path != "" {
		cfg.Emulator.Path = opts.Path
	}
	if opts.ReplyDelayMs > 0 {
		cfg.Emulator.ReplyDelayMs = opts.ReplyDelayMs
	}
	if opts.LogFormat != "" {
		cfg.Logging.Format = opts.LogFormat
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger, err := logging.NewLoggerWithOptions(logging.Options{
		Level:   level,
		File:    cfg.Logging.File,
		Format:  cfg.Logging.Format,
		Console: true,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	fmt.Fprintf(os.Stdout, "brushrig emulator starting...\n")

	sim := rigsim.New(rigsim.Options{
		Listen:     cfg.Emulator.Listen,
		Path:       cfg.Emulator.Path,
		ReplyDelay: time.Duration(cfg.Emulator.ReplyDelayMs) * time.Millisecond,
		Brushes:    cfg.Panel.Brushes,
	}, logger)
	if err := sim.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to start emulator: %v\n", err)
		return fmt.Errorf("start emulator: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Emulator listening on ws://%s%s\n", sim.Addr(), cfg.Emulator.Path)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintf(os.Stdout, "\nShutting down emulator...\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sim.Stop(ctx); err != nil {
		return fmt.Errorf("stop emulator: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Commands received: %d\n", len(sim.Commands()))
	return nil
}
