package app

import (
	"github.com/tturner/brushrig/internal/tui"
)

type UIOptions struct {
	Runtime RuntimeOptions
	Offline bool
}

// RunUI starts the interactive panel. Logs go to the configured file only
// since the panel owns the terminal.
func RunUI(opts UIOptions) error {
	opts.Runtime.Console = false
	rt, err := NewRuntime(opts.Runtime)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.Config
	return tui.Run(rt.Manager, rt.Store, tui.RunOptions{
		Brushes:       cfg.BrushOptions(),
		Rows:          cfg.Panel.Rows,
		Offline:       cfg.Panel.Offline || opts.Offline,
		ToastDuration: cfg.ToastDuration(),
	}, rt.Logger)
}
