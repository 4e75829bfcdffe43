package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	brerrors "github.com/tturner/brushrig/internal/errors"
	"github.com/tturner/brushrig/internal/panel"
	"github.com/tturner/brushrig/internal/presets"
)

type PresetsOptions struct {
	Runtime RuntimeOptions
	Out     io.Writer
}

type PresetSaveOptions struct {
	PresetsOptions
	Name string
	// Rows are "brush:cycles" specs in panel order.
	Rows []string
	// Send also transmits the preset to the rig.
	Send bool
}

func (o *PresetsOptions) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// openStore loads the config and opens only the preset store.
func openStore(opts RuntimeOptions) (*presets.Store, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	return presets.NewStore(cfg.Store.Path, nil), nil
}

// recordingStore keeps the error of the last Save.
type recordingStore struct {
	panel.Store
	err error
}

func (s *recordingStore) Save(name string, rows []presets.Row) error {
	s.err = s.Store.Save(name, rows)
	return s.err
}

// RunPresetsList prints every stored preset with its row count.
func RunPresetsList(opts PresetsOptions) error {
	store, err := openStore(opts.Runtime)
	if err != nil {
		return err
	}

	all := store.All()
	out := opts.out()
	if len(all) == 0 {
		fmt.Fprintf(out, "No presets in %s\n", store.Path())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tROWS\tBRUSHES")
	fmt.Fprintln(w, "----\t----\t-------")
	for _, p := range all {
		brushes := make([]string, 0, len(p.Rows))
		for _, r := range p.Rows {
			brushes = append(brushes, r.BrushName)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, len(p.Rows), strings.Join(brushes, ","))
	}
	return w.Flush()
}

// RunPresetsShow prints the rows of one preset.
func RunPresetsShow(opts PresetsOptions, name string) error {
	store, err := openStore(opts.Runtime)
	if err != nil {
		return err
	}

	rows, ok := store.Get(name)
	if !ok {
		return fmt.Errorf("preset %q not found in %s", name, store.Path())
	}

	out := opts.out()
	fmt.Fprintf(out, "Preset: %s\n", name)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tBRUSH\tCYCLES")
	for i, r := range rows {
		fmt.Fprintf(w, "  %d\t%s\t%d\n", i+1, r.BrushName, r.CycleCount)
	}
	return w.Flush()
}

// ParseRowSpec splits "brush:cycles". The cycle text is kept raw so the
// panel's own parsing applies.
func ParseRowSpec(spec string) (panel.RowInput, error) {
	brush, cycles, ok := strings.Cut(spec, ":")
	if !ok {
		return panel.RowInput{}, fmt.Errorf("row %q: expected brush:cycles", spec)
	}
	return panel.RowInput{Brush: strings.TrimSpace(brush), Cycles: strings.TrimSpace(cycles)}, nil
}

// RunPresetsSave stores a preset and, with Send, transmits it as well.
func RunPresetsSave(opts PresetSaveOptions) error {
	rows := make([]panel.RowInput, 0, len(opts.Rows))
	for _, spec := range opts.Rows {
		row, err := ParseRowSpec(spec)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	out := opts.out()
	notes := &consoleNotifier{out: out}

	if !opts.Send {
		store, err := openStore(opts.Runtime)
		if err != nil {
			return err
		}
		rec := &recordingStore{Store: store}
		ctrl := panel.New(nil, rec, notes, panel.Options{Offline: true}, nil)
		if !ctrl.Save(opts.Name, rows) {
			return saveError(notes, rec, store.Path())
		}
		return nil
	}

	opts.Runtime.Console = true
	rt, err := NewRuntime(opts.Runtime)
	if err != nil {
		return err
	}
	defer rt.Close()

	url := rt.Config.Device.URL
	ctx, cancel := context.WithTimeout(context.Background(), rt.Config.DialTimeout())
	err = rt.Manager.Connect(ctx)
	cancel()
	if err != nil {
		// Save locally anyway so the preset is not lost.
		fmt.Fprintf(os.Stderr, "Connection failed: %v\n", err)
	}

	sender := &recordingSender{inner: rt.Manager}
	rec := &recordingStore{Store: rt.Store}
	ctrl := panel.New(sender, rec, notes, panel.Options{}, rt.Logger)
	if !ctrl.Save(opts.Name, rows) {
		if sender.err != nil {
			fmt.Fprintf(out, "Preset %q stored in %s but not sent\n", strings.TrimSpace(opts.Name), rt.Store.Path())
			return notes.err(url, sender.err)
		}
		return saveError(notes, rec, rt.Store.Path())
	}
	return nil
}

func saveError(notes *consoleNotifier, rec *recordingStore, storePath string) error {
	if rec.err != nil {
		return brerrors.WrapStoreError(rec.err, storePath)
	}
	return notes.err("", nil)
}
