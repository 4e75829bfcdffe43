package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	brerrors "github.com/tturner/brushrig/internal/errors"
	"github.com/tturner/brushrig/internal/panel"
	"github.com/tturner/brushrig/internal/protocol"
)

// Commands accepted by RunSend.
const (
	SendTest      = "test"
	SendEmergency = "emergency"
	SendRun       = "run"
)

type SendOptions struct {
	Runtime RuntimeOptions
	Command string

	// test
	Row    int // 1-based, as printed on the panel
	Brush  string
	Cycles string

	// run
	Preset string

	// Wait is how long to wait for the first reply; 0 skips waiting.
	Wait time.Duration
	Out  io.Writer
}

// consoleNotifier prints notices and keeps the last failure so the command
// can exit non-zero.
type consoleNotifier struct {
	out    io.Writer
	failed string
	alert  string
}

func (n *consoleNotifier) Notice(note panel.Notice) {
	if note.Kind == panel.KindError {
		n.failed = note.Text
		return
	}
	fmt.Fprintln(n.out, note.Text)
}

func (n *consoleNotifier) Alert(text string) {
	n.alert = text
}

func (n *consoleNotifier) err(url string, sendErr error) error {
	if n.alert != "" {
		if sendErr == nil {
			return brerrors.WrapConnectionError(fmt.Errorf("%s", n.alert), url)
		}
		return brerrors.WrapConnectionError(fmt.Errorf("%s: %w", n.alert, sendErr), url)
	}
	if n.failed != "" {
		return fmt.Errorf("%s", n.failed)
	}
	return nil
}

// recordingSender remembers the transport error the controller swallowed.
type recordingSender struct {
	inner panel.Sender
	err   error
}

func (s *recordingSender) Send(message any) error {
	s.err = s.inner.Send(message)
	return s.err
}

// RunSend connects, sends one command and prints the first reply.
func RunSend(opts SendOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	switch opts.Command {
	case SendTest:
		if opts.Row < 1 {
			return fmt.Errorf("row must be >= 1, got %d", opts.Row)
		}
	case SendEmergency:
	case SendRun:
		if opts.Preset == "" {
			return fmt.Errorf("preset name is required")
		}
	default:
		return fmt.Errorf("unknown command %q; must be test, emergency or run", opts.Command)
	}

	opts.Runtime.Console = true
	rt, err := NewRuntime(opts.Runtime)
	if err != nil {
		return err
	}
	defer rt.Close()

	url := rt.Config.Device.URL
	replies := make(chan protocol.Inbound, 16)
	rt.Manager.OnMessage(func(in protocol.Inbound) {
		select {
		case replies <- in:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), rt.Config.DialTimeout())
	err = rt.Manager.Connect(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nTroubleshooting tips:\n")
		fmt.Fprintf(os.Stderr, "  - Verify the rig controller is powered on\n")
		fmt.Fprintf(os.Stderr, "  - Check the URL scheme and path (%s)\n", url)
		fmt.Fprintf(os.Stderr, "  - Try the emulator: brushrig emulate --listen :8080\n")
		return brerrors.WrapConnectionError(err, url)
	}

	notes := &consoleNotifier{out: opts.Out}
	sender := &recordingSender{inner: rt.Manager}
	ctrl := panel.New(sender, rt.Store, notes, panel.Options{}, rt.Logger)

	var ok bool
	switch opts.Command {
	case SendTest:
		ok = ctrl.Test(opts.Row-1, opts.Brush, opts.Cycles)
	case SendEmergency:
		ok = ctrl.Emergency()
	case SendRun:
		ok = ctrl.RunCycle(opts.Preset)
	}
	if !ok {
		return notes.err(url, sender.err)
	}

	if opts.Wait <= 0 {
		return nil
	}
	in, ok := awaitReply(replies, opts.Wait)
	if !ok {
		fmt.Fprintf(opts.Out, "No reply within %s\n", opts.Wait)
		return nil
	}
	fmt.Fprintf(opts.Out, "Reply: %s\n", in.Status)
	rt.Logger.Verbose("reply frame: %s", in.Raw)
	return nil
}

// awaitReply returns the first frame that is not a status push. The rig
// greets every connection with a status frame, which may arrive after the
// command went out; it is only returned when nothing else comes.
func awaitReply(ch <-chan protocol.Inbound, wait time.Duration) (protocol.Inbound, bool) {
	timeout := time.After(wait)
	var status protocol.Inbound
	seen := false
	for {
		select {
		case in := <-ch:
			if in.Type != string(protocol.TypeStatus) {
				return in, true
			}
			status, seen = in, true
		case <-timeout:
			return status, seen
		}
	}
}
