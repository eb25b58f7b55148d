package control

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/entrhq/renewbot/pkg/logging"
	"github.com/entrhq/renewbot/pkg/types"
)

// Listener reads operator commands line by line and applies them to an
// AutomationControl. It never touches the browser.
type Listener struct {
	control   *AutomationControl
	in        io.Reader
	out       io.Writer
	stopOnEOF bool
	status    func() string
	emit      types.EventEmitter
	logger    *logging.Logger
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithStopOnEOF sets whether the end of input stops the run (default true).
func WithStopOnEOF(stop bool) ListenerOption {
	return func(l *Listener) {
		l.stopOnEOF = stop
	}
}

// WithStatus sets the function that renders the status command's reply.
func WithStatus(status func() string) ListenerOption {
	return func(l *Listener) {
		l.status = status
	}
}

// WithEmitter forwards every applied command as a control event.
func WithEmitter(emit types.EventEmitter) ListenerOption {
	return func(l *Listener) {
		l.emit = emit
	}
}

// WithLogger sets the debug logger.
func WithLogger(logger *logging.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener reading from in and replying to out.
func NewListener(control *AutomationControl, in io.Reader, out io.Writer, opts ...ListenerOption) *Listener {
	l := &Listener{
		control:   control,
		in:        in,
		out:       out,
		stopOnEOF: true,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.out == nil {
		l.out = io.Discard
	}
	return l
}

// Run reads commands until the input ends, the run is stopped, or ctx is
// done. Reading happens on a helper goroutine so that a blocked read never
// holds Run past cancellation.
func (l *Listener) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(l.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.control.Stopped():
			return nil
		case line := <-lines:
			cmd, ok := types.ParseCommand(line)
			if !ok {
				continue
			}
			if reply := l.Apply(cmd); reply != "" {
				fmt.Fprintln(l.out, reply)
			}
		case err := <-readErr:
			if err != nil {
				l.logger.Warnf("command input failed: %v", err)
			}
			if l.stopOnEOF {
				l.logger.Infof("command input closed, stopping run")
				l.control.Stop()
				l.notify("input closed, stopping after the current stage")
			}
			return err
		}
	}
}

// Apply performs one command and returns the reply for the operator.
func (l *Listener) Apply(cmd types.Command) string {
	var reply string
	switch cmd.Type {
	case types.CommandPause:
		if l.control.Pause() {
			reply = "pausing at the next safe point; 'r' to resume"
		} else {
			reply = "already paused"
		}
	case types.CommandResume:
		if l.control.Resume() {
			reply = "resumed"
		} else {
			reply = "not paused"
		}
	case types.CommandStop:
		l.control.Stop()
		reply = "stopping after the current stage"
	case types.CommandSkip:
		l.control.RequestSkip()
		reply = "skipping the current client at the next safe point"
	case types.CommandStatus:
		return l.statusLine()
	case types.CommandHelp:
		return types.CommandHelpText
	default:
		return fmt.Sprintf("unknown command %q; %s", cmd.Raw, types.CommandHelpText)
	}
	l.logger.Infof("operator command %s: %s", cmd.Type, reply)
	l.notify(reply)
	return reply
}

func (l *Listener) statusLine() string {
	state := "running"
	switch {
	case l.control.IsStopped():
		state = "stopping"
	case l.control.IsPaused():
		state = "paused"
	}
	if l.status == nil {
		return state
	}
	return fmt.Sprintf("%s, %s", state, l.status())
}

func (l *Listener) notify(message string) {
	if l.emit != nil {
		l.emit(types.NewControlEvent(message))
	}
}
