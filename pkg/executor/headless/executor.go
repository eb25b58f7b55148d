package headless

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/control"
	"github.com/entrhq/renewbot/pkg/logging"
	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/entrhq/renewbot/pkg/roster"
	"github.com/entrhq/renewbot/pkg/types"
	"github.com/entrhq/renewbot/pkg/workflow"
)

// Executor runs one renewal pass over the roster of an attached browser
type Executor struct {
	session        browser.Session
	config         *Config
	approved       plan.ApprovalSet
	profile        string
	referenceFile  string
	console        *Logger
	logger         *logging.Logger
	artifactWriter *ArtifactWriter
	control        *control.AutomationControl
	progress       *control.Progress

	commands  io.Reader
	replies   io.Writer
	clipboard workflow.Clipboard
	stages    []workflow.Stage

	summary *RunSummary
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithProfile names the operator profile in the report
func WithProfile(name string) ExecutorOption {
	return func(e *Executor) {
		e.profile = name
	}
}

// WithReferenceFile records the operator's reference file in the report
func WithReferenceFile(path string) ExecutorOption {
	return func(e *Executor) {
		e.referenceFile = path
	}
}

// WithConsole sets the console logger
func WithConsole(console *Logger) ExecutorOption {
	return func(e *Executor) {
		e.console = console
	}
}

// WithDebugLogger sets the file-backed debug logger
func WithDebugLogger(logger *logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithCommands reads operator commands from in and writes replies to out
// while the run is in progress
func WithCommands(in io.Reader, out io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.commands = in
		e.replies = out
	}
}

// WithControl shares an existing control surface
func WithControl(ctrl *control.AutomationControl) ExecutorOption {
	return func(e *Executor) {
		e.control = ctrl
	}
}

// WithClipboard replaces the system clipboard
func WithClipboard(cb workflow.Clipboard) ExecutorOption {
	return func(e *Executor) {
		e.clipboard = cb
	}
}

// WithStages replaces the stage list
func WithStages(stages []workflow.Stage) ExecutorOption {
	return func(e *Executor) {
		e.stages = stages
	}
}

// NewExecutor creates an executor over an attached session
func NewExecutor(session browser.Session, config *Config, approved plan.ApprovalSet, opts ...ExecutorOption) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if approved.Len() == 0 {
		return nil, fmt.Errorf("at least one carrier must be approved")
	}

	e := &Executor{
		session:  session,
		config:   config,
		approved: approved,
		progress: control.NewProgress(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.console == nil {
		e.console = NewLogger(ParseLogLevel(config.LogLevel))
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	if e.control == nil {
		e.control = control.New()
	}
	e.artifactWriter = NewArtifactWriter(config.ArtifactDir)
	e.summary = &RunSummary{
		RunID:         e.logger.RunID(),
		Profile:       e.profile,
		Carriers:      approved.Strings(),
		ListURL:       config.ListURL,
		ReferenceFile: e.referenceFile,
		Status:        "running",
	}
	return e, nil
}

// Control returns the control surface of the run
func (e *Executor) Control() *control.AutomationControl {
	return e.control
}

// Summary returns the run summary. It is complete once Run returns.
func (e *Executor) Summary() *RunSummary {
	return e.summary
}

// Run processes the roster and writes the artifacts on every exit path,
// including a panic inside the engine, which is re-raised afterwards. The
// returned error is non-nil only for run-fatal failures; a run stopped by
// the operator or by ctx cancellation is not one.
func (e *Executor) Run(ctx context.Context) error {
	e.summary.StartTime = time.Now()
	e.logger.Infof("starting run %s for %s", e.summary.RunID, e.config.ListURL)

	e.console.Header("Insurance Renewal Run")
	if e.profile != "" {
		e.console.Infof("Profile: %s", e.profile)
	}
	e.console.Infof("Approved carriers: %s", e.approved)

	table := roster.NewTable(e.session, e.config.RowsPerPass, e.logger.With("roster"))

	seqOpts := []workflow.Option{
		workflow.WithLogger(e.logger.With("workflow")),
		workflow.WithEmitter(e.emit),
	}
	if e.clipboard != nil {
		seqOpts = append(seqOpts, workflow.WithClipboard(e.clipboard))
	}
	if e.stages != nil {
		seqOpts = append(seqOpts, workflow.WithStages(e.stages))
	}
	seq := workflow.New(e.config.RunConfiguration(e.approved), e.session, e.control, table, seqOpts...)

	reconciler := roster.NewReconciler(table, e.session, seq, e.control, e.progress,
		roster.Options{SettleDelay: seq.Config().SettleDelay}, e.logger.With("reconciler"), e.emit)

	if e.commands != nil {
		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		listener := control.NewListener(e.control, e.commands, e.replies,
			control.WithStopOnEOF(e.config.StopOnEOF),
			control.WithStatus(e.progress.String),
			control.WithEmitter(e.emit),
			control.WithLogger(e.logger.With("control")),
		)
		e.console.Infof("Commands: p=pause r=resume s=stop n=skip status help")
		go func() {
			if err := listener.Run(listenCtx); err != nil {
				e.logger.Debugf("command listener ended: %v", err)
			}
		}()
	}

	e.console.Section("Processing clients")

	finalized := false
	defer func() {
		if finalized {
			return
		}
		if r := recover(); r != nil {
			e.logger.Errorf("engine panic: %v", r)
			_ = e.finalize(reconciler.Records(), fmt.Errorf("engine panic: %v", r))
			panic(r)
		}
	}()

	records, err := reconciler.Run(ctx)
	finalized = true
	return e.finalize(records, err)
}

func (e *Executor) emit(event *types.RunEvent) {
	if event.Type == types.EventTypeRunStarted {
		e.summary.Total = event.Total
	}
	if event.IsFailure() {
		e.logger.Warnf("%s %s: %v", event.Type, event.Stage, event.Error)
	}
	e.console.Event(event)
}

// finalize completes the summary and generates artifacts
func (e *Executor) finalize(records []*types.ClientRecord, runErr error) error {
	e.summary.EndTime = time.Now()
	e.summary.Duration = e.summary.EndTime.Sub(e.summary.StartTime)

	e.summary.Records = make([]AuditRecord, 0, len(records))
	for _, r := range records {
		e.summary.Records = append(e.summary.Records, NewAuditRecord(r))
	}
	e.summary.Metrics = ComputeMetrics(records, e.summary.Duration)
	e.summary.Warnings = e.summary.Metrics.Check(e.config.Thresholds)
	e.summary.Status = runStatus(runErr, e.summary.Metrics)
	if runErr != nil {
		e.summary.Error = runErr.Error()
	}

	if err := e.artifactWriter.WriteAll(e.summary); err != nil {
		e.console.Warningf("failed to write artifacts: %v", err)
		e.logger.Errorf("failed to write artifacts: %v", err)
	} else {
		dir, _ := filepath.Abs(e.artifactWriter.Dir())
		e.console.Verbosef("Artifacts written to %s", dir)
	}

	e.console.Summary(e.summary)
	for _, w := range e.summary.Warnings {
		e.logger.Warnf("%s", w)
	}
	e.logger.Infof("run finished: %s (duration: %s)", e.summary.Status, e.summary.Duration)

	if e.summary.Status == statusFailed {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}
