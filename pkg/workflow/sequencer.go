// Package workflow advances one client at a time through the renewal flow.
//
// The flow is a fixed list of stages. Each stage declares whether its failure
// ends the client, whether it only runs on a branch (female applicants, the
// short finalize path, direct enrollment versus a plan change), its retry
// budget, and whether the operator's pause, skip and stop commands are
// honored after it. Whatever happens, the browser is returned to the roster
// tab and the client's roster row is hidden before Process returns.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/control"
	"github.com/entrhq/renewbot/pkg/locator"
	"github.com/entrhq/renewbot/pkg/logging"
	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/entrhq/renewbot/pkg/types"
)

// maxReasonLen bounds failure messages kept on records and in logs.
const maxReasonLen = 200

// RowHider hides a handled client's roster row.
type RowHider interface {
	Hide(ctx context.Context, row int, fullName string) error
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the debug logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// WithEmitter receives stage and client events.
func WithEmitter(emit types.EventEmitter) Option {
	return func(s *Sequencer) {
		s.emit = emit
	}
}

// WithClipboard replaces the system clipboard used by the signature stage.
func WithClipboard(cb Clipboard) Option {
	return func(s *Sequencer) {
		s.clipboard = cb
	}
}

// WithClock replaces time.Now for record timestamps and screenshot names.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) {
		s.now = now
	}
}

// WithStages replaces the stage list.
func WithStages(stages []Stage) Option {
	return func(s *Sequencer) {
		s.stages = stages
	}
}

// Sequencer runs clients through the stage list on one browser session.
type Sequencer struct {
	cfg       RunConfiguration
	session   browser.Session
	resolver  *locator.Resolver
	plans     *plan.Engine
	surface   control.Surface
	hider     RowHider
	clipboard Clipboard
	stages    []Stage
	logger    *logging.Logger
	emit      types.EventEmitter
	now       func() time.Time
}

// New creates a sequencer. cfg is copied; later changes to the caller's value
// have no effect.
func New(cfg RunConfiguration, session browser.Session, surface control.Surface, hider RowHider, opts ...Option) *Sequencer {
	s := &Sequencer{
		cfg:       cfg.normalized(),
		session:   session,
		surface:   surface,
		hider:     hider,
		clipboard: SystemClipboard{},
		logger:    logging.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.stages == nil {
		s.stages = Stages()
	}
	s.resolver = locator.New(session, s.cfg.ResolverOptions(), s.logger.With("locator"))
	s.plans = plan.NewEngine(s.resolver, s.cfg.Controls, s.cfg.Approved, s.cfg.PlanOptions(), s.logger.With("plan"))
	return s
}

// Config returns the run configuration in effect.
func (s *Sequencer) Config() RunConfiguration {
	return s.cfg
}

// Resolver returns the locator the stages use.
func (s *Sequencer) Resolver() *locator.Resolver {
	return s.resolver
}

func (s *Sequencer) control(name string) locator.Target {
	return s.cfg.Controls.Get(name)
}

// optional returns a control bounded by the short timeout.
func (s *Sequencer) optional(name string) locator.Target {
	return s.control(name).Within(s.cfg.ShortTimeout)
}

// Process runs one client through the stages and always leaves the record
// with a terminal outcome and its roster row hidden. The returned error is
// non-nil only when the whole run must end: the operator stopped it, ctx
// was cancelled, or the browser session is gone.
func (s *Sequencer) Process(ctx context.Context, record *types.ClientRecord) (err error) {
	if record.AttemptID == "" {
		record.AttemptID = types.NewAttemptID()
	}
	record.Start(s.now())
	s.notify(types.NewClientStartedEvent(record))
	s.logger.Infof("processing %s (row %d, attempt %s)", record.FullName, record.Row, record.AttemptID)

	c := &Client{Record: record}
	defer func() {
		if cleanupErr := s.cleanup(ctx, c); cleanupErr != nil && err == nil {
			err = cleanupErr
		}
		s.finish(c, types.OutcomeError, "finished without an outcome")
		s.logger.Infof("finished %s in %s", record, record.Duration().Round(time.Millisecond))
		s.notify(types.NewClientFinishedEvent(record))
	}()

	if done, stopErr := s.safePoint(ctx, c); done {
		return stopErr
	}

	for _, st := range s.stages {
		if st.When != nil && !st.When(c) {
			s.logger.Debugf("%s: %s not applicable", record.FullName, st.Name)
			continue
		}

		if stageErr := s.runStage(ctx, st, c); stageErr != nil {
			if done, fatal := s.handleFailure(st, c, stageErr); done {
				return fatal
			}
		}

		if st.SafePoint {
			if done, stopErr := s.safePoint(ctx, c); done {
				return stopErr
			}
		}
	}

	s.finish(c, types.OutcomeCompleted, "")
	return nil
}

// safePoint consults the control surface. done reports whether the client
// has ended; err is set when the run must end too.
func (s *Sequencer) safePoint(ctx context.Context, c *Client) (done bool, err error) {
	switch s.surface.CheckSafePoint(ctx) {
	case control.Skip:
		s.logger.Warnf("%s: skipped by operator", c.Record.FullName)
		s.finish(c, types.OutcomeSkippedByOperator, "skipped by operator")
		return true, nil
	case control.Stop:
		s.logger.Warnf("%s: run stopped", c.Record.FullName)
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.finish(c, types.OutcomeError, "run cancelled")
			return true, ctxErr
		}
		s.finish(c, types.OutcomeError, "stopped by operator")
		return true, control.ErrStopped
	default:
		return false, nil
	}
}

func (s *Sequencer) runStage(ctx context.Context, st Stage, c *Client) error {
	attempts := st.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		s.notify(types.NewStageStartedEvent(c.Record, st.Name))
		s.logger.Debugf("%s: %s (attempt %d/%d)", c.Record.FullName, st.Name, attempt, attempts)

		err = st.Run(ctx, s, c)
		if err == nil {
			s.notify(types.NewStageCompletedEvent(c.Record, st.Name))
			return nil
		}
		if _, ok := AsOutcome(err); ok || locator.IsFatal(err) {
			return err
		}
		if attempt < attempts {
			s.logger.Warnf("%s: %s attempt %d/%d failed: %s", c.Record.FullName, st.Name, attempt, attempts, logging.Truncate(err.Error(), maxReasonLen))
			if err := locator.Sleep(ctx, s.cfg.RetryInterval); err != nil {
				return err
			}
		}
	}
	return err
}

// handleFailure records the consequence of a failed stage. done reports
// whether the client has ended; fatal is set when the run must end.
func (s *Sequencer) handleFailure(st Stage, c *Client, err error) (done bool, fatal error) {
	name := c.Record.FullName

	if oe, ok := AsOutcome(err); ok {
		s.logger.Infof("%s: %s ended the client: %s", name, st.Name, oe)
		if oe.Outcome == types.OutcomeError {
			s.notify(types.NewStageFailedEvent(c.Record, st.Name, err))
			s.screenshot(c)
		}
		s.finish(c, oe.Outcome, oe.Reason)
		return true, nil
	}

	reason := fmt.Sprintf("%s: %s", st.Name, logging.Truncate(err.Error(), maxReasonLen))

	if locator.IsFatal(err) {
		s.logger.Errorf("%s: %s aborted the run: %v", name, st.Name, err)
		s.notify(types.NewStageFailedEvent(c.Record, st.Name, err))
		if errors.Is(err, browser.ErrSessionLost) {
			s.finish(c, types.OutcomeError, reason)
		} else {
			s.finish(c, types.OutcomeError, "run cancelled")
		}
		return true, err
	}

	if st.Policy == BestEffort {
		s.logger.Warnf("%s: %s did not complete, continuing: %s", name, st.Name, logging.Truncate(err.Error(), maxReasonLen))
		s.notify(types.NewStageSkippedEvent(c.Record, st.Name, err))
		return false, nil
	}

	s.logger.Errorf("%s: %s failed: %s", name, st.Name, logging.Truncate(err.Error(), maxReasonLen))
	s.notify(types.NewStageFailedEvent(c.Record, st.Name, err))
	s.screenshot(c)
	s.finish(c, types.OutcomeError, reason)
	return true, nil
}

func (s *Sequencer) finish(c *Client, outcome types.Outcome, reason string) {
	if c.Record.Finish(outcome, reason, s.now()) {
		s.logger.Infof("%s: outcome %s", c.Record.FullName, c.Record.Outcome)
	}
}

func (s *Sequencer) notify(event *types.RunEvent) {
	if s.emit != nil {
		s.emit(event)
	}
}
