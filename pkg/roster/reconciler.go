package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/control"
	"github.com/entrhq/renewbot/pkg/locator"
	"github.com/entrhq/renewbot/pkg/logging"
	"github.com/entrhq/renewbot/pkg/types"
)

const (
	// stuckAfter is how many passes in a row the last attempted client may
	// still be the first visible row before it is force-skipped.
	stuckAfter = 2

	// extraPasses is the slack over the roster size for passes that
	// process nobody (processed or stuck rows being hidden).
	extraPasses = 5

	stuckReason = "stuck in loop: row kept reappearing, likely missing identity data"
)

// Roster reads and hides roster rows.
type Roster interface {
	Visible(ctx context.Context) ([]Row, error)
	Hide(ctx context.Context, row int, fullName string) error
}

// Processor runs one client to a terminal outcome.
type Processor interface {
	Process(ctx context.Context, record *types.ClientRecord) error
}

// Options tunes the loop.
type Options struct {
	// SettleDelay is waited after the roster reload between clients.
	SettleDelay time.Duration
}

// Reconciler is the outer loop of a run.
type Reconciler struct {
	roster   Roster
	session  browser.Session
	proc     Processor
	control  *control.AutomationControl
	progress *control.Progress
	opts     Options
	logger   *logging.Logger
	emit     types.EventEmitter

	records []*types.ClientRecord
	byName  map[string]*types.ClientRecord
}

// NewReconciler creates the loop. progress may be shared with the command
// listener for status output.
func NewReconciler(roster Roster, session browser.Session, proc Processor, ctrl *control.AutomationControl, progress *control.Progress, opts Options, logger *logging.Logger, emit types.EventEmitter) *Reconciler {
	if logger == nil {
		logger = logging.Discard()
	}
	if progress == nil {
		progress = control.NewProgress(0)
	}
	if ctrl == nil {
		ctrl = control.New()
	}
	return &Reconciler{
		roster:   roster,
		session:  session,
		proc:     proc,
		control:  ctrl,
		progress: progress,
		opts:     opts,
		logger:   logger,
		emit:     emit,
		byName:   make(map[string]*types.ClientRecord),
	}
}

// Records returns the terminal records in the order they finished.
func (r *Reconciler) Records() []*types.ClientRecord {
	out := make([]*types.ClientRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Run processes the roster until it is empty, every client counted at the
// start has been attempted, the pass budget is spent, or the run is stopped.
// The records gathered so far are returned on every path. A non-nil error
// means the run ended early: the operator stopped it, ctx was cancelled, or
// the browser session was lost.
func (r *Reconciler) Run(ctx context.Context) ([]*types.ClientRecord, error) {
	if err := r.session.Switch(r.session.Main()); err != nil {
		return r.Records(), fmt.Errorf("main tab: %w", err)
	}
	initial, err := r.roster.Visible(ctx)
	if err != nil {
		return r.Records(), err
	}
	total := len(initial)
	r.progress.SetTotal(total)
	r.notify(types.NewRunStartedEvent(total))
	r.logger.Infof("found %d clients", total)

	err = r.loop(ctx, total)
	if errors.Is(err, browser.ErrSessionLost) {
		r.logger.Errorf("browser session lost, stopping: %v", err)
		r.control.Stop()
	}
	attempted, _, _, _ := r.progress.Snapshot()
	r.notify(types.NewRunFinishedEvent(attempted, total, err))
	return r.Records(), err
}

func (r *Reconciler) loop(ctx context.Context, total int) error {
	if total == 0 {
		return nil
	}

	attempted := 0
	last := ""
	repeats := 0
	idle := false

	for pass := 1; pass <= total+extraPasses; pass++ {
		if err := r.control.Gate(ctx); err != nil {
			return err
		}
		if err := r.session.Switch(r.session.Main()); err != nil {
			return fmt.Errorf("main tab: %w", err)
		}

		rows, err := r.roster.Visible(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			r.logger.Infof("roster is empty")
			return nil
		}
		if attempted >= total {
			r.logger.Infof("attempted all %d clients", total)
			return nil
		}

		if rows[0].FullName == last {
			repeats++
		} else {
			repeats = 0
		}
		if repeats >= stuckAfter {
			if err := r.forceSkip(ctx, rows[0], repeats); err != nil {
				return err
			}
			repeats = 0
			continue
		}

		row, ok, err := r.next(ctx, rows)
		if err != nil {
			return err
		}
		if !ok {
			// Hiding may reveal more rows; a second idle pass means it did not.
			if idle {
				r.logger.Infof("every visible row already handled, %d of %d clients attempted", attempted, total)
				return nil
			}
			r.logger.Debugf("pass %d: every visible row already handled", pass)
			idle = true
			continue
		}

		attempted++
		idle = false
		last, repeats = row.FullName, 0
		if err := r.process(ctx, row, attempted, total); err != nil {
			return err
		}

		if attempted < total {
			if err := r.reload(ctx); err != nil {
				return err
			}
		}
	}

	r.logger.Warnf("pass budget of %d spent", total+extraPasses)
	return nil
}

// next returns the first row not yet handled this run, hiding handled rows
// in front of it.
func (r *Reconciler) next(ctx context.Context, rows []Row) (Row, bool, error) {
	for _, row := range rows {
		if _, done := r.byName[row.FullName]; !done {
			return row, true, nil
		}
		r.logger.Warnf("%s already handled this run, hiding row %d", row.FullName, row.Index)
		if err := r.hide(ctx, row); err != nil {
			return Row{}, false, err
		}
	}
	return Row{}, false, nil
}

func (r *Reconciler) process(ctx context.Context, row Row, attempted, total int) error {
	record := types.NewClientRecord(row.FullName, row.Index)
	r.byName[row.FullName] = record
	r.logger.Infof("[%d/%d] %s (row %d), ETA %s", attempted, total, record.FullName, row.Index, r.eta())

	err := r.proc.Process(ctx, record)
	r.records = append(r.records, record)
	r.progress.Done()
	done, _, _, eta := r.progress.Snapshot()
	r.notify(types.NewProgressEvent(done, total, eta))
	return err
}

// forceSkip ends a row that stays first after it was attempted. A client
// attempted earlier in the run keeps its outcome; only its row is hidden
// again.
func (r *Reconciler) forceSkip(ctx context.Context, row Row, repeats int) error {
	record, seen := r.byName[row.FullName]
	if !seen {
		record = types.NewClientRecord(row.FullName, row.Index)
		record.Finish(types.OutcomeError, stuckReason, time.Now())
		r.byName[row.FullName] = record
		r.records = append(r.records, record)
	}
	r.logger.Errorf("%s is stuck (first row %d passes in a row), skipping", row.FullName, repeats+1)
	r.notify(types.NewClientStuckEvent(record, stuckReason))
	return r.hide(ctx, row)
}

func (r *Reconciler) hide(ctx context.Context, row Row) error {
	err := r.roster.Hide(ctx, row.Index, row.FullName)
	if err == nil {
		return nil
	}
	if locator.IsFatal(err) {
		return err
	}
	r.logger.Warnf("failed to hide row %d (%s): %v", row.Index, row.FullName, err)
	return nil
}

// reload refreshes the roster tab to reset transient page state.
func (r *Reconciler) reload(ctx context.Context) error {
	page, err := r.session.Page()
	if err != nil {
		return err
	}
	if err := page.Reload(); err != nil {
		if locator.IsFatal(err) {
			return err
		}
		r.logger.Warnf("roster reload failed: %v", err)
	}
	return locator.Sleep(ctx, r.opts.SettleDelay)
}

func (r *Reconciler) eta() string {
	_, _, _, eta := r.progress.Snapshot()
	return eta
}

func (r *Reconciler) notify(event *types.RunEvent) {
	if r.emit != nil {
		r.emit(event)
	}
}
