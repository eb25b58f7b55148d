package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/logging"
)

// Default retry discipline.
const (
	DefaultAttempts         = 3
	DefaultCandidateTimeout = 3 * time.Second
	DefaultRetryInterval    = 500 * time.Millisecond
)

var errNotInteractable = errors.New("element is disabled")

// Options configures a Resolver.
type Options struct {
	// Attempts is how many times one candidate is retried after it was found
	// but could not be used.
	Attempts int

	// CandidateTimeout bounds the wait for each candidate to appear.
	CandidateTimeout time.Duration

	// RetryInterval is the pause between attempts on the same candidate.
	RetryInterval time.Duration
}

// Match is a usable element and the candidate that found it.
type Match struct {
	Element   browser.Element
	Candidate Candidate
	Attempt   int
}

// Resolver locates targets on the session's active tab.
type Resolver struct {
	session browser.Session
	opts    Options
	logger  *logging.Logger
}

// New creates a resolver. Zero option values take the package defaults.
func New(session browser.Session, opts Options, logger *logging.Logger) *Resolver {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.CandidateTimeout <= 0 {
		opts.CandidateTimeout = DefaultCandidateTimeout
	}
	if opts.RetryInterval < 0 {
		opts.RetryInterval = 0
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{session: session, opts: opts, logger: logger}
}

// Find returns the first usable element for t.
func (r *Resolver) Find(ctx context.Context, t Target) (*Match, error) {
	return r.Act(ctx, t, nil)
}

// Click finds t and clicks it.
func (r *Resolver) Click(ctx context.Context, t Target) (*Match, error) {
	return r.Act(ctx, t, func(el browser.Element) error { return el.Click() })
}

// Fill finds t and types value into it.
func (r *Resolver) Fill(ctx context.Context, t Target, value string) (*Match, error) {
	return r.Act(ctx, t, func(el browser.Element) error { return el.Fill(value) })
}

// Present reports whether t can be found. Only session loss and context
// cancellation are returned as errors.
func (r *Resolver) Present(ctx context.Context, t Target) (bool, error) {
	_, err := r.Find(ctx, t)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, browser.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Act locates t and runs action on the element. A candidate whose element
// goes stale, is disabled, or whose action fails is retried up to Attempts
// times before the next candidate is tried. When every candidate is exhausted
// the error wraps browser.ErrNotFound. Session loss and context errors are
// returned immediately.
func (r *Resolver) Act(ctx context.Context, t Target, action func(browser.Element) error) (*Match, error) {
	if len(t.Candidates) == 0 {
		return nil, fmt.Errorf("target %q has no candidates", t.Name)
	}
	page, err := r.session.Page()
	if err != nil {
		return nil, err
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = r.opts.CandidateTimeout
	}

	var last error
	for _, c := range t.Candidates {
		for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			el, err := page.WaitFor(ctx, c.Selector(), t.state(), timeout)
			if err != nil {
				if fatal(err) {
					return nil, err
				}
				if errors.Is(err, browser.ErrNotFound) {
					r.logger.Debugf("%s: candidate %s absent", t.Name, c)
					break
				}
				last = err
				r.logger.Debugf("%s: candidate %s attempt %d: %v", t.Name, c, attempt, err)
				if err := sleep(ctx, r.opts.RetryInterval); err != nil {
					return nil, err
				}
				continue
			}

			if t.Require == RequireInteractable || t.Require == "" {
				enabled, err := el.IsEnabled()
				if err == nil && !enabled {
					err = errNotInteractable
				}
				if err != nil {
					if fatal(err) {
						return nil, err
					}
					last = err
					r.logger.Debugf("%s: candidate %s attempt %d: %v", t.Name, c, attempt, err)
					if err := sleep(ctx, r.opts.RetryInterval); err != nil {
						return nil, err
					}
					continue
				}
			}

			match := &Match{Element: el, Candidate: c, Attempt: attempt}
			if action == nil {
				return match, nil
			}
			err = action(el)
			if err == nil {
				r.logger.Debugf("%s: acted via %s (attempt %d)", t.Name, c, attempt)
				return match, nil
			}
			if fatal(err) {
				return nil, err
			}
			last = err
			r.logger.Debugf("%s: action via %s attempt %d failed: %v", t.Name, c, attempt, err)
			if err := sleep(ctx, r.opts.RetryInterval); err != nil {
				return nil, err
			}
		}
	}

	return nil, &NotFoundError{Target: t.Name, Tried: len(t.Candidates), Last: last}
}

// FindAll returns the elements matched by the first candidate that matches
// anything right now. It does not wait.
func (r *Resolver) FindAll(ctx context.Context, t Target) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := r.session.Page()
	if err != nil {
		return nil, err
	}
	for _, c := range t.Candidates {
		els, err := page.QueryAll(c.Selector())
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			continue
		}
		if len(els) > 0 {
			return els, nil
		}
	}
	return nil, nil
}

func fatal(err error) bool {
	return errors.Is(err, browser.ErrSessionLost) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

// Page returns the session's active tab.
func (r *Resolver) Page() (browser.Page, error) {
	return r.session.Page()
}

// Session returns the session the resolver works on.
func (r *Resolver) Session() browser.Session {
	return r.session
}

// IsFatal reports whether err must abort the caller instead of being treated
// as a missing control: the session is gone or the context is done.
func IsFatal(err error) bool {
	return fatal(err)
}
