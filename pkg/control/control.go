// Package control holds the operator signals shared between the command
// listener and the engine.
//
// The listener only writes signals; the engine only reads them, and only at
// safe points between stages. A pause therefore never interrupts a click or
// a form submission in progress.
package control

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned once the operator has stopped the run.
var ErrStopped = errors.New("run stopped by operator")

// Decision is what the engine does at a safe point.
type Decision int

const (
	Continue Decision = iota
	Skip
	Stop
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Skip:
		return "skip"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Surface is consulted by the engine at every safe point.
type Surface interface {
	// CheckSafePoint blocks while the run is paused, then reports whether
	// the current client continues, is skipped, or the run stops. A Skip
	// decision consumes the pending skip request.
	CheckSafePoint(ctx context.Context) Decision
}

// AutomationControl implements Surface with four independent signals:
// paused, resume, stopped and skip-requested.
type AutomationControl struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	skip atomic.Bool
}

// New returns a running, unpaused control.
func New() *AutomationControl {
	return &AutomationControl{stopCh: make(chan struct{})}
}

// Pause makes the engine block at its next safe point. It reports whether
// the state changed.
func (c *AutomationControl) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return false
	}
	c.paused = true
	c.resume = make(chan struct{})
	return true
}

// Resume releases a paused engine. It reports whether the state changed.
func (c *AutomationControl) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return false
	}
	c.paused = false
	close(c.resume)
	return true
}

// Stop ends the run at the next safe point. Stop is permanent and also
// releases a paused engine.
func (c *AutomationControl) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		close(c.stopCh)
	})
}

// RequestSkip abandons the client in flight at the next safe point.
func (c *AutomationControl) RequestSkip() {
	c.skip.Store(true)
}

// IsPaused reports whether the run is paused.
func (c *AutomationControl) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// IsStopped reports whether the run was stopped.
func (c *AutomationControl) IsStopped() bool {
	return c.stopped.Load()
}

// SkipRequested reports whether a skip is pending without consuming it.
func (c *AutomationControl) SkipRequested() bool {
	return c.skip.Load()
}

// Stopped is closed when the run is stopped.
func (c *AutomationControl) Stopped() <-chan struct{} {
	return c.stopCh
}

// WaitWhilePaused blocks until the run is resumed or stopped or ctx is done.
// It returns ErrStopped when the run is stopped.
func (c *AutomationControl) WaitWhilePaused(ctx context.Context) error {
	for {
		if c.stopped.Load() {
			return ErrStopped
		}
		c.mu.Lock()
		paused, resume := c.paused, c.resume
		c.mu.Unlock()
		if !paused {
			return nil
		}

		select {
		case <-resume:
		case <-c.stopCh:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CheckSafePoint implements Surface.
func (c *AutomationControl) CheckSafePoint(ctx context.Context) Decision {
	if err := c.WaitWhilePaused(ctx); err != nil {
		return Stop
	}
	if c.stopped.Load() {
		return Stop
	}
	if c.skip.CompareAndSwap(true, false) {
		return Skip
	}
	return Continue
}

// Gate is the between-clients check: it waits out a pause and reports a stop,
// leaving any skip request for the next client's safe points.
func (c *AutomationControl) Gate(ctx context.Context) error {
	if err := c.WaitWhilePaused(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

var _ Surface = (*AutomationControl)(nil)
