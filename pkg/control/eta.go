package control

import (
	"fmt"
	"sync"
	"time"
)

// Calculating is shown until the first client has finished.
const Calculating = "Calculating..."

// EstimateRemaining extrapolates the time left from the average time per
// processed client. ok is false before any client has been processed.
func EstimateRemaining(total, processed int, elapsed time.Duration) (time.Duration, bool) {
	if processed <= 0 {
		return 0, false
	}
	remaining := total - processed
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(int64(elapsed) / int64(processed) * int64(remaining)), true
}

// FormatETA formats d as "Xm Ys".
func FormatETA(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// Progress counts processed clients for the ETA display. It is safe to read
// from the listener while the engine updates it.
type Progress struct {
	mu        sync.Mutex
	started   time.Time
	total     int
	processed int
	now       func() time.Time
}

// NewProgress starts the clock for a run of total clients.
func NewProgress(total int) *Progress {
	return newProgressAt(total, time.Now)
}

func newProgressAt(total int, now func() time.Time) *Progress {
	return &Progress{started: now(), total: total, now: now}
}

// SetTotal updates the number of clients in the run.
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Done records one more processed client.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
}

// Snapshot returns the counters, the elapsed time and the ETA text.
func (p *Progress) Snapshot() (processed, total int, elapsed time.Duration, eta string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed = p.now().Sub(p.started)
	eta = Calculating
	if d, ok := EstimateRemaining(p.total, p.processed, elapsed); ok {
		eta = FormatETA(d)
	}
	return p.processed, p.total, elapsed, eta
}

// String renders the status line printed for the status command.
func (p *Progress) String() string {
	processed, total, elapsed, eta := p.Snapshot()
	return fmt.Sprintf("processed %d/%d, elapsed %s, ETA %s", processed, total, FormatETA(elapsed), eta)
}
