package headless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/renewbot/pkg/control"
	"github.com/entrhq/renewbot/pkg/types"
)

const (
	statusSuccess        = "success"
	statusPartialSuccess = "partial_success"
	statusStopped        = "stopped"
	statusFailed         = "failed"
)

// RunSummary contains a complete summary of a renewal run
type RunSummary struct {
	RunID         string        `json:"run_id"`
	Profile       string        `json:"profile,omitempty"`
	Carriers      []string      `json:"carriers"`
	ListURL       string        `json:"list_url"`
	ReferenceFile string        `json:"reference_file,omitempty"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`

	// Total is the roster size counted when the run started
	Total int `json:"total"`

	Records  []AuditRecord `json:"records"`
	Metrics  RunMetrics    `json:"metrics"`
	Warnings []string      `json:"warnings,omitempty"`
}

// AuditRecord is the flat, persisted form of one client's outcome
type AuditRecord struct {
	FullName  string `json:"full_name"`
	AttemptID string `json:"attempt_id,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error"`
	Carrier   string `json:"carrier"`
	Plan      string `json:"plan"`
	Premium   string `json:"premium"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// RunMetrics contains per-outcome counts and timing
type RunMetrics struct {
	Attempted         int     `json:"attempted"`
	Completed         int     `json:"completed"`
	SkippedFamily     int     `json:"skipped_family_policy"`
	SkippedManual     int     `json:"skipped_followups"`
	SkippedByOperator int     `json:"skipped_by_user"`
	Errors            int     `json:"errors"`
	TotalSeconds      float64 `json:"total_seconds"`
	AvgSeconds        float64 `json:"avg_seconds_per_client"`
	SuccessRate       float64 `json:"success_rate"` // percent of attempted clients completed
}

// NewAuditRecord flattens a client record
func NewAuditRecord(r *types.ClientRecord) AuditRecord {
	return AuditRecord{
		FullName:  r.FullName,
		AttemptID: r.AttemptID,
		Status:    string(r.Outcome),
		Error:     r.Reason,
		Carrier:   r.Carrier,
		Plan:      r.Plan,
		Premium:   r.Premium,
		Start:     formatStamp(r.StartedAt),
		End:       formatStamp(r.FinishedAt),
	}
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// ComputeMetrics counts outcomes and derives the success rate and average
// time per client over a run that took elapsed.
func ComputeMetrics(records []*types.ClientRecord, elapsed time.Duration) RunMetrics {
	m := RunMetrics{
		Attempted:    len(records),
		TotalSeconds: elapsed.Seconds(),
	}
	for _, r := range records {
		switch r.Outcome {
		case types.OutcomeCompleted:
			m.Completed++
		case types.OutcomeSkippedFamily:
			m.SkippedFamily++
		case types.OutcomeSkippedManual:
			m.SkippedManual++
		case types.OutcomeSkippedByOperator:
			m.SkippedByOperator++
		default:
			m.Errors++
		}
	}
	if m.Attempted > 0 {
		m.AvgSeconds = m.TotalSeconds / float64(m.Attempted)
		m.SuccessRate = float64(m.Completed) / float64(m.Attempted) * 100
	}
	return m
}

// Check returns a warning for every threshold the metrics cross. A run that
// attempted nobody is not judged.
func (m RunMetrics) Check(t ThresholdConfig) []string {
	if m.Attempted == 0 {
		return nil
	}
	var warnings []string
	if t.MaxAvgSeconds > 0 && m.AvgSeconds > t.MaxAvgSeconds {
		warnings = append(warnings, fmt.Sprintf("slow: %.1fs per client exceeds the %.0fs threshold", m.AvgSeconds, t.MaxAvgSeconds))
	}
	if m.SuccessRate < t.MinSuccessRate {
		warnings = append(warnings, fmt.Sprintf("low success: %.1f%% is below the %.0f%% threshold", m.SuccessRate, t.MinSuccessRate))
	}
	return warnings
}

// runStatus maps the run error and the metrics to a summary status.
func runStatus(err error, m RunMetrics) string {
	switch {
	case err == nil && m.Errors == 0:
		return statusSuccess
	case err == nil:
		return statusPartialSuccess
	case isOperatorStop(err):
		return statusStopped
	default:
		return statusFailed
	}
}

// isOperatorStop reports whether err ended the run on the operator's request
// rather than on a failure.
func isOperatorStop(err error) bool {
	return errors.Is(err, control.ErrStopped) || errors.Is(err, context.Canceled)
}
