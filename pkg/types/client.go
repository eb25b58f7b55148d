package types

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the state of a client as it moves through a run.
type Outcome string

const (
	// OutcomePending is the state of a record read from the roster but not yet started.
	OutcomePending Outcome = "pending"
	// OutcomeInProgress is the state of the client currently in flight.
	OutcomeInProgress Outcome = "in_progress"
	// OutcomeCompleted means a plan was submitted.
	OutcomeCompleted Outcome = "completed"
	// OutcomeSkippedFamily means more than one household member is eligible to enroll.
	OutcomeSkippedFamily Outcome = "skipped_family_policy"
	// OutcomeSkippedManual means verification followups require manual review.
	OutcomeSkippedManual Outcome = "skipped_followups"
	// OutcomeSkippedByOperator means the operator asked to skip the client.
	OutcomeSkippedByOperator Outcome = "skipped_by_user"
	// OutcomeError covers every other unrecoverable failure.
	OutcomeError Outcome = "error"
)

// AllOutcomes lists every outcome in report order.
var AllOutcomes = []Outcome{
	OutcomeCompleted,
	OutcomeSkippedFamily,
	OutcomeSkippedManual,
	OutcomeSkippedByOperator,
	OutcomeError,
	OutcomePending,
	OutcomeInProgress,
}

// IsTerminal reports whether the outcome ends a client's processing.
func (o Outcome) IsTerminal() bool {
	return o != OutcomePending && o != OutcomeInProgress && o != ""
}

// Label returns a short human readable name.
func (o Outcome) Label() string {
	switch o {
	case OutcomeCompleted:
		return "Completed"
	case OutcomeSkippedFamily:
		return "Skipped (family policy)"
	case OutcomeSkippedManual:
		return "Skipped (manual review)"
	case OutcomeSkippedByOperator:
		return "Skipped (operator)"
	case OutcomeError:
		return "Error"
	case OutcomeInProgress:
		return "In progress"
	default:
		return "Pending"
	}
}

// Gender is the applicant's recorded sex, used only to decide whether
// pregnancy and foster care questions are shown.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// ClientRecord is one roster entry and everything learned about it during a run.
type ClientRecord struct {
	StartedAt  time.Time
	FinishedAt time.Time

	// AttemptID is a short id unique within the run, used to correlate logs and screenshots.
	AttemptID string
	FirstName string
	LastName  string
	FullName  string

	// Row is the 1-based DOM position of the client's roster row when it was read.
	Row int

	Gender Gender

	// GenderDefaulted is true when the gender field could not be located.
	GenderDefaulted bool

	Outcome Outcome
	Reason  string

	Carrier string
	Plan    string
	Premium string
}

// NewClientRecord builds a pending record from a roster row.
func NewClientRecord(fullName string, row int) *ClientRecord {
	fullName = strings.Join(strings.Fields(fullName), " ")
	first, last := SplitName(fullName)
	return &ClientRecord{
		FirstName: first,
		LastName:  last,
		FullName:  fullName,
		Row:       row,
		Outcome:   OutcomePending,
	}
}

// SplitName splits a full name into first and last name. Everything after
// the first word is treated as the last name.
func SplitName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// Start marks the record as in flight.
func (r *ClientRecord) Start(now time.Time) {
	r.StartedAt = now
	r.Outcome = OutcomeInProgress
}

// Finish records the terminal outcome. A record that is already terminal is
// left untouched and Finish returns false.
func (r *ClientRecord) Finish(outcome Outcome, reason string, now time.Time) bool {
	if r.Outcome.IsTerminal() {
		return false
	}
	if !outcome.IsTerminal() {
		outcome = OutcomeError
		if reason == "" {
			reason = "finished without a terminal outcome"
		}
	}
	r.Outcome = outcome
	r.Reason = reason
	r.FinishedAt = now
	if r.StartedAt.IsZero() {
		r.StartedAt = now
	}
	return true
}

// Duration returns the time the client spent in flight.
func (r *ClientRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// String implements fmt.Stringer.
func (r *ClientRecord) String() string {
	if r.Reason != "" {
		return fmt.Sprintf("%s [%s: %s]", r.FullName, r.Outcome, r.Reason)
	}
	return fmt.Sprintf("%s [%s]", r.FullName, r.Outcome)
}
