package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/entrhq/renewbot/pkg/types"
)

// Policy says what a stage failure means for the client.
type Policy int

const (
	// Required stages end the client with an error outcome when they fail.
	Required Policy = iota

	// BestEffort stages log the failure and let the sequence continue.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "required"
}

// Stage is one step of the renewal flow.
type Stage struct {
	Name string

	// When gates the stage on what earlier stages learned. Nil always runs.
	When func(*Client) bool

	Run func(ctx context.Context, s *Sequencer, c *Client) error

	Policy Policy

	// Attempts is the stage's own retry budget on top of the locator's.
	// Zero means one attempt.
	Attempts int

	// SafePoint makes the sequencer consult the control surface after the
	// stage completes.
	SafePoint bool
}

// OutcomeError ends a client with a business outcome that is not a stage
// failure: manual review, family policy, or a plan search with no result.
type OutcomeError struct {
	Outcome types.Outcome
	Reason  string
}

func (e *OutcomeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Outcome, e.Reason)
}

// AsOutcome unwraps an OutcomeError from err.
func AsOutcome(err error) (*OutcomeError, bool) {
	var oe *OutcomeError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// Topology is how the renewal flow opened relative to the roster tab.
type Topology int

const (
	TopologyUnknown Topology = iota
	TopologyNewTab
	TopologySameTab
)

func (t Topology) String() string {
	switch t {
	case TopologyNewTab:
		return "new-tab"
	case TopologySameTab:
		return "same-tab"
	default:
		return "unknown"
	}
}

// Client is the state of one client while it moves through the stages.
type Client struct {
	Record *types.ClientRecord

	Topology   Topology
	RenewalTab browser.TabID

	// ShortPath is set when "Skip to the end" was available.
	ShortPath bool

	Offer     plan.Offer
	Accepted  bool
	Selection plan.Selection

	// LetterPath is the downloaded eligibility letter, if any.
	LetterPath  string
	LetterPages int
}

// Female reports whether the pregnancy and foster care branch applies.
func (c *Client) Female() bool {
	return c.Record.Gender == types.GenderFemale
}

func longPath(c *Client) bool { return !c.ShortPath }
func directEnroll(c *Client) bool { return c.Accepted }
func changePlan(c *Client) bool { return !c.Accepted }
