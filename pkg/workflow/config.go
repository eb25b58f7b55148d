package workflow

import (
	"time"

	"github.com/entrhq/renewbot/pkg/locator"
	"github.com/entrhq/renewbot/pkg/plan"
)

// Default timings.
const (
	DefaultStageTimeout     = 10 * time.Second
	DefaultShortTimeout     = 1500 * time.Millisecond
	DefaultTabDetectTimeout = 8 * time.Second
	DefaultDownloadTimeout  = 20 * time.Second
	DefaultSettleDelay      = time.Second
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultCleanupTimeout   = 15 * time.Second
)

// RunConfiguration is everything the sequencer needs for one run. It is built
// once, before the run starts, and passed by value.
type RunConfiguration struct {
	// Approved is the operator's carrier approval set.
	Approved plan.ApprovalSet

	// RenewalYear selects the "Renew for <year>" control.
	RenewalYear int

	// ListURL is the roster page. Same-tab cleanup returns to it when
	// navigating back does not.
	ListURL string

	// Attempts, CandidateTimeout and RetryInterval are the locator's retry
	// discipline.
	Attempts         int
	CandidateTimeout time.Duration
	RetryInterval    time.Duration

	// ShortTimeout bounds optional controls: banners, popups, confirmations.
	ShortTimeout time.Duration

	// StageTimeout bounds waits for the next page after a stage submits.
	StageTimeout time.Duration

	TabDetectTimeout time.Duration
	DownloadTimeout  time.Duration
	SettleDelay      time.Duration
	PollInterval     time.Duration

	ScreenshotDir string
	DownloadDir   string

	// Controls overrides candidates of the default control catalog by name.
	Controls locator.Catalog
}

// DefaultRunConfiguration returns a configuration approving every supported carrier.
func DefaultRunConfiguration() RunConfiguration {
	return RunConfiguration{
		Approved:         plan.NewApprovalSet(plan.AllCarriers...),
		RenewalYear:      time.Now().Year() + 1,
		Attempts:         locator.DefaultAttempts,
		CandidateTimeout: locator.DefaultCandidateTimeout,
		RetryInterval:    locator.DefaultRetryInterval,
		ShortTimeout:     DefaultShortTimeout,
		StageTimeout:     DefaultStageTimeout,
		TabDetectTimeout: DefaultTabDetectTimeout,
		DownloadTimeout:  DefaultDownloadTimeout,
		SettleDelay:      DefaultSettleDelay,
		PollInterval:     DefaultPollInterval,
		ScreenshotDir:    "error_screenshots",
		DownloadDir:      "letters",
	}
}

// normalized fills zero durations with defaults. Negative durations mean
// "no wait" and are clamped to zero.
func (c RunConfiguration) normalized() RunConfiguration {
	def := DefaultRunConfiguration()
	if c.RenewalYear == 0 {
		c.RenewalYear = def.RenewalYear
	}
	if c.Attempts <= 0 {
		c.Attempts = def.Attempts
	}
	durations := []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&c.CandidateTimeout, def.CandidateTimeout},
		{&c.RetryInterval, def.RetryInterval},
		{&c.ShortTimeout, def.ShortTimeout},
		{&c.StageTimeout, def.StageTimeout},
		{&c.TabDetectTimeout, def.TabDetectTimeout},
		{&c.DownloadTimeout, def.DownloadTimeout},
		{&c.SettleDelay, def.SettleDelay},
		{&c.PollInterval, def.PollInterval},
	}
	for _, d := range durations {
		switch {
		case *d.v == 0:
			*d.v = d.def
		case *d.v < 0:
			*d.v = 0
		}
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Millisecond
	}
	c.Controls = DefaultControls().Merge(c.Controls)
	return c
}

// ResolverOptions returns the locator options of this configuration.
func (c RunConfiguration) ResolverOptions() locator.Options {
	return locator.Options{
		Attempts:         c.Attempts,
		CandidateTimeout: c.CandidateTimeout,
		RetryInterval:    c.RetryInterval,
	}
}

// PlanOptions returns the plan engine options of this configuration.
func (c RunConfiguration) PlanOptions() plan.Options {
	return plan.Options{
		SettleDelay:    c.SettleDelay,
		SettleTimeout:  c.StageTimeout,
		PollInterval:   c.PollInterval,
		ConfirmTimeout: c.ShortTimeout,
	}
}
