package headless

import (
	"fmt"
	"os"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/locator"
	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/entrhq/renewbot/pkg/roster"
	"github.com/entrhq/renewbot/pkg/workflow"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration for one renewal run
type Config struct {
	// Browser attachment
	CDPURL  string `yaml:"cdp_url" json:"cdp_url"`
	MainTab string `yaml:"main_tab" json:"main_tab"` // URL substring selecting the roster tab

	// Roster
	ListURL     string `yaml:"list_url" json:"list_url"`
	RenewalYear int    `yaml:"renewal_year" json:"renewal_year"`
	RowsPerPass int    `yaml:"rows_per_pass" json:"rows_per_pass"`

	// Locator retry discipline
	Attempts         int           `yaml:"attempts" json:"attempts"`
	CandidateTimeout time.Duration `yaml:"candidate_timeout" json:"candidate_timeout"`
	RetryInterval    time.Duration `yaml:"retry_interval" json:"retry_interval"`

	// Page waits
	StageTimeout        time.Duration `yaml:"stage_timeout" json:"stage_timeout"`
	TabDetectTimeout    time.Duration `yaml:"tab_detect_timeout" json:"tab_detect_timeout"`
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout" json:"confirmation_timeout"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	SettleDelay         time.Duration `yaml:"settle_delay" json:"settle_delay"`
	PollInterval        time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// Output locations
	ScreenshotDir string `yaml:"screenshot_dir" json:"screenshot_dir"`
	ArtifactDir   string `yaml:"artifact_dir" json:"artifact_dir"`
	DownloadDir   string `yaml:"download_dir" json:"download_dir"`

	// Report thresholds
	Thresholds ThresholdConfig `yaml:"thresholds" json:"thresholds"`

	// LogLevel controls console verbosity: quiet, normal, verbose, debug
	LogLevel string `yaml:"log_level" json:"log_level"`

	// StopOnEOF stops the run when the command input ends
	StopOnEOF bool `yaml:"stop_on_eof" json:"stop_on_eof"`

	// Controls overrides locator candidates by control name
	Controls locator.Catalog `yaml:"controls" json:"controls,omitempty"`

	// Path of the file this configuration was loaded from, if any
	ConfigFilePath string `yaml:"-" json:"-"`
}

// ThresholdConfig holds the report warning thresholds
type ThresholdConfig struct {
	MaxAvgSeconds  float64 `yaml:"max_avg_seconds" json:"max_avg_seconds"`
	MinSuccessRate float64 `yaml:"min_success_rate" json:"min_success_rate"` // percent
}

var validLogLevels = map[string]bool{
	"quiet":   true,
	"normal":  true,
	"verbose": true,
	"debug":   true,
}

var validStrategies = map[browser.Strategy]bool{
	browser.StrategyCSS:   true,
	browser.StrategyXPath: true,
	browser.StrategyText:  true,
	browser.StrategyID:    true,
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ListURL == "" {
		return fmt.Errorf("list_url is required")
	}

	if c.RenewalYear != 0 && (c.RenewalYear < 2000 || c.RenewalYear > 2100) {
		return fmt.Errorf("invalid renewal_year: %d", c.RenewalYear)
	}

	if c.RowsPerPass < 0 {
		return fmt.Errorf("rows_per_pass cannot be negative")
	}

	if c.Attempts < 0 {
		return fmt.Errorf("attempts cannot be negative")
	}

	durations := map[string]time.Duration{
		"candidate_timeout":    c.CandidateTimeout,
		"retry_interval":       c.RetryInterval,
		"stage_timeout":        c.StageTimeout,
		"tab_detect_timeout":   c.TabDetectTimeout,
		"confirmation_timeout": c.ConfirmationTimeout,
		"download_timeout":     c.DownloadTimeout,
		"settle_delay":         c.SettleDelay,
		"poll_interval":        c.PollInterval,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}

	if c.ArtifactDir == "" {
		return fmt.Errorf("artifact_dir is required")
	}

	if c.Thresholds.MaxAvgSeconds < 0 {
		return fmt.Errorf("thresholds.max_avg_seconds cannot be negative")
	}
	if c.Thresholds.MinSuccessRate < 0 || c.Thresholds.MinSuccessRate > 100 {
		return fmt.Errorf("thresholds.min_success_rate must be between 0 and 100")
	}

	for name, target := range c.Controls {
		if len(target.Candidates) == 0 {
			return fmt.Errorf("control %q has no candidates", name)
		}
		for _, cand := range target.Candidates {
			if !validStrategies[cand.Strategy] {
				return fmt.Errorf("control %q: invalid strategy %q (must be css, xpath, text or id)", name, cand.Strategy)
			}
			if cand.Query == "" {
				return fmt.Errorf("control %q: candidate query is empty", name)
			}
		}
	}

	// Set default log level if not specified
	if c.LogLevel == "" {
		c.LogLevel = "normal"
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.LogLevel)
	}

	return nil
}

// RunConfiguration builds the engine configuration for the approved carriers
func (c *Config) RunConfiguration(approved plan.ApprovalSet) workflow.RunConfiguration {
	return workflow.RunConfiguration{
		Approved:         approved,
		RenewalYear:      c.RenewalYear,
		ListURL:          c.ListURL,
		Attempts:         c.Attempts,
		CandidateTimeout: c.CandidateTimeout,
		RetryInterval:    c.RetryInterval,
		ShortTimeout:     c.ConfirmationTimeout,
		StageTimeout:     c.StageTimeout,
		TabDetectTimeout: c.TabDetectTimeout,
		DownloadTimeout:  c.DownloadTimeout,
		SettleDelay:      c.SettleDelay,
		PollInterval:     c.PollInterval,
		ScreenshotDir:    c.ScreenshotDir,
		DownloadDir:      c.DownloadDir,
		Controls:         c.Controls,
	}
}

// AttachOptions returns the browser attachment options
func (c *Config) AttachOptions() browser.AttachOptions {
	return browser.AttachOptions{
		CDPURL:          c.CDPURL,
		MainURLContains: c.MainTab,
	}
}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	run := workflow.DefaultRunConfiguration()
	return &Config{
		CDPURL:              browser.DefaultCDPURL,
		RenewalYear:         run.RenewalYear,
		RowsPerPass:         roster.DefaultRowsPerPass,
		Attempts:            run.Attempts,
		CandidateTimeout:    run.CandidateTimeout,
		RetryInterval:       run.RetryInterval,
		StageTimeout:        run.StageTimeout,
		TabDetectTimeout:    run.TabDetectTimeout,
		ConfirmationTimeout: run.ShortTimeout,
		DownloadTimeout:     run.DownloadTimeout,
		SettleDelay:         run.SettleDelay,
		PollInterval:        run.PollInterval,
		ScreenshotDir:       run.ScreenshotDir,
		ArtifactDir:         "renewbot-artifacts",
		DownloadDir:         run.DownloadDir,
		Thresholds: ThresholdConfig{
			MaxAvgSeconds:  120,
			MinSuccessRate: 50,
		},
		LogLevel:  "normal",
		StopOnEOF: true,
	}
}

// LoadConfig loads a YAML configuration file on top of DefaultConfig
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.ConfigFilePath = path

	return config, nil
}
