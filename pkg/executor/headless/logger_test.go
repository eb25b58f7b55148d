package headless

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/entrhq/renewbot/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestLogger_EventVerbosity(t *testing.T) {
	record := types.NewClientRecord("Ana Diaz", 1)
	stageErr := errors.New("eligibility-letter: download timed out")

	tests := []struct {
		name    string
		level   LogLevel
		event   *types.RunEvent
		want    string
		wantOut bool
	}{
		{"client started at normal", LogLevelNormal, types.NewClientStartedEvent(record), "[1] Ana Diaz", true},
		{"client started hidden when quiet", LogLevelQuiet, types.NewClientStartedEvent(record), "", false},
		{"stage started only in debug", LogLevelVerbose, types.NewStageStartedEvent(record, "consent"), "", false},
		{"stage started in debug", LogLevelDebug, types.NewStageStartedEvent(record, "consent"), "[DEBUG] Ana Diaz: consent", true},
		{"skipped stage in verbose", LogLevelVerbose, types.NewStageSkippedEvent(record, "eligibility-letter", stageErr), "skipped: eligibility-letter: download timed out", true},
		{"skipped stage hidden at normal", LogLevelNormal, types.NewStageSkippedEvent(record, "eligibility-letter", stageErr), "", false},
		{"stage failure even when quiet", LogLevelQuiet, types.NewStageFailedEvent(record, "signature", stageErr), "⚠ Warning: Ana Diaz: signature failed", true},
		{"stuck row", LogLevelQuiet, types.NewClientStuckEvent(record, "stuck in loop"), "✗ Error: Ana Diaz: stuck in loop", true},
		{"control reply", LogLevelNormal, types.NewControlEvent("paused"), "paused", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWriterLogger(tt.level, &buf, false)
			l.Event(tt.event)
			if !tt.wantOut {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestLogger_ClientFinished(t *testing.T) {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	done := types.NewClientRecord("Ana Diaz", 1)
	done.Plan = "Oscar Silver"
	done.Premium = "$0.00"
	done.Start(start)
	done.Finish(types.OutcomeCompleted, "", start.Add(75*time.Second))

	skipped := types.NewClientRecord("Ben Cole", 2)
	skipped.Finish(types.OutcomeSkippedFamily, "2 household members eligible to enroll", start)

	var buf bytes.Buffer
	l := NewWriterLogger(LogLevelNormal, &buf, false)
	l.Event(types.NewClientFinishedEvent(done))
	l.Event(types.NewClientFinishedEvent(skipped))

	assert.Contains(t, buf.String(), "✓ Ana Diaz: enrolled Oscar Silver at $0.00 (1m15s)")
	assert.Contains(t, buf.String(), "Ben Cole: Skipped (family policy): 2 household members eligible to enroll")
}

func TestLogger_NoColorWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LogLevelNormal, &buf, false)
	l.Successf("done")
	assert.Equal(t, "✓ done\n", buf.String())

	buf.Reset()
	l = NewWriterLogger(LogLevelNormal, &buf, true)
	l.Successf("done")
	assert.Contains(t, buf.String(), "\033[1;32m")
}

func TestLogger_Summary(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LogLevelQuiet, &buf, false)
	l.Summary(sampleSummary())

	out := buf.String()
	assert.Contains(t, out, "RUN SUMMARY")
	assert.Contains(t, out, "⚠ PARTIAL SUCCESS")
	assert.Contains(t, out, "Profile:       Swole")
	assert.Contains(t, out, "2 attempted of 2")
	assert.Contains(t, out, "Success rate:  50.0%")
	assert.Contains(t, out, "slow: 130.0s per client")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"quiet":   LogLevelQuiet,
		"normal":  LogLevelNormal,
		"verbose": LogLevelVerbose,
		"debug":   LogLevelDebug,
		"":        LogLevelNormal,
		"loud":    LogLevelNormal,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}
