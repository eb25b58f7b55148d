package headless

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/renewbot/pkg/logging"
	"github.com/entrhq/renewbot/pkg/types"
	"golang.org/x/term"
)

// LogLevel represents the console verbosity level
type LogLevel int

const (
	// LogLevelQuiet shows only critical information (errors, warnings, final summary)
	LogLevelQuiet LogLevel = iota
	// LogLevelNormal shows one line per client and the run progress (default)
	LogLevelNormal
	// LogLevelVerbose adds stage failures and skipped best-effort stages
	LogLevelVerbose
	// LogLevelDebug shows every stage transition
	LogLevelDebug
)

// stageErrorLimit bounds stage failure messages on the console.
const stageErrorLimit = 200

// Logger is the operator-facing console logger
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	writer io.Writer
	color  bool

	// ANSI color codes, empty when color is off
	colorReset     string
	colorGreen     string
	colorCyan      string
	colorSalmon    string
	colorYellow    string
	colorRed       string
	colorGray      string
	colorBoldGreen string
	colorBoldRed   string
	colorBoldWhite string

	stepCount int
}

// NewLogger creates a console logger on stdout. Colors are used only when
// stdout is a terminal.
func NewLogger(level LogLevel) *Logger {
	return NewWriterLogger(level, os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

// NewWriterLogger creates a console logger on w.
func NewWriterLogger(level LogLevel, w io.Writer, color bool) *Logger {
	l := &Logger{level: level, writer: w, color: color}
	if color {
		l.colorReset = "\033[0m"
		l.colorGreen = "\033[32m"
		l.colorCyan = "\033[36m"
		l.colorSalmon = "\033[38;5;217m" // Salmon pink #FFB3BA
		l.colorYellow = "\033[33m"
		l.colorRed = "\033[31m"
		l.colorGray = "\033[90m"
		l.colorBoldGreen = "\033[1;32m"
		l.colorBoldRed = "\033[1;31m"
		l.colorBoldWhite = "\033[1;37m"
	}
	return l
}

// Level returns the logger's verbosity
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) printf(at LogLevel, format string, args ...interface{}) {
	if l.level < at {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.writer, format, args...)
}

// Header prints a prominent header message
func (l *Logger) Header(message string) {
	rule := strings.Repeat("=", 70)
	l.printf(LogLevelNormal, "\n%s%s\n  %s\n%s%s\n", l.colorBoldWhite, rule, message, rule, l.colorReset)
}

// Section prints a section divider
func (l *Logger) Section(title string) {
	l.printf(LogLevelNormal, "\n%s▶ %s%s\n%s%s%s\n", l.colorCyan, title, l.colorReset, l.colorGray, strings.Repeat("─", 50), l.colorReset)
}

// Step prints a numbered step
func (l *Logger) Step(message string) {
	if l.level < LogLevelNormal {
		return
	}
	l.mu.Lock()
	l.stepCount++
	n := l.stepCount
	l.mu.Unlock()
	l.printf(LogLevelNormal, "\n%s[%d] %s%s\n", l.colorCyan, n, message, l.colorReset)
}

// Successf prints a success message with checkmark
func (l *Logger) Successf(format string, args ...interface{}) {
	l.printf(LogLevelNormal, "%s✓ %s%s\n", l.colorBoldGreen, fmt.Sprintf(format, args...), l.colorReset)
}

// Infof prints an informational message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.printf(LogLevelNormal, "%s%s%s\n", l.colorSalmon, fmt.Sprintf(format, args...), l.colorReset)
}

// Warningf prints a warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.printf(LogLevelQuiet, "%s⚠ Warning: %s%s\n", l.colorYellow, fmt.Sprintf(format, args...), l.colorReset)
}

// Errorf prints an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.printf(LogLevelQuiet, "%s✗ Error: %s%s\n", l.colorBoldRed, fmt.Sprintf(format, args...), l.colorReset)
}

// Verbosef prints detailed information (only in verbose mode)
func (l *Logger) Verbosef(format string, args ...interface{}) {
	l.printf(LogLevelVerbose, "%s→ %s%s\n", l.colorGray, fmt.Sprintf(format, args...), l.colorReset)
}

// Debugf prints debug information (only in debug mode)
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.printf(LogLevelDebug, "%s[DEBUG] %s%s\n", l.colorGray, fmt.Sprintf(format, args...), l.colorReset)
}

// Event prints one engine event at the verbosity it deserves
func (l *Logger) Event(e *types.RunEvent) {
	name := ""
	if e.Client != nil {
		name = e.Client.FullName
	}

	switch e.Type {
	case types.EventTypeRunStarted:
		l.Infof("Found %d clients on the roster", e.Total)
	case types.EventTypeClientStarted:
		l.Step(name)
	case types.EventTypeStageStarted:
		l.Debugf("%s: %s", name, e.Stage)
	case types.EventTypeStageCompleted:
		l.Debugf("%s: %s done", name, e.Stage)
	case types.EventTypeStageSkipped:
		l.Verbosef("%s: %s skipped: %s", name, e.Stage, errText(e.Error))
	case types.EventTypeStageFailed:
		l.Warningf("%s: %s failed: %s", name, e.Stage, errText(e.Error))
	case types.EventTypeClientFinished:
		l.clientFinished(e.Client)
	case types.EventTypeClientStuck:
		l.Errorf("%s: %s", name, e.Message)
	case types.EventTypeControl:
		l.Infof("%s", e.Message)
	case types.EventTypeProgress:
		l.Verbosef("Progress: %d/%d, ETA %s", e.Attempted, e.Total, e.ETA)
	case types.EventTypeRunFinished:
		if e.Error != nil {
			l.Verbosef("Run ended after %d/%d clients: %v", e.Attempted, e.Total, e.Error)
		}
	}
}

func (l *Logger) clientFinished(r *types.ClientRecord) {
	if r == nil {
		return
	}
	switch r.Outcome {
	case types.OutcomeCompleted:
		detail := r.Plan
		if r.Premium != "" {
			detail = fmt.Sprintf("%s at %s", r.Plan, r.Premium)
		}
		l.Successf("%s: enrolled %s (%s)", r.FullName, detail, r.Duration().Round(time.Second))
	case types.OutcomeError:
		l.Errorf("%s: %s", r.FullName, logging.Truncate(r.Reason, stageErrorLimit))
	default:
		l.Warningf("%s: %s: %s", r.FullName, r.Outcome.Label(), r.Reason)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return logging.Truncate(err.Error(), stageErrorLimit)
}

// Summary prints the final run summary in a bordered box
func (l *Logger) Summary(summary *RunSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.writer)
	fmt.Fprintln(l.writer, l.renderSummary(summary))
}

func (l *Logger) renderSummary(summary *RunSummary) string {
	m := summary.Metrics
	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true)
	fmt.Fprintf(&b, "%s\n\n", title.Render("RUN SUMMARY"))
	fmt.Fprintf(&b, "Status:        %s\n", statusLabel(summary.Status))
	if summary.Profile != "" {
		fmt.Fprintf(&b, "Profile:       %s\n", summary.Profile)
	}
	fmt.Fprintf(&b, "Carriers:      %s\n", strings.Join(summary.Carriers, ", "))
	fmt.Fprintf(&b, "Clients:       %d attempted of %d\n\n", m.Attempted, summary.Total)
	fmt.Fprintf(&b, "Completed:              %d\n", m.Completed)
	fmt.Fprintf(&b, "Skipped (followups):    %d\n", m.SkippedManual)
	fmt.Fprintf(&b, "Skipped (family):       %d\n", m.SkippedFamily)
	fmt.Fprintf(&b, "Skipped (operator):     %d\n", m.SkippedByOperator)
	fmt.Fprintf(&b, "Errors:                 %d\n\n", m.Errors)
	fmt.Fprintf(&b, "Total time:    %.1fs\n", m.TotalSeconds)
	fmt.Fprintf(&b, "Success rate:  %.1f%%\n", m.SuccessRate)
	fmt.Fprintf(&b, "Avg/client:    %.1fs", m.AvgSeconds)
	for _, w := range summary.Warnings {
		fmt.Fprintf(&b, "\n⚠ %s", w)
	}
	if summary.Error != "" {
		fmt.Fprintf(&b, "\n\nError: %s", summary.Error)
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 2)
	if l.color {
		box = box.BorderForeground(lipgloss.Color(statusColor(summary.Status)))
	}
	return box.Render(b.String())
}

func statusLabel(status string) string {
	switch status {
	case statusSuccess:
		return "✓ SUCCESS"
	case statusPartialSuccess:
		return "⚠ PARTIAL SUCCESS"
	case statusStopped:
		return "■ STOPPED"
	case statusFailed:
		return "✗ FAILED"
	default:
		return status
	}
}

func statusColor(status string) string {
	switch status {
	case statusSuccess:
		return "#4CAF50"
	case statusPartialSuccess, statusStopped:
		return "#F7B801"
	default:
		return "#FF6B6B"
	}
}

// Newline adds a blank line (respects log level)
func (l *Logger) Newline() {
	l.printf(LogLevelNormal, "\n")
}

// ParseLogLevel converts a string log level to LogLevel type
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "quiet":
		return LogLevelQuiet
	case "normal":
		return LogLevelNormal
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}
