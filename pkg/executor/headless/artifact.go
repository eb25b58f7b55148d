package headless

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const auditSheet = "Audit"

var auditHeaders = []string{
	"Full Name", "Status", "Error", "Carrier", "Plan", "Premium", "Start", "End", "Attempt ID",
}

// ArtifactWriter handles writing run artifacts
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
	}
}

// Dir returns the output directory
func (w *ArtifactWriter) Dir() string {
	return w.outputDir
}

// WriteAll writes every artifact. Each one is attempted even when an
// earlier one fails; the failures are joined.
func (w *ArtifactWriter) WriteAll(summary *RunSummary) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var errs []error
	if err := w.WriteAuditJSON(summary); err != nil {
		errs = append(errs, fmt.Errorf("failed to write audit JSON: %w", err))
	}
	if err := w.WriteAuditWorkbook(summary); err != nil {
		errs = append(errs, fmt.Errorf("failed to write audit workbook: %w", err))
	}
	if err := w.WriteSummaryMarkdown(summary); err != nil {
		errs = append(errs, fmt.Errorf("failed to write summary markdown: %w", err))
	}
	if err := w.WriteMetricsJSON(summary); err != nil {
		errs = append(errs, fmt.Errorf("failed to write metrics JSON: %w", err))
	}
	return errors.Join(errs...)
}

// WriteAuditJSON writes the flat client records as a JSON array
func (w *ArtifactWriter) WriteAuditJSON(summary *RunSummary) error {
	records := summary.Records
	if records == nil {
		records = []AuditRecord{}
	}
	return writeJSON(filepath.Join(w.outputDir, "audit.json"), records)
}

// WriteAuditWorkbook writes the client records as a spreadsheet
func (w *ArtifactWriter) WriteAuditWorkbook(summary *RunSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", auditSheet); err != nil {
		return err
	}

	for i, h := range auditHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(auditSheet, cell, h); err != nil {
			return err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(auditSheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, r := range summary.Records {
		values := []interface{}{r.FullName, r.Status, r.Error, r.Carrier, r.Plan, r.Premium, r.Start, r.End, r.AttemptID}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(auditSheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(auditSheet, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(auditSheet, "C", "C", 48); err != nil {
		return err
	}

	return f.SaveAs(filepath.Join(w.outputDir, "audit.xlsx"))
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *RunSummary) error {
	path := filepath.Join(w.outputDir, "summary.md")
	m := summary.Metrics

	var md strings.Builder

	md.WriteString("# Renewal Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", summary.RunID))
	if summary.Profile != "" {
		md.WriteString(fmt.Sprintf("**Profile:** %s\n\n", summary.Profile))
	}
	md.WriteString(fmt.Sprintf("**Carriers:** %s\n\n", strings.Join(summary.Carriers, ", ")))
	if summary.ReferenceFile != "" {
		md.WriteString(fmt.Sprintf("**Reference file:** %s\n\n", summary.ReferenceFile))
	}
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration.Round(time.Second)))

	md.WriteString("## Result\n\n")
	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	} else {
		md.WriteString(fmt.Sprintf("✅ **Attempted %d of %d clients**\n\n", m.Attempted, summary.Total))
	}
	for _, warning := range summary.Warnings {
		md.WriteString(fmt.Sprintf("⚠️ %s\n\n", warning))
	}

	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Completed:** %d\n", m.Completed))
	md.WriteString(fmt.Sprintf("- **Skipped (followups):** %d\n", m.SkippedManual))
	md.WriteString(fmt.Sprintf("- **Skipped (family policy):** %d\n", m.SkippedFamily))
	md.WriteString(fmt.Sprintf("- **Skipped (operator):** %d\n", m.SkippedByOperator))
	md.WriteString(fmt.Sprintf("- **Errors:** %d\n", m.Errors))
	md.WriteString(fmt.Sprintf("- **Success Rate:** %.1f%%\n", m.SuccessRate))
	md.WriteString(fmt.Sprintf("- **Avg per Client:** %.1fs\n\n", m.AvgSeconds))

	if len(summary.Records) > 0 {
		md.WriteString("## Clients\n\n")
		md.WriteString("| Client | Status | Carrier | Plan | Premium | Error |\n")
		md.WriteString("|---|---|---|---|---|---|\n")
		for _, r := range summary.Records {
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				cell(r.FullName), r.Status, cell(r.Carrier), cell(r.Plan), r.Premium, cell(r.Error)))
		}
	}

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return nil
}

// WriteMetricsJSON writes run metrics as JSON
func (w *ArtifactWriter) WriteMetricsJSON(summary *RunSummary) error {
	return writeJSON(filepath.Join(w.outputDir, "metrics.json"), summary.Metrics)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), writeErr)
	}

	return nil
}

// cell escapes a markdown table cell
func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}
