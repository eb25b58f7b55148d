// Package roster reads the operator's client list and feeds it to the
// sequencer one row at a time.
//
// The roster is a browser-rendered table. Handled rows are hidden with a
// style change rather than removed, so DOM positions stay stable while the
// visible table shrinks.
package roster

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/logging"
)

// DefaultRowsPerPass is how many visible rows are read per pass.
const DefaultRowsPerPass = 10

// Row is a visible roster entry.
type Row struct {
	// Index is the 1-based position of the row among all rows of the
	// table body, hidden ones included.
	Index    int
	FullName string
}

// Hide results reported by the page script.
const (
	hideDone    = "hidden"
	hideAlready = "already-hidden"
	hideMissing = "missing"
)

const visibleRowsScript = `(limit) => {
	const body = document.querySelector('tbody');
	if (!body) return [];
	const out = [];
	const rows = Array.from(body.rows);
	for (let i = 0; i < rows.length && out.length < limit; i++) {
		const row = rows[i];
		if (row.style.display === 'none') continue;
		const cell = row.cells[1];
		const name = cell ? cell.innerText.replace(/\s+/g, ' ').trim() : '';
		if (!name) break;
		out.push({index: i + 1, name: name});
	}
	return out;
}`

const hideRowScript = `(arg) => {
	const body = document.querySelector('tbody');
	if (!body) return 'missing';
	const rows = Array.from(body.rows);
	const text = (r) => (r.cells[1] ? r.cells[1].innerText.replace(/\s+/g, ' ').trim() : '');
	let row = rows[arg.index - 1];
	if (!row || (arg.name && text(row) !== arg.name)) {
		row = rows.find((r) => text(r) === arg.name);
	}
	if (!row) return 'missing';
	if (row.style.display === 'none') return 'already-hidden';
	row.style.display = 'none';
	return 'hidden';
}`

// Table is the roster rendered in the session's active tab.
type Table struct {
	session     browser.Session
	rowsPerPass int
	logger      *logging.Logger
}

// NewTable creates a table reader. A non-positive rowsPerPass uses
// DefaultRowsPerPass.
func NewTable(session browser.Session, rowsPerPass int, logger *logging.Logger) *Table {
	if rowsPerPass <= 0 {
		rowsPerPass = DefaultRowsPerPass
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Table{session: session, rowsPerPass: rowsPerPass, logger: logger}
}

// Visible returns the first visible rows in table order.
func (t *Table) Visible(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := t.session.Page()
	if err != nil {
		return nil, err
	}
	v, err := page.Evaluate(visibleRowsScript, t.rowsPerPass)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	return parseRows(v)
}

// Hide hides the row of fullName, expected at DOM position row. When the
// table has shifted, the row is found by name instead. Hiding a row that is
// already hidden or no longer present is not an error.
func (t *Table) Hide(ctx context.Context, row int, fullName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := t.session.Page()
	if err != nil {
		return err
	}
	v, err := page.Evaluate(hideRowScript, map[string]any{"index": row, "name": fullName})
	if err != nil {
		return fmt.Errorf("failed to hide row %d: %w", row, err)
	}

	switch status, _ := v.(string); status {
	case hideDone:
		t.logger.Infof("hid row %d (%s)", row, fullName)
	case hideAlready:
		t.logger.Debugf("row %d (%s) already hidden", row, fullName)
	case hideMissing:
		t.logger.Warnf("row %d (%s) not in the roster", row, fullName)
	default:
		t.logger.Warnf("hiding row %d (%s) returned %v", row, fullName, v)
	}
	return nil
}

func parseRows(v any) ([]Row, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected roster result %T", v)
	}
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected roster row %T", item)
		}
		index, ok := toInt(m["index"])
		if !ok || index < 1 {
			return nil, fmt.Errorf("roster row without a position: %v", m)
		}
		name, _ := m["name"].(string)
		name = strings.Join(strings.Fields(name), " ")
		if name == "" {
			break
		}
		rows = append(rows, Row{Index: index, FullName: name})
	}
	return rows, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
