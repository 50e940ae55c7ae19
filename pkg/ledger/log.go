// Package ledger holds the tabular transaction log and the file store behind it.
package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/spendlog/pkg/api"
)

// Log is an ordered table of string cells. A log read from an uploaded file keeps
// whatever columns the file had; only Append cares about the amount, type and date
// columns.
type Log struct {
	Columns []string
	Rows    [][]string

	// origin and version tie a log to the store file it was loaded from.
	origin  string
	version string
}

// Empty returns a log with the fixed amount,type,date schema and no rows.
func Empty() *Log {
	return &Log{
		Columns: slices.Clone(api.Columns),
		Rows:    [][]string{},
	}
}

// Len returns the number of rows.
func (l *Log) Len() int {
	return len(l.Rows)
}

// Clone returns a deep copy of the log, including its store binding.
func (l *Log) Clone() *Log {
	rows := make([][]string, len(l.Rows))
	for i, row := range l.Rows {
		rows[i] = slices.Clone(row)
	}
	return &Log{
		Columns: slices.Clone(l.Columns),
		Rows:    rows,
		origin:  l.origin,
		version: l.version,
	}
}

// Append adds rec as the last row. Missing amount, type or date columns are added
// to the end of the schema and existing rows get empty cells for them.
func (l *Log) Append(rec *api.Record) {
	cells := map[string]string{
		api.ColumnAmount: FormatAmount(rec.Amount),
		api.ColumnType:   string(rec.Type),
		api.ColumnDate:   rec.Date.Format(api.DateLayout),
	}

	for _, col := range api.Columns {
		if l.columnIndex(col) < 0 {
			l.Columns = append(l.Columns, col)
		}
	}

	for i, row := range l.Rows {
		if len(row) < len(l.Columns) {
			l.Rows[i] = append(row, make([]string, len(l.Columns)-len(row))...)
		}
	}

	row := make([]string, len(l.Columns))
	for i, col := range l.Columns {
		row[i] = cells[col]
	}
	l.Rows = append(l.Rows, row)
}

// Records returns the rows that parse as records, in order, and the number of rows
// that did not. Rows without a readable date keep a zero Date.
func (l *Log) Records() ([]api.Record, int) {
	amountIdx := l.columnIndex(api.ColumnAmount)
	typeIdx := l.columnIndex(api.ColumnType)
	dateIdx := l.columnIndex(api.ColumnDate)

	if amountIdx < 0 || typeIdx < 0 {
		return nil, len(l.Rows)
	}

	records := make([]api.Record, 0, len(l.Rows))
	skipped := 0
	for _, row := range l.Rows {
		rec, err := parseRow(row, amountIdx, typeIdx, dateIdx)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

func parseRow(row []string, amountIdx, typeIdx, dateIdx int) (api.Record, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(cell(row, amountIdx)))
	if err != nil {
		return api.Record{}, fmt.Errorf("parsing amount: %w", err)
	}
	if amount.IsNegative() {
		return api.Record{}, fmt.Errorf("negative amount %s", amount)
	}

	typ, err := api.ParseType(cell(row, typeIdx))
	if err != nil {
		return api.Record{}, err
	}

	rec := api.Record{Amount: amount, Type: typ}
	if dateIdx >= 0 {
		rec.Date, _ = ParseDate(cell(row, dateIdx))
	}
	return rec, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func (l *Log) columnIndex(name string) int {
	return slices.Index(l.Columns, name)
}

// FormatAmount renders whole amounts with one decimal place ("50.0"), the way the
// log has always been written, and keeps fractional amounts as they are.
func FormatAmount(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(1)
	}
	return d.String()
}

var dateLayouts = []string{
	api.DateLayout,
	time.DateTime,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	time.DateOnly,
}

// ParseDate parses a date cell in any of the layouts the log is known to contain.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
