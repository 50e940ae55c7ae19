package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptySource is returned when a CSV source has no header row.
var ErrEmptySource = errors.New("no columns to parse from file")

const utf8BOM = "\ufeff"

// ReadCSV reads a log from CSV. The first row is the header. Rows shorter than the
// header are padded with empty cells; longer rows are an error.
func ReadCSV(r io.Reader) (*Log, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrEmptySource
	}

	header := records[0]
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	rows := make([][]string, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, saw %d", i+2, len(header), len(rec))
		}
		if len(rec) < len(header) {
			rec = append(rec, make([]string, len(header)-len(rec))...)
		}
		rows = append(rows, rec)
	}

	return &Log{Columns: header, Rows: rows}, nil
}

// WriteCSV writes the header and every row of the log.
func WriteCSV(w io.Writer, l *Log) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(l.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range l.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
