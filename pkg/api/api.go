// Package api defines the core interfaces and data structures for spendlog.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column names of the transaction log.
const (
	ColumnAmount = "amount"
	ColumnType   = "type"
	ColumnDate   = "date"
)

// Columns is the fixed schema of an empty transaction log.
var Columns = []string{ColumnAmount, ColumnType, ColumnDate}

// DateLayout is the layout used for the date column.
const DateLayout = "2006-01-02 15:04:05.000000"

// Type classifies a record as money going out or coming in.
type Type string

const (
	Debit   Type = "debit"
	Credit  Type = "credit"
	Unknown Type = "unknown"
)

// ParseType converts a log cell to a Type. The legacy spelling "debt" maps to Debit.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit", "debt":
		return Debit, nil
	case "credit":
		return Credit, nil
	case "unknown":
		return Unknown, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// Record is one row of the transaction log.
type Record struct {
	Amount decimal.Decimal `json:"amount"`
	Type   Type            `json:"type"`
	// Date is the wall-clock time the record was submitted.
	Date time.Time `json:"date"`
}

// Writer consumes records from a channel and mirrors them to a destination.
// It returns once the channel is closed and everything buffered has been flushed,
// or when the context is canceled.
type Writer interface {
	Write(ctx context.Context, in <-chan *Record) error
}
