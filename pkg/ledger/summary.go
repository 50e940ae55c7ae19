package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/spendlog/pkg/api"
)

// Summary totals the readable rows of a log.
type Summary struct {
	// Count is the number of rows that parsed as records.
	Count int `json:"count"`
	// Skipped is the number of rows that did not.
	Skipped int             `json:"skipped"`
	Debits  decimal.Decimal `json:"debits"`
	Credits decimal.Decimal `json:"credits"`
	// Net is Credits minus Debits.
	Net decimal.Decimal `json:"net"`
}

// Summarize computes the Summary of l.
func Summarize(l *Log) Summary {
	records, skipped := l.Records()

	sum := Summary{
		Count:   len(records),
		Skipped: skipped,
		Debits:  decimal.Zero,
		Credits: decimal.Zero,
	}
	for _, rec := range records {
		switch rec.Type {
		case api.Debit:
			sum.Debits = sum.Debits.Add(rec.Amount)
		case api.Credit:
			sum.Credits = sum.Credits.Add(rec.Amount)
		}
	}
	sum.Net = sum.Credits.Sub(sum.Debits)
	return sum
}
