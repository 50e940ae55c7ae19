// Package parser turns free-text messages like "spent 50 on groceries" into records.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/spendlog/pkg/api"
)

var (
	// ErrNoAmount is returned when a message contains no digits.
	ErrNoAmount = errors.New("invalid message format: include an amount in your message")
	// ErrUnclassified is returned when a message has neither debit nor credit keywords.
	ErrUnclassified = errors.New("unable to classify the transaction")
)

// amountRegex matches the first run of decimal digits in any script, so "५०" and
// "٥٠" are 50 like "50". Decimal points and separators are not part of the match,
// so "12.50" yields 12.
var amountRegex = regexp.MustCompile(`\p{Nd}+`)

// Keywords are checked in order; debit wins when a message has both kinds.
var (
	debitKeywords  = []string{"spent", "buy"}
	creditKeywords = []string{"received", "income"}
)

// Classify returns Debit, Credit or Unknown using a case-insensitive substring match.
// Negations are not understood: "did not spend" has no keyword, "never spent" is a debit.
func Classify(message string) api.Type {
	lower := strings.ToLower(message)
	if containsAny(lower, debitKeywords) {
		return api.Debit
	}
	if containsAny(lower, creditKeywords) {
		return api.Credit
	}
	return api.Unknown
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// ExtractAmount parses the first run of digits in the message.
func ExtractAmount(message string) (decimal.Decimal, error) {
	match := amountRegex.FindString(message)
	if match == "" {
		return decimal.Zero, ErrNoAmount
	}

	amount, err := decimal.NewFromString(asciiDigits(match))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", match, err)
	}
	return amount, nil
}

// asciiDigits rewrites a run of Nd digits as '0'-'9'.
func asciiDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteByte('0' + byte(digitValue(r)))
	}
	return b.String()
}

// digitValue returns the value of a decimal digit rune. Nd digits are encoded in
// contiguous runs from zero to nine, so a range of unicode.Nd starts at a zero.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	for _, rg := range unicode.Nd.R16 {
		if lo, hi := rune(rg.Lo), rune(rg.Hi); r >= lo && r <= hi {
			return int((r-lo)/rune(rg.Stride)) % 10
		}
	}
	for _, rg := range unicode.Nd.R32 {
		if lo, hi := rune(rg.Lo), rune(rg.Hi); r >= lo && r <= hi {
			return int((r-lo)/rune(rg.Stride)) % 10
		}
	}
	return 0
}

// Parse builds a record from a message. The amount is checked before the
// classification, so a message without digits always fails with ErrNoAmount.
func Parse(message string, now time.Time) (*api.Record, error) {
	amount, err := ExtractAmount(message)
	if err != nil {
		return nil, err
	}

	typ := Classify(message)
	if typ == api.Unknown {
		return nil, ErrUnclassified
	}

	return &api.Record{
		Amount: amount,
		Type:   typ,
		Date:   now,
	}, nil
}
