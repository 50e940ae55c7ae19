package parser

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/spendlog/pkg/api"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    api.Type
	}{
		{"spent", "I spent 50 on groceries", api.Debit},
		{"buy", "buy milk for 3", api.Debit},
		{"upper case", "SPENT 20 ON TAXI", api.Debit},
		{"received", "Received 1000 as salary", api.Credit},
		{"income", "side INCOME 200", api.Credit},
		{"debit wins over credit", "received 10 and spent 5", api.Debit},
		{"bought is not buy", "I bought 3 items for 50", api.Unknown},
		{"negation is not understood", "I never spent 40", api.Debit},
		{"no keyword", "hello there", api.Unknown},
		{"substring inside word", "overspent by 5", api.Debit},
		{"empty", "", api.Unknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.message))
		})
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"single number", "I spent 50 on groceries", "50"},
		{"first run wins", "spent 50 on 3 items", "50"},
		{"decimal truncated", "spent 12.50 on lunch", "12"},
		{"comma splits run", "received 1,000", "1"},
		{"currency symbol", "spent $75 today", "75"},
		{"leading zeros", "buy 007 gadgets", "7"},
		{"digits glued to words", "spent50", "50"},
		{"large number", "received 123456789012345678901234567890", "123456789012345678901234567890"},
		{"devanagari digits", "spent ५० on groceries", "50"},
		{"arabic-indic digits", "spent ٥٠ on tea", "50"},
		{"extended arabic-indic digits", "received ۱۲۳", "123"},
		{"fullwidth digits", "buy ７ apples", "7"},
		{"mixed scripts in one run", "spent 5٥", "55"},
		{"bengali nine", "spent ৯", "9"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractAmount(tc.message)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s, want %s", got, tc.want)
		})
	}
}

func TestExtractAmount_NoDigits(t *testing.T) {
	for _, msg := range []string{"", "hello there", "spent some money", "received twelve"} {
		_, err := ExtractAmount(msg)
		assert.ErrorIs(t, err, ErrNoAmount, "message %q", msg)
	}
}

func TestDigitValue(t *testing.T) {
	for _, zero := range []rune{'0', '٠', '۰', '०', '০', '๐', '０', 0x1D7CE, 0x1D7D8, 0x1D7F6} {
		for i := rune(0); i < 10; i++ {
			assert.Equal(t, int(i), digitValue(zero+i), "rune %U", zero+i)
		}
	}
}

func TestParse_UnicodeDigits(t *testing.T) {
	rec, err := Parse("spent ५० on groceries", time.Now())
	require.NoError(t, err)
	assert.Equal(t, api.Debit, rec.Type)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(50)))
}

func TestParse(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	t.Run("debit", func(t *testing.T) {
		rec, err := Parse("I spent 50 on groceries", now)
		require.NoError(t, err)
		assert.Equal(t, api.Debit, rec.Type)
		assert.True(t, rec.Amount.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, now, rec.Date)
	})

	t.Run("credit", func(t *testing.T) {
		rec, err := Parse("Received 1000 as salary", now)
		require.NoError(t, err)
		assert.Equal(t, api.Credit, rec.Type)
		assert.True(t, rec.Amount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("no amount is reported before classification", func(t *testing.T) {
		_, err := Parse("hello there", now)
		assert.ErrorIs(t, err, ErrNoAmount)

		_, err = Parse("spent a lot", now)
		assert.ErrorIs(t, err, ErrNoAmount)
	})

	t.Run("unknown keyword with amount", func(t *testing.T) {
		rec, err := Parse("I bought 3 items for 50", now)
		assert.ErrorIs(t, err, ErrUnclassified)
		assert.Nil(t, rec)

		amount, err := ExtractAmount("I bought 3 items for 50")
		require.NoError(t, err)
		assert.True(t, amount.Equal(decimal.NewFromInt(3)))
	})
}
