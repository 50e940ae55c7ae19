package json

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/spendlog/pkg/api"
)

func writeAll(t *testing.T, w *Writer, records ...*api.Record) {
	t.Helper()
	in := make(chan *api.Record, len(records))
	for _, r := range records {
		in <- r
	}
	close(in)
	require.NoError(t, w.Write(context.Background(), in))
}

func TestWriter_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.json")
	when := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	w, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	writeAll(t, w, &api.Record{Amount: decimal.NewFromInt(50), Type: api.Debit, Date: when})
	assert.Equal(t, 1, w.RecordCount())

	// A second writer picks up what the first one wrote.
	w2, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	writeAll(t, w2, &api.Record{Amount: decimal.NewFromInt(1000), Type: api.Credit, Date: when})
	assert.Equal(t, 2, w2.RecordCount())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []api.Record
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, api.Debit, got[0].Type)
	assert.True(t, got[1].Amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got[1].Date.Equal(when))
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestNew_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	w, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, w.RecordCount())
}
