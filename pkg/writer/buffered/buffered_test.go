package buffered

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/spendlog/pkg/api"
)

type recordingFlusher struct {
	mu      sync.Mutex
	batches [][]*api.Record
	err     error
}

func (f *recordingFlusher) flush(_ context.Context, records []*api.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	return f.err
}

func (f *recordingFlusher) sizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func rec(n int64) *api.Record {
	return &api.Record{Amount: decimal.NewFromInt(n), Type: api.Debit, Date: time.Now()}
}

func TestWrite_FlushesOnBatchSizeAndClose(t *testing.T) {
	f := &recordingFlusher{}
	w := New(f.flush, Config{BatchSize: 2, FlushInterval: time.Hour}, nil)

	in := make(chan *api.Record, 5)
	for i := range 5 {
		in <- rec(int64(i))
	}
	close(in)

	require.NoError(t, w.Write(context.Background(), in))
	assert.Equal(t, []int{2, 2, 1}, f.sizes())
	assert.Equal(t, 0, w.BufferLen())
}

func TestWrite_FlushesOnInterval(t *testing.T) {
	f := &recordingFlusher{}
	w := New(f.flush, Config{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, nil)

	in := make(chan *api.Record, 1)
	in <- rec(1)

	done := make(chan error, 1)
	go func() { done <- w.Write(context.Background(), in) }()

	assert.Eventually(t, func() bool { return len(f.sizes()) == 1 }, time.Second, 5*time.Millisecond)

	close(in)
	require.NoError(t, <-done)
	assert.Equal(t, []int{1}, f.sizes())
}

func TestWrite_FlushesOnCancel(t *testing.T) {
	f := &recordingFlusher{}
	w := New(f.flush, Config{BatchSize: 100, FlushInterval: time.Hour}, nil)

	in := make(chan *api.Record, 3)
	in <- rec(1)
	in <- rec(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Write(ctx, in) }()

	assert.Eventually(t, func() bool { return w.BufferLen() == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []int{2}, f.sizes())
}

func TestWrite_FlushErrorOnClose(t *testing.T) {
	f := &recordingFlusher{err: errors.New("disk full")}
	w := New(f.flush, Config{BatchSize: 10}, nil)

	in := make(chan *api.Record, 1)
	in <- rec(1)
	close(in)

	assert.EqualError(t, w.Write(context.Background(), in), "disk full")
}

func TestNew_Defaults(t *testing.T) {
	w := New(func(context.Context, []*api.Record) error { return nil }, Config{}, nil)
	assert.Equal(t, DefaultBatchSize, w.config.BatchSize)
	assert.Equal(t, DefaultFlushInterval, w.config.FlushInterval)
}
