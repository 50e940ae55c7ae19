// Package recorder turns free-text messages into records appended to the
// transaction log, and optionally mirrors each accepted record to a writer.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/spendlog/pkg/api"
	"github.com/ArionMiles/spendlog/pkg/ledger"
	"github.com/ArionMiles/spendlog/pkg/parser"
)

// Defaults for Options left at their zero value.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 20 * time.Millisecond
	mirrorBuffer      = 100
)

// Options configures a Recorder.
type Options struct {
	// Now returns the timestamp for new records. Defaults to time.Now.
	Now func() time.Time
	// Attempts bounds how often a submission is re-applied after ErrConflict.
	Attempts uint
	// RetryDelay is the base delay between attempts.
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Result is the outcome of a successful submission.
type Result struct {
	Record *api.Record
	// Log is the log as persisted, including the new row.
	Log *ledger.Log
}

// Recorder appends parsed messages to a store.
type Recorder struct {
	store      *ledger.Store
	now        func() time.Time
	attempts   uint
	retryDelay time.Duration
	logger     *slog.Logger

	mu         sync.Mutex
	mirror     chan *api.Record
	mirrorDone chan error
}

// New creates a Recorder writing to store.
func New(store *ledger.Store, opts Options) *Recorder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Attempts == 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Recorder{
		store:      store,
		now:        opts.Now,
		attempts:   opts.Attempts,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
	}
}

// Store returns the store the recorder writes to.
func (r *Recorder) Store() *ledger.Store {
	return r.store
}

// Submit parses message and appends the resulting record.
//
// With a nil base the store's current log is loaded, appended to and saved; a
// concurrent write detected at save time makes Submit reload and try again. With
// a non-nil base (an uploaded log) a copy of base gets the new row and replaces
// the store's file. base itself is never modified.
//
// Parse failures (parser.ErrNoAmount, parser.ErrUnclassified) are returned as is
// and nothing is written.
func (r *Recorder) Submit(ctx context.Context, base *ledger.Log, message string) (*Result, error) {
	rec, err := parser.Parse(message, r.now())
	if err != nil {
		r.logger.Info("message rejected", "error", err)
		return nil, err
	}

	var out *ledger.Log
	if base != nil {
		out, err = r.appendTo(ctx, base, rec)
	} else {
		out, err = r.appendToStore(ctx, rec)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("recorded transaction",
		"amount", rec.Amount.String(),
		"type", rec.Type,
		"rows", out.Len(),
	)
	r.publish(rec)

	return &Result{Record: rec, Log: out}, nil
}

func (r *Recorder) appendTo(ctx context.Context, base *ledger.Log, rec *api.Record) (*ledger.Log, error) {
	l := base.Clone()
	l.Append(rec)
	if err := r.store.Save(ctx, l); err != nil {
		return nil, fmt.Errorf("saving transaction log: %w", err)
	}
	return l, nil
}

func (r *Recorder) appendToStore(ctx context.Context, rec *api.Record) (*ledger.Log, error) {
	var out *ledger.Log

	err := retry.Do(
		func() error {
			l, err := r.store.Load(ctx)
			if err != nil {
				if !errors.Is(err, ledger.ErrMalformed) {
					return err
				}
				r.logger.Warn("replacing unreadable transaction log", "file", r.store.Path(), "error", err)
			}

			l.Append(rec)
			if err := r.store.Save(ctx, l); err != nil {
				return err
			}
			out = l
			return nil
		},
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, ledger.ErrConflict) {
				r.logger.Warn("transaction log changed concurrently, retrying", "file", r.store.Path())
				return true
			}
			return false
		}),
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("saving transaction log: %w", err)
	}
	return out, nil
}

// Mirror starts w in the background. Every record accepted from now on is sent
// to it until Close is called. Only one mirror can be active.
func (r *Recorder) Mirror(ctx context.Context, w api.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mirror != nil {
		return fmt.Errorf("mirror already running")
	}

	in := make(chan *api.Record, mirrorBuffer)
	done := make(chan error, 1)
	go func() {
		done <- w.Write(ctx, in)
	}()

	r.mirror = in
	r.mirrorDone = done
	r.logger.Info("mirror writer started")
	return nil
}

// publish hands rec to the mirror without blocking the caller.
func (r *Recorder) publish(rec *api.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mirror == nil {
		return
	}

	cp := *rec
	select {
	case r.mirror <- &cp:
	default:
		r.logger.Warn("mirror queue full, dropping record", "amount", rec.Amount.String(), "type", rec.Type)
	}
}

// Close stops the mirror, waiting for it to flush what it has buffered.
func (r *Recorder) Close() error {
	r.mu.Lock()
	in, done := r.mirror, r.mirrorDone
	r.mirror, r.mirrorDone = nil, nil
	r.mu.Unlock()

	if in == nil {
		return nil
	}

	close(in)
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mirror writer: %w", err)
	}
	r.logger.Info("mirror writer stopped")
	return nil
}
