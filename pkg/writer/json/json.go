// Package json implements a Writer that mirrors records to a JSON file.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ArionMiles/spendlog/pkg/api"
	"github.com/ArionMiles/spendlog/pkg/writer/buffered"
)

// Writer writes records to a JSON file with buffered batching.
type Writer struct {
	filePath string
	records  []*api.Record
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the JSON writer.
type Config struct {
	// FilePath is the path to the JSON output file.
	FilePath string
	// BatchSize is the number of records to buffer before writing.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration
}

// New creates a new JSON writer.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("json writer: file path is required")
	}

	w := &Writer{
		filePath: cfg.FilePath,
		records:  make([]*api.Record, 0),
		logger:   logger,
	}

	// Load existing records if file exists
	if err := w.loadExisting(); err != nil {
		logger.Warn("could not load existing records", "error", err)
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "json_buffer"))

	logger.Info("json writer initialized", "file", cfg.FilePath, "existing_count", len(w.records))
	return w, nil
}

// loadExisting loads existing records from the JSON file if it exists.
func (w *Writer) loadExisting() error {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, &w.records)
}

// Write consumes records from the input channel and writes them to JSON.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Record) error {
	return w.buffered.Write(ctx, in)
}

// flushBatch appends a batch of records and writes to the JSON file.
func (w *Writer) flushBatch(_ context.Context, records []*api.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.records = append(w.records, records...)

	// Write entire array to file (JSON doesn't support appending)
	data, err := json.MarshalIndent(w.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	if err := os.WriteFile(w.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}

	w.logger.Debug("wrote records to json",
		"batch_count", len(records),
		"total_count", len(w.records),
	)
	return nil
}

// RecordCount returns the total number of records written.
func (w *Writer) RecordCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}
