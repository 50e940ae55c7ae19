// Package sqlite implements a Writer that mirrors records into a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ArionMiles/spendlog/pkg/api"
	"github.com/ArionMiles/spendlog/pkg/writer/buffered"
)

// Schema creates the records table.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    amount TEXT NOT NULL,              -- decimal string, e.g. "50"
    type TEXT NOT NULL,                -- 'debit' or 'credit'
    recorded_at TEXT NOT NULL,         -- RFC 3339 with nanoseconds
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_recorded_at
    ON records(recorded_at);
`

// Config holds configuration for the SQLite writer.
type Config struct {
	// DBPath is the path to the database file.
	DBPath string
	// BatchSize is the number of records to buffer before writing.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration
}

// Writer writes records to SQLite with buffered batching.
type Writer struct {
	db       *sql.DB
	buffered *buffered.Writer
	logger   *slog.Logger
}

// New opens (or creates) the database and initializes the schema.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("sqlite writer: database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL", cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	w := &Writer{
		db:     db,
		logger: logger,
	}
	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "sqlite_buffer"))

	logger.Info("sqlite writer initialized", "db", cfg.DBPath)
	return w, nil
}

// Write consumes records from the input channel and inserts them.
// The database is closed when Write returns.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Record) error {
	defer w.Close()
	return w.buffered.Write(ctx, in)
}

func (w *Writer) flushBatch(ctx context.Context, records []*api.Record) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (amount, type, recorded_at) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Amount.String(), string(rec.Type), rec.Date.Format(time.RFC3339Nano)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Count returns the number of rows in the records table.
func (w *Writer) Count(ctx context.Context) (int, error) {
	var n int
	if err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}
