// Package sqlite provides a plugin wrapper for the SQLite writer.
package sqlite

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ArionMiles/spendlog/pkg/api"
	sqlitewriter "github.com/ArionMiles/spendlog/pkg/writer/sqlite"
)

// DefaultDBPath is used when no dbPath is configured.
const DefaultDBPath = "data/spendlog.db"

// Plugin implements the WriterPlugin interface for SQLite.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "sqlite"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Mirror recorded transactions to a local SQLite database"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return nil
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dbPath": map[string]any{
				"type":        "string",
				"description": "Path to the database file",
				"default":     DefaultDBPath,
			},
			"batchSize": map[string]any{
				"type":        "integer",
				"description": "Number of records to buffer before writing (default: 10)",
				"default":     10,
			},
			"flushInterval": map[string]any{
				"type":        "integer",
				"description": "Interval in seconds between automatic flushes (default: 30)",
				"default":     30,
			},
		},
	}
}

// Config represents the SQLite writer configuration.
type Config struct {
	DBPath        string `json:"dbPath,omitempty"`
	BatchSize     int    `json:"batchSize,omitempty"`
	FlushInterval int    `json:"flushInterval,omitempty"` // in seconds
}

// NewWriter creates a new SQLite writer instance.
func (p *Plugin) NewWriter(_ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Writer, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling sqlite config: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}

	return sqlitewriter.New(sqlitewriter.Config{
		DBPath:        cfg.DBPath,
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.FlushInterval) * time.Second,
	}, logger)
}
