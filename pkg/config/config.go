// Package config loads spendlog settings from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Default paths of the Google OAuth credentials and the saved token.
const (
	ClientSecretFile = "data/client_secret.json"
	TokenFile        = "data/token.json"
)

// Defaults for settings that are not provided.
const (
	DefaultAddr         = ":8501"
	DefaultLogFile      = "transactions.csv"
	DefaultMaxUploadMB  = 10
	DefaultDotEnvFile   = ".env"
	DefaultPostgresPort = 5432
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Addr is the HTTP listen address.
	// Environment variable: SPENDLOG_ADDR
	Addr string `koanf:"SPENDLOG_ADDR"`

	// LogFile is the path of the persisted transaction log.
	// Environment variable: SPENDLOG_LOG_FILE
	LogFile string `koanf:"SPENDLOG_LOG_FILE"`

	// MaxUploadMB caps the size of an uploaded CSV.
	// Environment variable: SPENDLOG_MAX_UPLOAD_MB
	MaxUploadMB int `koanf:"SPENDLOG_MAX_UPLOAD_MB"`

	// MirrorPlugin is the name of the optional mirror writer plugin.
	// Environment variable: SPENDLOG_MIRROR
	MirrorPlugin string `koanf:"SPENDLOG_MIRROR"`

	// MirrorConfigJSON is the JSON configuration for the mirror plugin.
	// Environment variable: SPENDLOG_MIRROR_CONFIG
	MirrorConfigJSON string `koanf:"SPENDLOG_MIRROR_CONFIG"`

	// ClientSecret is the path to the Google OAuth credentials.
	// Environment variable: SPENDLOG_CLIENT_SECRET
	ClientSecret string `koanf:"SPENDLOG_CLIENT_SECRET"`

	// TokenFile is where the OAuth token is saved by setup.
	// Environment variable: SPENDLOG_TOKEN_FILE
	TokenFile string `koanf:"SPENDLOG_TOKEN_FILE"`

	// PostgreSQL configuration (used by the postgres mirror when no JSON config is set).
	// Read from the POSTGRES_* variables by Load.
	Postgres PostgresConfig `koanf:"-"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// LoadDotEnv copies the variables of an optional .env file into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv(dotenvPath string) error {
	if dotenvPath == "" {
		return nil
	}
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", dotenvPath, err)
	}
	return nil
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the .env file.
func Load(dotenvPath string) (Config, error) {
	if err := LoadDotEnv(dotenvPath); err != nil {
		return Config{}, err
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Postgres = PostgresConfig{
		Host:     k.String("POSTGRES_HOST"),
		Port:     k.Int("POSTGRES_PORT"),
		Database: k.String("POSTGRES_DB"),
		User:     k.String("POSTGRES_USER"),
		Password: k.String("POSTGRES_PASSWORD"),
		SSLMode:  k.String("POSTGRES_SSLMODE"),
	}
	cfg.setDefaults()

	if cfg.MaxUploadMB < 0 {
		return Config{}, fmt.Errorf("SPENDLOG_MAX_UPLOAD_MB must not be negative, got %d", cfg.MaxUploadMB)
	}
	if cfg.MirrorConfigJSON != "" && !json.Valid([]byte(cfg.MirrorConfigJSON)) {
		return Config{}, fmt.Errorf("SPENDLOG_MIRROR_CONFIG is not valid JSON")
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.ClientSecret == "" {
		c.ClientSecret = ClientSecretFile
	}
	if c.TokenFile == "" {
		c.TokenFile = TokenFile
	}
}

// MaxUploadBytes returns the upload cap in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// MirrorConfig returns the JSON config for the mirror plugin. When none is set
// and the postgres mirror is selected, it is built from the POSTGRES_* variables.
func (c Config) MirrorConfig() (json.RawMessage, error) {
	if c.MirrorConfigJSON != "" {
		return json.RawMessage(c.MirrorConfigJSON), nil
	}
	if c.MirrorPlugin != "postgres" {
		return json.RawMessage("{}"), nil
	}

	pg := c.Postgres
	if pg.Host == "" {
		return nil, fmt.Errorf("POSTGRES_HOST is required for the postgres mirror")
	}
	if pg.Port == 0 {
		pg.Port = DefaultPostgresPort
	}

	cfg := map[string]any{
		"host":     pg.Host,
		"port":     pg.Port,
		"database": pg.Database,
		"user":     pg.User,
		"password": pg.Password,
	}
	if pg.SSLMode != "" {
		cfg["sslmode"] = pg.SSLMode
	}

	return json.Marshal(cfg)
}
