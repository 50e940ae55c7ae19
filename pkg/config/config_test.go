package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"SPENDLOG_ADDR", "SPENDLOG_LOG_FILE", "SPENDLOG_MAX_UPLOAD_MB",
		"SPENDLOG_MIRROR", "SPENDLOG_MIRROR_CONFIG", "SPENDLOG_CLIENT_SECRET", "SPENDLOG_TOKEN_FILE",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultLogFile, cfg.LogFile)
	assert.Equal(t, DefaultMaxUploadMB, cfg.MaxUploadMB)
	assert.Equal(t, ClientSecretFile, cfg.ClientSecret)
	assert.Equal(t, TokenFile, cfg.TokenFile)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
	assert.Empty(t, cfg.MirrorPlugin)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SPENDLOG_ADDR", "127.0.0.1:9000")
	t.Setenv("SPENDLOG_LOG_FILE", "/tmp/log.csv")
	t.Setenv("SPENDLOG_MAX_UPLOAD_MB", "2")
	t.Setenv("SPENDLOG_MIRROR", "json")
	t.Setenv("SPENDLOG_MIRROR_CONFIG", `{"filePath":"a.json","batchSize":1}`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "/tmp/log.csv", cfg.LogFile)
	assert.Equal(t, 2, cfg.MaxUploadMB)
	assert.Equal(t, "json", cfg.MirrorPlugin)

	raw, err := cfg.MirrorConfig()
	require.NoError(t, err)
	assert.JSONEq(t, `{"filePath":"a.json","batchSize":1}`, string(raw))
}

func TestLoad_InvalidMirrorConfig(t *testing.T) {
	t.Setenv("SPENDLOG_MIRROR_CONFIG", `{"filePath":`)

	_, err := Load("")
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SPENDLOG_ADDR=:7000\nSPENDLOG_LOG_FILE=from-dotenv.csv\n"), 0o600))

	// Already-set variables take precedence over the file.
	t.Setenv("SPENDLOG_LOG_FILE", "from-env.csv")
	// Registers cleanup so the value loaded from the file does not leak.
	t.Setenv("SPENDLOG_ADDR", "")
	require.NoError(t, os.Unsetenv("SPENDLOG_ADDR"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "from-env.csv", cfg.LogFile)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestMirrorConfig_Postgres(t *testing.T) {
	cfg := Config{
		MirrorPlugin: "postgres",
		Postgres: PostgresConfig{
			Host:     "db",
			Database: "spendlog",
			User:     "u",
			Password: "p",
		},
	}

	raw, err := cfg.MirrorConfig()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "db", got["host"])
	assert.EqualValues(t, DefaultPostgresPort, got["port"])
	assert.NotContains(t, got, "sslmode")

	cfg.Postgres.Host = ""
	_, err = cfg.MirrorConfig()
	assert.ErrorContains(t, err, "POSTGRES_HOST")
}

func TestLoad_PostgresFromEnv(t *testing.T) {
	t.Setenv("SPENDLOG_MIRROR", "postgres")
	t.Setenv("SPENDLOG_MIRROR_CONFIG", "")
	t.Setenv("POSTGRES_HOST", "db.example")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_DB", "spendlog")
	t.Setenv("POSTGRES_USER", "spender")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_SSLMODE", "require")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, PostgresConfig{
		Host:     "db.example",
		Port:     6543,
		Database: "spendlog",
		User:     "spender",
		Password: "secret",
		SSLMode:  "require",
	}, cfg.Postgres)

	raw, err := cfg.MirrorConfig()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"host": "db.example",
		"port": 6543,
		"database": "spendlog",
		"user": "spender",
		"password": "secret",
		"sslmode": "require"
	}`, string(raw))
}

func TestLoad_PostgresFromDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("POSTGRES_HOST=from-dotenv\n"), 0o600))

	t.Setenv("SPENDLOG_MIRROR", "postgres")
	t.Setenv("SPENDLOG_MIRROR_CONFIG", "")
	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("POSTGRES_HOST", "")
	require.NoError(t, os.Unsetenv("POSTGRES_HOST"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Postgres.Host)

	raw, err := cfg.MirrorConfig()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "from-dotenv", got["host"])
	assert.EqualValues(t, DefaultPostgresPort, got["port"])
}

func TestMirrorConfig_EmptyForOtherPlugins(t *testing.T) {
	raw, err := Config{MirrorPlugin: "sqlite"}.MirrorConfig()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}
