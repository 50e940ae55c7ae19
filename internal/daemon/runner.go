// Package daemon wires the store, recorder, mirror writer and HTTP server
// into a running spendlog service.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ArionMiles/spendlog/internal/plugins"
	"github.com/ArionMiles/spendlog/pkg/api"
	"github.com/ArionMiles/spendlog/pkg/client"
	"github.com/ArionMiles/spendlog/pkg/config"
	"github.com/ArionMiles/spendlog/pkg/ledger"
	"github.com/ArionMiles/spendlog/pkg/recorder"
	"github.com/ArionMiles/spendlog/pkg/server"
)

const shutdownTimeout = 10 * time.Second

// Runner manages the spendlog service lifecycle.
type Runner struct {
	registry *plugins.Registry
	logger   *slog.Logger
}

// New creates a new runner.
func New(registry *plugins.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		registry: registry,
		logger:   logger,
	}
}

// Recorder builds the recorder for cfg and starts the configured mirror, if any.
// The caller must Close the recorder to flush the mirror.
func (r *Runner) Recorder(ctx context.Context, cfg config.Config) (*recorder.Recorder, error) {
	store := ledger.NewStore(cfg.LogFile, r.logger.With("component", "store"))
	rec := recorder.New(store, recorder.Options{
		Logger: r.logger.With("component", "recorder"),
	})

	if cfg.MirrorPlugin == "" {
		return rec, nil
	}

	writer, err := r.MirrorWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating mirror: %w", err)
	}

	// The mirror outlives request cancellation so Close can drain it.
	if err := rec.Mirror(context.WithoutCancel(ctx), writer); err != nil {
		return nil, err
	}
	return rec, nil
}

// MirrorWriter creates the writer for cfg.MirrorPlugin, authorizing it with the
// saved Google token when the plugin needs OAuth scopes.
func (r *Runner) MirrorWriter(cfg config.Config) (api.Writer, error) {
	plugin, err := r.registry.GetWriter(cfg.MirrorPlugin)
	if err != nil {
		return nil, err
	}

	rawConfig, err := cfg.MirrorConfig()
	if err != nil {
		return nil, err
	}
	if err := plugins.ValidateConfig(plugin, rawConfig); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", plugin.Name(), err)
	}

	var httpClient *http.Client
	if scopes := plugin.RequiredScopes(); len(scopes) > 0 {
		r.logger.Info("OAuth scopes required", "plugin", plugin.Name(), "scopes", scopes)
		httpClient, err = client.Load(cfg.ClientSecret, cfg.TokenFile, scopes...)
		if err != nil {
			return nil, fmt.Errorf("creating http client: %w", err)
		}
	}

	return r.registry.CreateWriter(
		cfg.MirrorPlugin,
		httpClient,
		rawConfig,
		r.logger.With("component", "mirror", "plugin", cfg.MirrorPlugin),
	)
}

// Run serves the page and API on cfg.Addr until ctx is canceled.
func (r *Runner) Run(ctx context.Context, cfg config.Config) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr, err)
	}
	return r.Serve(ctx, cfg, ln)
}

// Serve is Run on an existing listener.
func (r *Runner) Serve(ctx context.Context, cfg config.Config, ln net.Listener) error {
	r.logger.Info("starting spendlog",
		"log_file", cfg.LogFile,
		"mirror", cfg.MirrorPlugin,
	)

	rec, err := r.Recorder(ctx, cfg)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			r.logger.Error("mirror error", "error", err)
		}
	}()

	srv, err := server.New(rec, server.Config{MaxUploadBytes: cfg.MaxUploadBytes()}, r.logger.With("component", "server"))
	if err != nil {
		ln.Close()
		return err
	}

	httpServer := &http.Server{
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()
	r.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("http shutdown", "error", err)
		}
	}

	r.logger.Info("spendlog stopped")
	return nil
}
