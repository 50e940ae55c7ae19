// Package server serves the expense tracker page and its JSON API.
package server

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/spendlog/pkg/ledger"
	"github.com/ArionMiles/spendlog/pkg/recorder"
)

//go:embed templates/index.html
var templateFS embed.FS

// DefaultMaxUploadBytes caps uploads when Config.MaxUploadBytes is not set.
const DefaultMaxUploadBytes = 10 << 20

// Config holds server options.
type Config struct {
	// MaxUploadBytes is the largest accepted CSV upload.
	MaxUploadBytes int64
}

// Server handles HTTP requests for one recorder.
type Server struct {
	rec       *recorder.Recorder
	store     *ledger.Store
	sessions  *sessionStore
	page      *template.Template
	maxUpload int64
	logger    *slog.Logger
}

// New creates a Server around rec.
func New(rec *recorder.Recorder, cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	page, err := template.New("index.html").Funcs(template.FuncMap{
		"amount": ledger.FormatAmount,
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}

	return &Server{
		rec:       rec,
		store:     rec.Store(),
		sessions:  newSessionStore(),
		page:      page,
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger,
	}, nil
}

// Router returns the HTTP handler with all routes and request logging.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Page routes
	mux.HandleFunc("GET /{$}", s.IndexHandler)
	mux.HandleFunc("POST /upload", s.UploadHandler)
	mux.HandleFunc("POST /submit", s.SubmitHandler)
	mux.HandleFunc("POST /reset", s.ResetHandler)

	// API routes
	mux.HandleFunc("GET /api/v1/transactions", s.ListTransactionsHandler)
	mux.HandleFunc("POST /api/v1/transactions", s.CreateTransactionHandler)

	mux.HandleFunc("GET /healthz", s.HealthHandler)

	return s.LoggingMiddleware(mux)
}
