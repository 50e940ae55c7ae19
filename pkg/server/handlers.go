package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ArionMiles/spendlog/pkg/api"
	"github.com/ArionMiles/spendlog/pkg/ledger"
	"github.com/ArionMiles/spendlog/pkg/parser"
)

// Messages shown on the page.
const (
	msgInvalidFormat = "Invalid message format. Please include a valid amount in your message."
	msgUnclassified  = "Unable to classify the transaction. Please try again."
)

// maxRequestBytes caps JSON request bodies.
const maxRequestBytes = 64 << 10

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encoding JSON response", "status", status, "error", err)
	}
}

func (s *Server) httpError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type table struct {
	Columns []string
	Rows    [][]string
}

func tableOf(l *ledger.Log) *table {
	if l == nil {
		return nil
	}
	return &table{Columns: l.Columns, Rows: l.Rows}
}

type pageData struct {
	Notice     *notice
	UploadName string
	Uploaded   *table
	Log        *table
	Summary    ledger.Summary
	Message    string
}

// IndexHandler renders the page: upload form, message form, the uploaded data
// and the transaction log.
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	var (
		data pageData
		base *ledger.Log
	)
	s.sessions.with(w, r, func(sess *session) {
		data.Notice = sess.notice
		sess.notice = nil
		data.UploadName = sess.uploadName
		data.Uploaded = tableOf(sess.upload)
		base = sess.base
	})

	current := base
	if current == nil {
		l, err := s.store.Load(r.Context())
		if err != nil {
			s.logger.Warn("showing empty transaction log", "error", err)
			if data.Notice == nil {
				data.Notice = &notice{Kind: "error", Message: fmt.Sprintf("Could not read the transaction log: %v", err)}
			}
		}
		current = l
	}
	data.Log = tableOf(current)
	data.Summary = ledger.Summarize(current)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("rendering page", "error", err)
	}
}

// UploadHandler accepts a CSV file in the "file" form field and keeps it for the
// caller's session.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	l, name, err := s.readUpload(r)
	s.sessions.with(w, r, func(sess *session) {
		if err != nil {
			sess.notice = &notice{Kind: "error", Message: err.Error()}
		}
		if l == nil {
			return
		}
		sess.uploadName = name
		sess.upload = l
		sess.base = l
	})

	redirectHome(w, r)
}

// readUpload returns the uploaded log. When the file itself cannot be parsed it
// returns the empty log together with the error.
func (s *Server) readUpload(r *http.Request) (*ledger.Log, string, error) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("Upload is larger than %d MB.", s.maxUpload>>20)
		}
		return nil, "", fmt.Errorf("Could not read the upload: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("Choose a CSV file to upload.")
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		return nil, "", errors.New("Only .csv files can be uploaded.")
	}

	l, err := s.store.LoadSource(r.Context(), ledger.ReaderSource(header.Filename, file))
	if err != nil {
		s.logger.Warn("upload could not be parsed, using empty log", "file", header.Filename, "error", err)
		return l, header.Filename, fmt.Errorf("Could not parse %s, starting from an empty log: %v", header.Filename, err)
	}
	return l, header.Filename, nil
}

// SubmitHandler records the message in the "message" form field.
func (s *Server) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	message := strings.TrimSpace(r.FormValue("message"))

	var base *ledger.Log
	s.sessions.with(w, r, func(sess *session) {
		base = sess.base
	})

	var (
		n         *notice
		persisted bool
	)
	res, err := s.rec.Submit(r.Context(), base, message)
	switch {
	case err == nil:
		persisted = true
		n = &notice{
			Kind:    "success",
			Message: fmt.Sprintf("Transaction added: %s of $%s", res.Record.Type, ledger.FormatAmount(res.Record.Amount)),
		}
	case errors.Is(err, parser.ErrNoAmount):
		n = &notice{Kind: "error", Message: msgInvalidFormat}
	case errors.Is(err, parser.ErrUnclassified):
		n = &notice{Kind: "error", Message: msgUnclassified}
	default:
		s.logger.Error("recording transaction", "error", err)
		n = &notice{Kind: "error", Message: fmt.Sprintf("Could not save the transaction: %v", err)}
	}

	s.sessions.with(w, r, func(sess *session) {
		sess.notice = n
		// A newer upload replaces base and must survive.
		if persisted && sess.base == base {
			sess.base = nil
		}
	})

	redirectHome(w, r)
}

// ResetHandler forgets the caller's upload.
func (s *Server) ResetHandler(w http.ResponseWriter, r *http.Request) {
	s.sessions.with(w, r, func(sess *session) {
		sess.uploadName = ""
		sess.upload = nil
		sess.base = nil
	})
	redirectHome(w, r)
}

type logResponse struct {
	Columns []string       `json:"columns"`
	Rows    [][]string     `json:"rows"`
	Summary ledger.Summary `json:"summary"`
}

// ListTransactionsHandler returns the persisted log.
func (s *Server) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	l, err := s.store.Load(r.Context())
	if err != nil && !errors.Is(err, ledger.ErrMalformed) {
		s.httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, logResponse{
		Columns: l.Columns,
		Rows:    l.Rows,
		Summary: ledger.Summarize(l),
	})
}

type createTransactionRequest struct {
	Message string `json:"message"`
}

type createTransactionResponse struct {
	Record *api.Record `json:"record"`
	Rows   int         `json:"rows"`
}

// CreateTransactionHandler records a message sent as JSON.
func (s *Server) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.httpError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body is larger than %d bytes", tooLarge.Limit))
			return
		}
		s.httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.rec.Submit(r.Context(), nil, req.Message)
	switch {
	case err == nil:
		s.jsonResponse(w, http.StatusCreated, createTransactionResponse{Record: res.Record, Rows: res.Log.Len()})
	case errors.Is(err, parser.ErrNoAmount), errors.Is(err, parser.ErrUnclassified):
		s.httpError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrConflict):
		s.httpError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("recording transaction", "error", err)
		s.httpError(w, http.StatusInternalServerError, "could not save the transaction")
	}
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
