package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/spendlog/pkg/ledger"
	"github.com/ArionMiles/spendlog/pkg/recorder"
)

var fixedNow = time.Date(2026, 10, 18, 14, 30, 45, 123456000, time.Local)

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	path   string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "transactions.csv")
	rec := recorder.New(ledger.NewStore(path, nil), recorder.Options{
		Now: func() time.Time { return fixedNow },
	})
	s, err := New(rec, cfg, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		srv:    srv,
		client: &http.Client{Jar: jar},
		path:   path,
	}
}

func (e *testEnv) page(t *testing.T) string {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// submit posts a message and returns the page it redirects to.
func (e *testEnv) submit(t *testing.T, message string) string {
	t.Helper()
	resp, err := e.client.PostForm(e.srv.URL+"/submit", url.Values{"message": {message}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (e *testEnv) upload(t *testing.T, name, content string) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := e.client.Post(e.srv.URL+"/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (e *testEnv) file(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(e.path)
	require.NoError(t, err)
	return string(data)
}

func TestIndex_EmptyLog(t *testing.T) {
	e := newTestEnv(t, Config{})

	body := e.page(t)
	assert.Contains(t, body, "Expense Tracker")
	assert.Contains(t, body, "<th>amount</th><th>type</th><th>date</th>")
	assert.Contains(t, body, "No transactions yet.")
	assert.NotContains(t, body, "Uploaded Transactions Data")
}

func TestSubmit_Page(t *testing.T) {
	e := newTestEnv(t, Config{})

	body := e.submit(t, "I spent 50 on groceries")
	assert.Contains(t, body, "Transaction added: debit of $50.0")
	assert.Contains(t, body, "<td>50.0</td><td>debit</td><td>2026-10-18 14:30:45.123456</td>")
	assert.Equal(t, "amount,type,date\n50.0,debit,2026-10-18 14:30:45.123456\n", e.file(t))

	// The notice is shown once.
	assert.NotContains(t, e.page(t), "Transaction added")
}

func TestSubmit_PageErrors(t *testing.T) {
	e := newTestEnv(t, Config{})

	assert.Contains(t, e.submit(t, "hello there"), msgInvalidFormat)
	assert.Contains(t, e.submit(t, "I bought 3 items for 50"), msgUnclassified)
	assert.Contains(t, e.submit(t, "   "), msgInvalidFormat)
	assert.Contains(t, e.submit(t, ""), msgInvalidFormat)

	_, err := os.Stat(e.path)
	assert.True(t, os.IsNotExist(err), "nothing must be persisted")
}

func TestUpload_ThenSubmit(t *testing.T) {
	e := newTestEnv(t, Config{})

	// Something already on disk is replaced by the uploaded log plus the new row.
	e.submit(t, "spent 1")

	body := e.upload(t, "bank.csv", "amount,type,date\n10.0,credit,2026-01-01 00:00:00.000000\n")
	assert.Contains(t, body, "Uploaded Transactions Data")
	assert.Contains(t, body, "<td>10.0</td><td>credit</td>")
	assert.NotContains(t, body, "<td>1.0</td>")

	e.submit(t, "buy coffee 4")
	assert.Equal(t,
		"amount,type,date\n"+
			"10.0,credit,2026-01-01 00:00:00.000000\n"+
			"4.0,debit,2026-10-18 14:30:45.123456\n",
		e.file(t))

	// Later submissions build on the persisted log, not the stale upload.
	e.submit(t, "received 6")
	assert.Equal(t,
		"amount,type,date\n"+
			"10.0,credit,2026-01-01 00:00:00.000000\n"+
			"4.0,debit,2026-10-18 14:30:45.123456\n"+
			"6.0,credit,2026-10-18 14:30:45.123456\n",
		e.file(t))
}

func TestUpload_VerbatimColumns(t *testing.T) {
	e := newTestEnv(t, Config{})

	body := e.upload(t, "other.csv", "when,what\nmon,tea\n")
	assert.Contains(t, body, "<th>when</th><th>what</th>")
	assert.Contains(t, body, "<td>mon</td><td>tea</td>")
}

func TestUpload_Unparseable(t *testing.T) {
	e := newTestEnv(t, Config{})

	body := e.upload(t, "empty.csv", "")
	assert.Contains(t, body, "Could not parse empty.csv")
	assert.Contains(t, body, "Uploaded Transactions Data")
	assert.Contains(t, body, "<th>amount</th><th>type</th><th>date</th>")
}

func TestUpload_Rejected(t *testing.T) {
	e := newTestEnv(t, Config{MaxUploadBytes: 1 << 20})

	assert.Contains(t, e.upload(t, "notes.txt", "amount\n1\n"), "Only .csv files can be uploaded.")
	assert.Contains(t, e.page(t), "No transactions yet.")
}

func TestReadUpload_TooLarge(t *testing.T) {
	rec := recorder.New(ledger.NewStore(filepath.Join(t.TempDir(), "transactions.csv"), nil), recorder.Options{})
	s, err := New(rec, Config{MaxUploadBytes: 1 << 20}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "big.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("amount,type,date\n" + strings.Repeat("1.0,debit,2026-01-01 00:00:00.000000\n", 40000)))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	l, _, err := s.readUpload(r)
	assert.Nil(t, l)
	assert.ErrorContains(t, err, "larger than 1 MB")
}

func TestReset(t *testing.T) {
	e := newTestEnv(t, Config{})

	e.upload(t, "bank.csv", "amount,type,date\n10.0,credit,2026-01-01 00:00:00.000000\n")

	resp, err := e.client.PostForm(e.srv.URL+"/reset", nil)
	require.NoError(t, err)
	resp.Body.Close()

	body := e.page(t)
	assert.NotContains(t, body, "Uploaded Transactions Data")
	assert.Contains(t, body, "No transactions yet.")
}

func TestSessions_AreIsolated(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.upload(t, "bank.csv", "amount,type,date\n10.0,credit,2026-01-01 00:00:00.000000\n")

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	other := &testEnv{srv: e.srv, client: &http.Client{Jar: jar}, path: e.path}
	assert.NotContains(t, other.page(t), "Uploaded Transactions Data")
}

func TestAPI_CreateAndList(t *testing.T) {
	e := newTestEnv(t, Config{})

	post := func(body string) *http.Response {
		resp, err := e.client.Post(e.srv.URL+"/api/v1/transactions", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := post(`{"message":"Received 1000 as salary"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Record struct {
			Amount string `json:"amount"`
			Type   string `json:"type"`
		} `json:"record"`
		Rows int `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "1000", created.Record.Amount)
	assert.Equal(t, "credit", created.Record.Type)
	assert.Equal(t, 1, created.Rows)

	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"message":"hello"}`).StatusCode)
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"message":"gift 20"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`{`).StatusCode)
	require.Equal(t, http.StatusCreated, post(`{"message":"spent 300"}`).StatusCode)

	listResp, err := e.client.Get(e.srv.URL + "/api/v1/transactions")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var list struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
		Summary struct {
			Count int    `json:"count"`
			Net   string `json:"net"`
		} `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	assert.Equal(t, []string{"amount", "type", "date"}, list.Columns)
	assert.Len(t, list.Rows, 2)
	assert.Equal(t, 2, list.Summary.Count)
	assert.Equal(t, "700", list.Summary.Net)
}

func TestAPI_CreateTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.csv")
	s, err := New(recorder.New(ledger.NewStore(path, nil), recorder.Options{}), Config{}, nil)
	require.NoError(t, err)

	body := `{"message":"spent 5 ` + strings.Repeat("x", maxRequestBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request body is larger than")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing must be persisted")
}

func TestJSONResponse_LogsEncodeError(t *testing.T) {
	var logs bytes.Buffer
	rec := recorder.New(ledger.NewStore(filepath.Join(t.TempDir(), "t.csv"), nil), recorder.Options{})
	s, err := New(rec, Config{}, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.jsonResponse(w, http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "encoding JSON response")
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, Config{})

	resp, err := e.client.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t, Config{})

	resp, err := e.client.Get(e.srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
