package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/spendlog/pkg/ledger"
)

const (
	sessionCookie = "spendlog_session"
	sessionTTL    = 24 * time.Hour
)

// notice is a one-shot message shown on the next page render.
type notice struct {
	Kind    string // "success" or "error"
	Message string
}

// session is the per-browser state: the uploaded file and what is still
// pending from it.
type session struct {
	uploadName string
	// upload is the log as uploaded, kept for display.
	upload *ledger.Log
	// base is the log new records are appended to. It is the upload until
	// the first successful submission persists it; after that the store is
	// the base again.
	base     *ledger.Log
	notice   *notice
	lastSeen time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// with runs fn on the caller's session, creating it and setting the cookie if
// needed. fn runs under the store lock.
func (st *sessionStore) with(w http.ResponseWriter, r *http.Request, fn func(*session)) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	st.expire(now)

	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}

	sess, ok := st.sessions[id]
	if !ok {
		id = uuid.NewString()
		sess = &session{}
		st.sessions[id] = sess
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	sess.lastSeen = now

	fn(sess)
}

func (st *sessionStore) expire(now time.Time) {
	for id, sess := range st.sessions {
		if now.Sub(sess.lastSeen) > sessionTTL {
			delete(st.sessions, id)
		}
	}
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
