package httpapi

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionHeader carries the cart session id in both directions.
	SessionHeader = "X-Cart-Session"
	// SessionCookie is the cookie fallback for browsers.
	SessionCookie = "cart_session"
)

// Session ids double as storage keys, so they are limited to the characters
// every storage adapter accepts.
var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// SessionKey returns the session id sent with r, preferring the header over
// the cookie. It reports false when none or only a malformed one was sent.
func SessionKey(r *http.Request) (string, bool) {
	if id := r.Header.Get(SessionHeader); sessionPattern.MatchString(id) {
		return id, true
	}
	if c, err := r.Cookie(SessionCookie); err == nil && sessionPattern.MatchString(c.Value) {
		return c.Value, true
	}
	return "", false
}

// session resolves the session of r, issuing a new id when the client has
// none, and echoes it on the response header and cookie.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	id, ok := SessionKey(r)
	if !ok {
		id = uuid.NewString()
	}
	w.Header().Set(SessionHeader, id)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// sessionLocks serialises mutations of the same cart within the process.
// Entries are dropped once nobody holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock acquires the lock of key and returns its release function.
func (l *sessionLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[key]
	if !ok {
		sl = &sessionLock{}
		l.locks[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
