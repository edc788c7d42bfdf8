package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"
)

// IdempotencyStore remembers the responses to POST requests carrying an
// Idempotency-Key header, so a retried booking is not created twice.
type IdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	stopChan chan struct{}
}

type idempotencyEntry struct {
	status    int
	headers   http.Header
	body      []byte
	expiresAt time.Time
	done      chan struct{}
}

func (e *idempotencyEntry) completed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	TTL     time.Duration // How long to keep responses (default 24h)
	Cleanup time.Duration // Cleanup interval (default 1h)
}

// NewIdempotencyStore creates a new idempotency store
func NewIdempotencyStore(cfg IdempotencyConfig) *IdempotencyStore {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Cleanup == 0 {
		cfg.Cleanup = time.Hour
	}

	store := &IdempotencyStore{
		entries:  make(map[string]*idempotencyEntry),
		ttl:      cfg.TTL,
		stopChan: make(chan struct{}),
	}
	go store.cleanupLoop(cfg.Cleanup)
	return store
}

// Stop stops the cleanup goroutine
func (s *IdempotencyStore) Stop() {
	close(s.stopChan)
}

func (s *IdempotencyStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired(time.Now())
		case <-s.stopChan:
			return
		}
	}
}

func (s *IdempotencyStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if e.completed() && e.expiresAt.Before(now) {
			delete(s.entries, key)
		}
	}
}

// claim returns the entry for key and whether the caller owns it. A caller
// that does not own it must wait on done and replay.
func (s *IdempotencyStore) claim(key string) (*idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && (!e.completed() || e.expiresAt.After(time.Now())) {
		return e, false
	}
	e := &idempotencyEntry{done: make(chan struct{})}
	s.entries[key] = e
	return e, true
}

func (s *IdempotencyStore) finish(key string, e *idempotencyEntry, rec *recordingWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Server failures are not remembered so the client can retry.
	if rec.status >= http.StatusInternalServerError {
		delete(s.entries, key)
	} else {
		e.status = rec.status
		e.headers = rec.Header().Clone()
		e.body = rec.body.Bytes()
		e.expiresAt = time.Now().Add(s.ttl)
	}
	close(e.done)
}

func fingerprint(userID, idempotencyKey, path string, body []byte) string {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(userID), []byte(idempotencyKey), []byte(path), body} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func replay(w http.ResponseWriter, e *idempotencyEntry) {
	for k, v := range e.headers {
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(e.status)
	_, _ = w.Write(e.body)
}

// Idempotency replays the stored response for a repeated POST with the same
// Idempotency-Key, caller and body.
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempotencyKey := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			caller := GetUserID(r.Context())
			if caller == "" {
				caller = clientIP(r)
			}
			key := fingerprint(caller, idempotencyKey, r.URL.Path, body)

			for {
				entry, owner := store.claim(key)
				if owner {
					rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
					defer store.finish(key, entry, rec)
					next.ServeHTTP(rec, r)
					return
				}

				select {
				case <-entry.done:
				case <-r.Context().Done():
					return
				}
				store.mu.Lock()
				current := store.entries[key]
				store.mu.Unlock()
				if current == entry {
					replay(w, entry)
					return
				}
				// The first attempt failed and was forgotten; try again.
			}
		})
	}
}
