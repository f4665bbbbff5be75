package webcore

import (
	"bytes"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogEntry captures details of an incoming request for admin inspection.
type RequestLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration_ms"`
	RequestID  string        `json:"request_id,omitempty"`
	RemoteAddr string        `json:"remote_addr,omitempty"`
}

// RequestLog is a thread-safe ring buffer of recent requests.
type RequestLog struct {
	mu      sync.RWMutex
	entries []RequestLogEntry
	maxSize int
}

// NewRequestLog creates a request log with the given max size.
func NewRequestLog(maxSize int) *RequestLog {
	return &RequestLog{
		entries: make([]RequestLogEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, evicting the oldest if at capacity.
func (rl *RequestLog) Add(entry RequestLogEntry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.entries) >= rl.maxSize {
		rl.entries = rl.entries[1:]
	}
	rl.entries = append(rl.entries, entry)
}

// Entries returns a copy of all log entries.
func (rl *RequestLog) Entries() []RequestLogEntry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]RequestLogEntry, len(rl.entries))
	copy(out, rl.entries)
	return out
}

// Clear removes all entries.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.entries = rl.entries[:0]
}

// IdempotencyTracker caches responses by idempotency key for a bounded time.
type IdempotencyTracker struct {
	mu      sync.RWMutex
	entries map[string]idempotencyEntry
	ttl     time.Duration
	now     func() time.Time
}

type idempotencyEntry struct {
	StatusCode int
	Body       []byte
	CreatedAt  time.Time
	pending    bool
}

// claimResult is the outcome of claiming an idempotency key.
type claimResult int

const (
	claimed claimResult = iota
	claimReplay
	claimInFlight
)

// NewIdempotencyTracker creates a tracker whose entries expire after ttl.
func NewIdempotencyTracker(ttl time.Duration) *IdempotencyTracker {
	return &IdempotencyTracker{
		entries: make(map[string]idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Check returns cached response data for the given key, or false if not
// seen or expired.
func (it *IdempotencyTracker) Check(key string) (int, []byte, bool) {
	it.mu.RLock()
	defer it.mu.RUnlock()
	e, ok := it.entries[key]
	if !ok || e.pending || it.now().Sub(e.CreatedAt) > it.ttl {
		return 0, nil, false
	}
	return e.StatusCode, e.Body, true
}

// claim reserves key for the calling request. A completed entry is
// returned for replay; a reservation held by another request reports
// claimInFlight. Check and reservation happen under one lock.
func (it *IdempotencyTracker) claim(key string) (idempotencyEntry, claimResult) {
	it.mu.Lock()
	defer it.mu.Unlock()
	now := it.now()
	if e, ok := it.entries[key]; ok && now.Sub(e.CreatedAt) <= it.ttl {
		if e.pending {
			return e, claimInFlight
		}
		return e, claimReplay
	}
	it.entries[key] = idempotencyEntry{CreatedAt: now, pending: true}
	return idempotencyEntry{}, claimed
}

// release drops an unfinished reservation so the key can be retried.
func (it *IdempotencyTracker) release(key string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if e, ok := it.entries[key]; ok && e.pending {
		delete(it.entries, key)
	}
}

// Store caches a response for the given idempotency key and drops
// expired entries.
func (it *IdempotencyTracker) Store(key string, statusCode int, body []byte) {
	it.mu.Lock()
	defer it.mu.Unlock()
	now := it.now()
	for k, e := range it.entries {
		if now.Sub(e.CreatedAt) > it.ttl {
			delete(it.entries, k)
		}
	}
	it.entries[key] = idempotencyEntry{
		StatusCode: statusCode,
		Body:       bytes.Clone(body),
		CreatedAt:  now,
	}
}

// Len returns the number of cached responses.
func (it *IdempotencyTracker) Len() int {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return len(it.entries)
}

// Reset clears all tracked keys.
func (it *IdempotencyTracker) Reset() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.entries = make(map[string]idempotencyEntry)
}

// Middleware provides the common middleware functions of the server.
type Middleware struct {
	allowOrigins []string
	verbose      atomic.Bool
	logger       *slog.Logger
	ReqLog       *RequestLog
	Idempotent   *IdempotencyTracker
}

// NewMiddleware creates a new Middleware instance.
func NewMiddleware(cfg *Config, logger *slog.Logger) *Middleware {
	m := &Middleware{
		allowOrigins: cfg.AllowOrigins,
		logger:       logger,
		ReqLog:       NewRequestLog(1000),
		Idempotent:   NewIdempotencyTracker(24 * time.Hour),
	}
	m.verbose.Store(cfg.Verbose)
	return m
}

// SetVerbose toggles per-request debug logging.
func (m *Middleware) SetVerbose(v bool) {
	m.verbose.Store(v)
}

// CORS reflects allowed origins with credentials so the browser sends
// the session cookie on cross-origin calls.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (len(m.allowOrigins) == 0 || slices.Contains(m.allowOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Idempotency-Key")
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestLog middleware captures request details into the ring buffer.
func (m *Middleware) RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		m.ReqLog.Add(RequestLogEntry{
			Timestamp:  start,
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: rec.statusCode,
			Duration:   elapsed,
			RequestID:  chimw.GetReqID(r.Context()),
			RemoteAddr: r.RemoteAddr,
		})

		if m.verbose.Load() {
			m.logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.statusCode,
				"duration", elapsed,
			)
		}
	})
}

// responseRecorder captures response status and body for idempotency caching.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency caches POST responses by Idempotency-Key header. Keys are
// scoped to the request path.
func (m *Middleware) Idempotency(next http.Handler) http.Handler {
	return m.IdempotencyBy(nil)(next)
}

// IdempotencyBy is Idempotency with keys further scoped by owner, usually
// the authenticated user. Server errors are not cached so a retry can
// succeed, and a key whose first request is still running answers 409.
func (m *Middleware) IdempotencyBy(owner func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			scoped := r.URL.Path + "|" + key
			if owner != nil {
				scoped = owner(r) + "|" + scoped
			}

			cached, res := m.Idempotent.claim(scoped)
			switch res {
			case claimReplay:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(cached.StatusCode)
				w.Write(cached.Body)
				return
			case claimInFlight:
				Error(w, http.StatusConflict, "A request with this Idempotency-Key is already in progress")
				return
			}

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			stored := false
			defer func() {
				if !stored {
					m.Idempotent.release(scoped)
				}
			}()
			next.ServeHTTP(rec, r)
			if rec.statusCode < http.StatusInternalServerError {
				m.Idempotent.Store(scoped, rec.statusCode, rec.body.Bytes())
				stored = true
			}
		})
	}
}
