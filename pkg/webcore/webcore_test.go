package webcore

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// RequestLog
// ---------------------------------------------------------------------------

func TestRequestLogRingBuffer(t *testing.T) {
	rl := NewRequestLog(3)
	for _, p := range []string{"/a", "/b", "/c", "/d", "/e"} {
		rl.Add(RequestLogEntry{Path: p})
	}

	entries := rl.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Path != "/c" || entries[2].Path != "/e" {
		t.Errorf("unexpected entries: %+v", entries)
	}

	entries[0].Path = "/mutated"
	if rl.Entries()[0].Path != "/c" {
		t.Error("Entries did not return a copy")
	}

	rl.Clear()
	if len(rl.Entries()) != 0 {
		t.Errorf("expected empty log after Clear")
	}
}

func TestRequestLogMiddlewareRecordsStatus(t *testing.T) {
	mw := NewMiddleware(&Config{}, quietLogger())
	h := mw.RequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusTeapot, "short and stout")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/merchants", nil))

	entries := mw.ReqLog.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Method != http.MethodGet || entries[0].Path != "/api/merchants" || entries[0].StatusCode != http.StatusTeapot {
		t.Errorf("entry = %+v", entries[0])
	}
}

// ---------------------------------------------------------------------------
// Idempotency
// ---------------------------------------------------------------------------

func TestIdempotencyTrackerExpiry(t *testing.T) {
	it := NewIdempotencyTracker(time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	it.now = func() time.Time { return now }

	it.Store("k", http.StatusCreated, []byte(`{"id":"1"}`))
	if status, body, ok := it.Check("k"); !ok || status != http.StatusCreated || string(body) != `{"id":"1"}` {
		t.Errorf("Check = %d %s %v", status, body, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, _, ok := it.Check("k"); ok {
		t.Error("expired key still replayed")
	}
	it.Store("other", http.StatusOK, nil)
	if it.Len() != 1 {
		t.Errorf("Len = %d, want expired entry dropped", it.Len())
	}
}

func TestIdempotencyMiddleware(t *testing.T) {
	mw := NewMiddleware(&Config{}, quietLogger())
	calls := 0
	status := http.StatusCreated
	h := mw.Idempotency(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		JSON(w, status, map[string]int{"call": calls})
	}))

	post := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := post("/api/transactions", "k1")
	second := post("/api/transactions", "k1")
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %q %q", second.Header().Get("Idempotent-Replayed"), second.Body.String())
	}
	if second.Code != http.StatusCreated {
		t.Errorf("replay status = %d", second.Code)
	}

	post("/api/mobile-apps/transactions", "k1")
	if calls != 2 {
		t.Errorf("key was not scoped to the path")
	}

	post("/api/transactions", "")
	post("/api/transactions", "")
	if calls != 4 {
		t.Errorf("requests without a key must not be cached")
	}

	status = http.StatusInternalServerError
	post("/api/transactions", "k2")
	post("/api/transactions", "k2")
	if calls != 6 {
		t.Errorf("server errors must not be cached")
	}
}

func TestIdempotencyConcurrentDuplicate(t *testing.T) {
	mw := NewMiddleware(&Config{}, quietLogger())
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	h := mw.Idempotency(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		JSON(w, http.StatusCreated, map[string]string{"id": "txn_1"})
	}))
	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader("{}"))
		req.Header.Set("Idempotency-Key", "k1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- post() }()
	<-entered

	if dup := post(); dup.Code != http.StatusConflict {
		t.Errorf("concurrent duplicate status = %d, want 409", dup.Code)
	}
	close(release)
	if first := <-done; first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}

	replay := post()
	if replay.Code != http.StatusCreated || replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Errorf("replay = %d %q", replay.Code, replay.Header().Get("Idempotent-Replayed"))
	}
	if calls.Load() != 1 {
		t.Errorf("handler ran %d times, want 1", calls.Load())
	}
}

func TestIdempotencyReleasedAfterPanic(t *testing.T) {
	mw := NewMiddleware(&Config{}, quietLogger())
	fail := true
	h := mw.Idempotency(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)
		r.Header.Set("Idempotency-Key", "k1")
		return r
	}

	func() {
		defer func() { recover() }()
		h.ServeHTTP(httptest.NewRecorder(), req())
	}()
	fail = false
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req())
	if rec.Code != http.StatusCreated {
		t.Errorf("retry after panic = %d, want 201", rec.Code)
	}
}

func TestIdempotencyByOwner(t *testing.T) {
	mw := NewMiddleware(&Config{}, quietLogger())
	calls := 0
	h := mw.IdempotencyBy(func(r *http.Request) string { return r.Header.Get("X-User") })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			JSON(w, http.StatusCreated, map[string]int{"call": calls})
		}))

	for _, user := range []string{"alice", "bob", "alice"} {
		req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader("{}"))
		req.Header.Set("Idempotency-Key", "shared")
		req.Header.Set("X-User", user)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Errorf("handler called %d times, want one per owner", calls)
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func TestCORS(t *testing.T) {
	mw := NewMiddleware(&Config{AllowOrigins: []string{"http://localhost:3000"}}, quietLogger())
	h := mw.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", http.MethodGet, "http://localhost:3000", 200, "http://localhost:3000"},
		{"other origin", http.MethodGet, "http://evil.example", 200, ""},
		{"preflight", http.MethodOptions, "http://localhost:3000", 204, "http://localhost:3000"},
		{"no origin", http.MethodGet, "", 200, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("allow origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.wantAllow != "" && rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("credentials not allowed")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

func TestUpdateConfig(t *testing.T) {
	s := New(&Config{Name: "paydesk", Port: 3001})

	for _, bad := range []map[string]any{
		{"port": 8080},
		{"name": "other"},
		{"verbose": "yes"},
		{"bogus": true},
		{"verbose": true, "port": 1},
	} {
		if err := s.UpdateConfig(bad); err == nil {
			t.Errorf("UpdateConfig(%v) succeeded", bad)
		}
	}
	if s.GetConfig()["verbose"] != false {
		t.Error("a rejected update was partially applied")
	}

	if err := s.UpdateConfig(map[string]any{"verbose": true}); err != nil {
		t.Fatal(err)
	}
	cfg := s.GetConfig()
	if cfg["verbose"] != true || cfg["port"] != 3001 || cfg["name"] != "paydesk" {
		t.Errorf("config = %v", cfg)
	}
	if !s.Middleware().verbose.Load() {
		t.Error("middleware verbosity not updated")
	}
}

func TestResponseHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationError(rec, "Validation failed", map[string]string{"email": "Please enter a valid email address"})
	if rec.Code != http.StatusBadRequest || rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("status/content-type = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	var body struct {
		Error  string            `json:"error"`
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "Validation failed" || body.Errors["email"] == "" {
		t.Errorf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	Error(rec, http.StatusNotFound, "Merchant not found")
	if strings.TrimSpace(rec.Body.String()) != `{"error":"Merchant not found"}` {
		t.Errorf("error body = %s", rec.Body.String())
	}
}

func TestServerRecoversPanics(t *testing.T) {
	s := New(&Config{Name: "paydesk"})
	s.Router.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
