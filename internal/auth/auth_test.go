package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paydesk/paydesk/internal/session"
)

var bob = session.Principal{ID: "u-2", Email: "bob@example.com", Name: "Bob", Role: "support"}

func TestTokenFromCookieHeader(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"theme=dark", ""},
		{"auth-token=abc", "abc"},
		{"theme=dark; auth-token=abc==; lang=en", "abc=="},
		{"auth-token=", ""},
		{"xauth-token=zzz; auth-token=real", "real"},
	}
	for _, tt := range tests {
		if got := TokenFromCookieHeader(tt.header); got != tt.want {
			t.Errorf("TokenFromCookieHeader(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func newGate(t *testing.T, mode Mode, now time.Time) (*Gate, session.Codec) {
	t.Helper()
	codec, err := session.NewSignedCodec("gate-test-secret-0123", func() time.Time { return now })
	if err != nil {
		t.Fatal(err)
	}
	return NewGate(codec, mode, func() time.Time { return now }), codec
}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	if token != "" {
		r.Header.Set("Cookie", "auth-token="+token)
	}
	return r
}

func TestAuthenticate(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	gate, codec := newGate(t, ModeEnforced, now)
	token, _, err := codec.Encode(bob)
	if err != nil {
		t.Fatal(err)
	}

	p, err := gate.Authenticate(requestWithToken(token))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p != bob {
		t.Errorf("principal = %+v", p)
	}

	if _, err := gate.Authenticate(requestWithToken("")); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("missing token: err = %v", err)
	}
	if _, err := gate.Authenticate(requestWithToken("garbage")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: err = %v", err)
	}
}

func TestAuthenticateExpiredTokenStillDecodes(t *testing.T) {
	issued := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	_, codec := newGate(t, ModeEnforced, issued)
	token, _, err := codec.Encode(bob)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := codec.Decode(token); err != nil {
		t.Fatalf("decode of expired token failed: %v", err)
	}

	later, _ := newGate(t, ModeEnforced, issued.Add(session.TTL))
	if _, err := later.Authenticate(requestWithToken(token)); !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestMiddlewareEnforced(t *testing.T) {
	now := time.Now()
	gate, codec := newGate(t, ModeEnforced, now)

	var seen session.Principal
	h := gate.Middleware(func(w http.ResponseWriter, status int, msg string) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": msg})
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Not authenticated") {
		t.Errorf("body = %s", rec.Body.String())
	}

	token, _, _ := codec.Encode(bob)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen != bob {
		t.Errorf("principal in context = %+v", seen)
	}
}

func TestMiddlewareDemoFallsBack(t *testing.T) {
	gate, _ := newGate(t, ModeDemo, time.Now())
	var seen session.Principal
	h := gate.Middleware(func(w http.ResponseWriter, status int, msg string) {
		t.Errorf("demo mode should not reject, got %d %s", status, msg)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), requestWithToken(""))
	if seen != DemoPrincipal {
		t.Errorf("principal = %+v, want demo principal", seen)
	}
}

func TestMessage(t *testing.T) {
	if got := Message(ErrUnauthenticated, "No authentication token"); got != "No authentication token" {
		t.Errorf("got %q", got)
	}
	if got := Message(ErrExpired, ""); got != "Token expired" {
		t.Errorf("got %q", got)
	}
	if got := Message(ErrInvalidToken, ""); got != "Invalid token" {
		t.Errorf("got %q", got)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeEnforced {
		t.Errorf("empty mode: %v %v", m, err)
	}
	if _, err := ParseMode("open"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok+/=", false)
	got := rec.Header().Get("Set-Cookie")
	for _, want := range []string{"auth-token=tok+/=", "Path=/", "Max-Age=86400", "HttpOnly", "SameSite=Lax"} {
		if !strings.Contains(got, want) {
			t.Errorf("Set-Cookie %q missing %q", got, want)
		}
	}

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, true)
	got = rec.Header().Get("Set-Cookie")
	if !strings.Contains(got, "Max-Age=0") || !strings.Contains(got, "Secure") {
		t.Errorf("clear cookie = %q", got)
	}
}

func TestSignupValidate(t *testing.T) {
	tests := []struct {
		name   string
		req    SignupRequest
		fields []string
	}{
		{"valid", SignupRequest{Name: "Ann", Email: "ann@x.io", Password: "Secret1"}, nil},
		{"no uppercase", SignupRequest{Name: "Ann", Email: "ann@x.io", Password: "secret1"}, []string{"password"}},
		{"too short", SignupRequest{Name: "Ann", Email: "ann@x.io", Password: "S1a"}, []string{"password"}},
		{"bad email and name", SignupRequest{Name: "A", Email: "nope", Password: "Secret1"}, []string{"name", "email"}},
		{"bad role", SignupRequest{Name: "Ann", Email: "ann@x.io", Password: "Secret1", Role: "root"}, []string{"role"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.req.Validate()
			if len(errs) != len(tt.fields) {
				t.Fatalf("errors = %v, want fields %v", errs, tt.fields)
			}
			for _, f := range tt.fields {
				if errs[f] == "" {
					t.Errorf("missing error for %s", f)
				}
			}
		})
	}
}

func TestSignupDefaultsRole(t *testing.T) {
	req := SignupRequest{Name: "Ann", Email: "ann@x.io", Password: "Secret1"}
	req.Validate()
	if req.Role != DefaultRole {
		t.Errorf("role = %q", req.Role)
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("Secret1")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "Secret1") {
		t.Error("password should match")
	}
	if CheckPassword(hash, "secret1") {
		t.Error("wrong password matched")
	}
}
