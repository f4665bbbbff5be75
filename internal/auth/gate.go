// Package auth implements the request authorization gate, the session
// cookie, and the password rules used at sign-up and sign-in.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paydesk/paydesk/internal/session"
)

// CookieName is the cookie carrying the session token.
const CookieName = "auth-token"

// Gate outcomes.
var (
	ErrUnauthenticated = errors.New("no session token")
	ErrInvalidToken    = errors.New("invalid session token")
	ErrExpired         = errors.New("session token expired")
)

// Mode selects how the gate treats requests without a valid session.
type Mode string

const (
	// ModeEnforced rejects requests without a valid, unexpired session.
	ModeEnforced Mode = "enforced"
	// ModeDemo lets every request through, falling back to DemoPrincipal.
	// It reproduces a client-only route guard and offers no protection.
	ModeDemo Mode = "demo"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeEnforced, ModeDemo:
		return Mode(s), nil
	case "":
		return ModeEnforced, nil
	}
	return "", fmt.Errorf("unknown auth mode %q", s)
}

// DemoPrincipal is the identity assumed in ModeDemo.
var DemoPrincipal = session.Principal{
	ID:    "1",
	Email: "admin@demo.com",
	Name:  "Demo Admin",
	Role:  "admin",
}

// Gate decides whether a request carries a usable session.
type Gate struct {
	codec session.Codec
	mode  Mode
	now   func() time.Time
}

// NewGate creates a gate decoding tokens with codec.
func NewGate(codec session.Codec, mode Mode, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{codec: codec, mode: mode, now: now}
}

// Mode returns the configured mode.
func (g *Gate) Mode() Mode {
	return g.mode
}

// TokenFromCookieHeader returns the text following "auth-token=" up to
// the next ';', or "" when the cookie is absent or empty.
func TokenFromCookieHeader(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, CookieName+"="); ok {
			return v
		}
	}
	return ""
}

// Authenticate checks the session cookie on r. It never consults the
// mode; Middleware applies the demo fallback.
func (g *Gate) Authenticate(r *http.Request) (session.Principal, error) {
	token := TokenFromCookieHeader(r.Header.Get("Cookie"))
	if token == "" {
		return session.Principal{}, ErrUnauthenticated
	}
	claims, err := g.codec.Decode(token)
	if err != nil {
		return session.Principal{}, ErrInvalidToken
	}
	if claims.Expired(g.now()) {
		return session.Principal{}, ErrExpired
	}
	return claims.Principal(), nil
}

// Message returns the response text for a gate failure. missing is the
// text for ErrUnauthenticated, which differs between entry points.
func Message(err error, missing string) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return missing
	case errors.Is(err, ErrExpired):
		return "Token expired"
	default:
		return "Invalid token"
	}
}

// Middleware rejects unauthenticated requests with 401 and stores the
// principal in the request context otherwise.
func (g *Gate) Middleware(onError func(w http.ResponseWriter, status int, msg string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := g.Authenticate(r)
			if err != nil {
				if g.mode != ModeDemo {
					onError(w, http.StatusUnauthorized, Message(err, "Not authenticated"))
					return
				}
				p = DemoPrincipal
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p session.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by Middleware.
func PrincipalFrom(ctx context.Context) (session.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(session.Principal)
	return p, ok
}
