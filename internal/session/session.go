// Package session encodes and decodes the session token carried in the
// auth-token cookie.
//
// Decoding never checks expiry. A well-formed expired token decodes
// successfully; callers use Claims.Expired for the expiry decision.
package session

import (
	"errors"
	"fmt"
	"time"
)

// TTL is the lifetime stamped into every new token.
const TTL = 24 * time.Hour

// ErrMalformedToken is returned when a token cannot be decoded.
var ErrMalformedToken = errors.New("malformed session token")

// Principal identifies the caller of a request.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Claims is the token payload.
type Claims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"exp"` // epoch milliseconds
}

// NewClaims builds claims for p expiring TTL after now.
func NewClaims(p Principal, now time.Time) Claims {
	return Claims{
		Subject:   p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      p.Role,
		ExpiresAt: now.Add(TTL).UnixMilli(),
	}
}

// Expired reports whether the claims are no longer valid at now.
// A token without exp is treated as expired.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt <= now.UnixMilli()
}

// Expiry returns exp as a time.
func (c Claims) Expiry() time.Time {
	return time.UnixMilli(c.ExpiresAt).UTC()
}

// Principal returns the identity carried by the claims.
func (c Claims) Principal() Principal {
	return Principal{
		ID:    c.Subject,
		Email: c.Email,
		Name:  c.Name,
		Role:  c.Role,
	}
}

// Codec produces and parses session tokens.
type Codec interface {
	// Encode returns a token for p and the claims it carries.
	Encode(p Principal) (string, Claims, error)
	// Decode parses a token. It fails only with ErrMalformedToken.
	Decode(token string) (Claims, error)
}

// Token formats accepted by NewCodec.
const (
	FormatSigned   = "signed"
	FormatUnsigned = "unsigned"
)

// NewCodec returns the codec for a configured token format.
func NewCodec(format, secret string, now func() time.Time) (Codec, error) {
	switch format {
	case FormatSigned, "":
		return NewSignedCodec(secret, now)
	case FormatUnsigned:
		return NewUnsignedCodec(now), nil
	}
	return nil, fmt.Errorf("unknown token format %q", format)
}
