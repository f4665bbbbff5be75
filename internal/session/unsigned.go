package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// UnsignedCodec is the legacy token format: base64(JSON(claims)) with no
// signature. Anyone can forge a token in this format; it exists only
// for compatibility with clients issued such tokens and must be opted
// into explicitly.
type UnsignedCodec struct {
	now func() time.Time
}

// NewUnsignedCodec creates the insecure legacy codec.
func NewUnsignedCodec(now func() time.Time) *UnsignedCodec {
	if now == nil {
		now = time.Now
	}
	return &UnsignedCodec{now: now}
}

// Encode returns base64(JSON(claims)).
func (c *UnsignedCodec) Encode(p Principal) (string, Claims, error) {
	claims := NewClaims(p, c.now())
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", Claims{}, fmt.Errorf("marshal session claims: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), claims, nil
}

// Decode base64-decodes and parses the claims.
func (c *UnsignedCodec) Decode(token string) (Claims, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}
	return claims, nil
}
