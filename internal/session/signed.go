package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the shortest HMAC secret SignedCodec accepts.
const MinSecretLen = 16

// SignedCodec issues HS256 JWTs whose payload is exactly Claims.
// Tampered or foreign-key tokens fail to decode.
type SignedCodec struct {
	secret []byte
	now    func() time.Time
}

// NewSignedCodec creates a codec signing with secret.
func NewSignedCodec(secret string, now func() time.Time) (*SignedCodec, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLen)
	}
	if now == nil {
		now = time.Now
	}
	return &SignedCodec{secret: []byte(secret), now: now}, nil
}

// Encode signs fresh claims for p.
func (c *SignedCodec) Encode(p Principal) (string, Claims, error) {
	claims := NewClaims(p, c.now())
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// Decode verifies the signature and returns the claims. Registered
// claim validation is disabled so that expiry stays a caller decision.
func (c *SignedCodec) Decode(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}
	return claims, nil
}

// The jwt.Claims implementation. exp is carried in milliseconds, so the
// standard NumericDate view converts it.

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(c.Expiry()), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error)              { return "", nil }
func (c Claims) GetSubject() (string, error)             { return c.Subject, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }
