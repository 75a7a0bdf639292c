package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid is returned for every verification failure. Callers never learn
// which check rejected the token.
var ErrInvalid = errors.New("invalid token")

const headerType = "JWT"

// Claims is the payload carried by a session token
type Claims struct {
	Email    string `json:"email"`
	TenantID string `json:"tenantId,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token
func (c *Claims) UserID() string {
	return c.RegisteredClaims.Subject
}

// Expiry returns the expiry time, or the zero time when unset
func (c *Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Codec signs and verifies HS256 session tokens
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a codec for the given session secret
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("session signing secret is required")
	}
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the codec that reads time from now
func (c *Codec) WithClock(now func() time.Time) *Codec {
	return &Codec{secret: c.secret, now: now}
}

// Sign stamps iat/exp onto a copy of the identity fields and returns the
// compact header.payload.signature form.
func (c *Codec) Sign(subject, email, tenantID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}

	issuedAt := c.now().Truncate(time.Second)
	claims := &Claims{
		Email:    email,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, header and expiry and returns the claims.
func (c *Codec) Verify(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalid
	}

	if typ, _ := parsed.Header["typ"].(string); typ != headerType {
		return nil, ErrInvalid
	}

	// exp <= now is expired at second granularity
	if !claims.Expiry().After(c.now()) {
		return nil, ErrInvalid
	}
	if claims.UserID() == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}
