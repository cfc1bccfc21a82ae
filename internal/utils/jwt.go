// Package utils holds the password hasher and the access token issuer.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers every verification failure: bad signature,
	// malformed payload, wrong algorithm or expiry. Callers must not be able
	// to tell which check failed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned when the issuer is built without a signing key.
	ErrMissingSecret = errors.New("jwt signing secret is required")
)

// AccessToken represents a signed JWT access token along with its id and expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	ID    string    // jti claim
	Exp   time.Time // the UTC expiration time
}

// Claims is what a verified token resolves to.
type Claims struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HMAC JWTs with a process-wide secret.  It
// holds no mutable state after construction and is safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds an issuer for the given HMAC algorithm (HS256, HS384
// or HS512).  An empty secret is refused rather than producing weakly signed
// tokens.
func NewTokenIssuer(secret, algorithm string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, errors.New("unsupported signing algorithm: " + algorithm)
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenIssuer{secret: []byte(secret), method: method, ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the issuer that reads the current time from now.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *t
	cp.now = now
	return &cp
}

// TTL reports the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue builds and signs a token for userID with sub, iat, exp and jti claims.
func (t *TokenIssuer) Issue(userID string) (AccessToken, error) {
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	id := uuid.NewString()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ID: id, Exp: exp}, nil
}

// Verify checks signature, algorithm and expiry of raw and returns its claims.
// Any failure is reported as ErrInvalidToken.
func (t *TokenIssuer) Verify(raw string) (Claims, error) {
	var rc jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &rc,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !tok.Valid || rc.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	out := Claims{UserID: rc.Subject, TokenID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	return out, nil
}
