// Package token implements the stateless bearer credential primitive: an
// identity id signed with an expiry. Validity is cryptographic plus an expiry
// check; nothing is persisted server-side.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuerName = "harvestlink"

// Scope separates full access tokens from the short-lived challenge token
// handed out when a login still owes a second factor.
type Scope string

const (
	ScopeAccess          Scope = "access"
	ScopeSecondFactor    Scope = "second_factor"
	defaultChallengeTTL        = 5 * time.Minute
)

var (
	// ErrInvalid indicates the token failed signature or structure checks.
	ErrInvalid = errors.New("token: invalid")
	// ErrExpired indicates a structurally valid token past its expiry.
	// Distinct from ErrInvalid so clients can prompt re-login instead of
	// discarding the credential as garbage.
	ErrExpired = errors.New("token: expired")
)

// Claims carries the signed subject and scope.
type Claims struct {
	Scope Scope `json:"scope"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer constructs an Issuer. The secret must be non-empty.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token: secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token: ttl must be greater than zero")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a full access token for the identity.
func (i *Issuer) Issue(identityID uuid.UUID) (string, time.Time, error) {
	return i.sign(identityID, ScopeAccess, i.ttl)
}

// IssueChallenge signs a short-lived token accepted only by the 2FA
// completion endpoint.
func (i *Issuer) IssueChallenge(identityID uuid.UUID) (string, time.Time, error) {
	return i.sign(identityID, ScopeSecondFactor, defaultChallengeTTL)
}

func (i *Issuer) sign(identityID uuid.UUID, scope Scope, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   identityID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, structure, and expiry, returning the subject
// identity id and scope.
func (i *Issuer) Verify(raw string) (uuid.UUID, Scope, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalid
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", ErrExpired
		}
		return uuid.Nil, "", ErrInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return uuid.Nil, "", ErrInvalid
	}
	if claims.Issuer != issuerName {
		return uuid.Nil, "", ErrInvalid
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", ErrInvalid
	}
	scope := claims.Scope
	if scope == "" {
		scope = ScopeAccess
	}
	return subject, scope, nil
}
