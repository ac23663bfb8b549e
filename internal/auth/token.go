package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/alecgard/ekklesia/internal/role"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the session token lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the payload of a session token.
type Claims struct {
	Role role.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the verified identity attached to a request.
type Principal struct {
	SubjectID string
	Role      role.Role
	ExpiresAt time.Time
}

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(token string) (*Principal, error)
}

// Issuer mints and verifies HS256 session tokens. Tokens are stateless: a
// role change only takes effect once a new token is issued.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time // injectable clock for testing
}

// NewIssuer creates an Issuer signing with secret. A non-positive ttl falls
// back to DefaultTokenTTL.
func NewIssuer(secret string, ttl time.Duration, issuer string) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for subjectID carrying role r.
func (i *Issuer) Issue(subjectID string, r role.Role) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := &Claims{
		Role: r,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// TokenError describes why a token was rejected. It matches ErrInvalidToken
// under errors.Is.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string {
	return ErrInvalidToken.Error() + ": " + e.Reason
}

func (e *TokenError) Unwrap() error {
	return ErrInvalidToken
}

// Verify checks the signature and expiry of tokenString and returns the
// embedded principal. Every failure is a *TokenError.
func (i *Issuer) Verify(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, &TokenError{Reason: tokenFailureReason(err)}
	}

	if claims.Subject == "" {
		return nil, &TokenError{Reason: "missing_subject"}
	}
	if !claims.Role.Valid() {
		return nil, &TokenError{Reason: "missing_role"}
	}

	p := &Principal{SubjectID: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// tokenFailureReason classifies a jwt parse error for logs and metrics.
func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_claim"
	default:
		return "invalid"
	}
}
