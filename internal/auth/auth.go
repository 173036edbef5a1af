// Package auth verifies the bearer credentials presented on HTTP
// ingress calls. Policy is deliberately thin: a token that does not
// verify rejects the request, nothing more.
package auth

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMissing = errors.New("bearer token missing")
	ErrTokenInvalid = errors.New("bearer token invalid")
	ErrTokenExpired = errors.New("bearer token expired")
)

// Claims carried in a verified token. UserID is the only required
// field; role/branch/name feed the presence record's display metadata.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
	Branch string `json:"branch,omitempty"`
	Name   string `json:"name,omitempty"`
	jwtv5.RegisteredClaims
}

// Verifier parses and checks HS256 bearer tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse verifies a raw token string and returns its claims. A token
// without a user identity is rejected.
func (v *Verifier) Parse(raw string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(raw, &Claims{}, func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// FromHeader extracts the raw token from an Authorization header value.
func FromHeader(header string) (string, error) {
	if header == "" {
		return "", ErrTokenMissing
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrTokenMissing
	}
	return parts[1], nil
}

// Sign issues a token for the given claims; used by tests and tooling.
func (v *Verifier) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwtv5.RegisteredClaims{
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		Issuer:    "presencehub",
	}
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
