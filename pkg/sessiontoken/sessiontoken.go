// Package sessiontoken mints and validates the signed session tokens the
// login service hands out once an authentication decision completes.
package sessiontoken

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the token failed signature or claim validation.
var ErrInvalidToken = errors.New("sessiontoken: invalid token")

// Claims are the claims embedded in a session JWT.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Signer mints and parses HS256 session tokens.
type Signer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Sign mints a session token for the given account.
func (s *Signer) Sign(accountID, role string, sessionID string) (string, time.Time, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", time.Time{}, errors.New("sessiontoken: account id is required")
	}
	if len(s.Secret) == 0 {
		return "", time.Time{}, errors.New("sessiontoken: signing secret is not configured")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.TTL)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   accountID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies the token signature, method, issuer and expiry.
func (s *Signer) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.Secret, nil
	}, jwt.WithIssuer(s.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
