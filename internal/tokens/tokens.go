// Package tokens issues and verifies the portal's session credentials: HS256
// JWTs naming the identity and the refresh session they belong to.
package tokens

import (
	"errors"
	"time"

	"github.com/deptconnect/portal/pkg/errs"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "deptconnect-portal"

// Claims carried by a session credential.
type Claims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// IdentityID returns the identity id the credential was issued to.
func (c *Claims) IdentityID() string { return c.Subject }

// Issue signs a credential for identity id valid for ttl. A fresh session id is
// assigned when sessionID is empty.
func Issue(secret, id, email, sessionID string, ttl time.Duration) (string, *Claims, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := time.Now()
	claims := &Claims{
		Email:     email,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := jt.SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies raw and returns its claims. Every failure is an
// invalid-token AuthError.
func Parse(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.Auth(errs.CodeInvalidToken, "your session has expired, please sign in again", err)
		}
		return nil, errs.Auth(errs.CodeInvalidToken, "the session credential is not valid", err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, errs.Auth(errs.CodeInvalidToken, "the session credential is not valid", nil)
	}
	return claims, nil
}

// Remaining reports how long the credential stays valid.
func (c *Claims) Remaining() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := time.Until(c.ExpiresAt.Time)
	if d < 0 {
		return 0
	}
	return d
}
