package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrNotJWT = errors.New("token is not a JWT")

// Claims are the fields the API signs into its access tokens.
type Claims struct {
	UserUUID string `json:"user_uuid,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims decodes the payload of token without verifying its
// signature. The signing key stays on the server; the client only reads
// who the token belongs to and when it expires.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}
	return claims, nil
}

// Expired reports whether the claims carry an expiry before now.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time)
}
