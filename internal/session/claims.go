package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is what the client can read from its bearer token without
// the server's key. Nothing here is trusted; it is for display only.
type TokenClaims struct {
	UserID    uint
	Role      Role
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry in the past
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseClaims decodes a JWT payload without verifying its signature.
func ParseClaims(token string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	out := &TokenClaims{}
	if id, ok := claims["user_id"].(float64); ok {
		out.UserID = uint(id)
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = Role(role)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("failed to decode token expiry: %w", err)
	}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}

	return out, nil
}
