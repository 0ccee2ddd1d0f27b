package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenClaims is the signed envelope handed to clients. The session id
// travels as the registered jti claim; everything else lives server-side.
type SessionTokenClaims struct {
	jwt.RegisteredClaims
}

// SessionID returns the server-side session identifier carried by the token.
func (c *SessionTokenClaims) SessionID() string {
	return c.ID
}
