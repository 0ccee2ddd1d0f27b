package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

var (
	ErrTokenConfig     = errors.New("session token config invalid")
	ErrMissingSession  = errors.New("session token missing jti")
	errEmptySessionArg = errors.New("session id is required")
)

func checkConfig(cfg config.SessionConfig, minting bool) error {
	switch {
	case cfg.Secret == "":
		return fmt.Errorf("%w: secret is required", ErrTokenConfig)
	case cfg.Issuer == "":
		return fmt.Errorf("%w: issuer is required", ErrTokenConfig)
	case minting && cfg.TTL() <= 0:
		return fmt.Errorf("%w: ttl must be positive", ErrTokenConfig)
	}
	return nil
}

// MintSessionToken signs a token whose jti is sessionID and which expires
// one session TTL after now.
func MintSessionToken(cfg config.SessionConfig, now time.Time, sessionID string) (string, error) {
	if err := checkConfig(cfg, true); err != nil {
		return "", err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", errEmptySessionArg
	}

	claims := SessionTokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL())),
	}}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken verifies signature, issuer and expiry. jwt sentinel
// errors such as jwt.ErrTokenExpired stay reachable through errors.Is.
func ParseSessionToken(cfg config.SessionConfig, raw string) (*SessionTokenClaims, error) {
	if err := checkConfig(cfg, false); err != nil {
		return nil, err
	}

	claims := new(SessionTokenClaims)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return nil, ErrMissingSession
	}
	return claims, nil
}
