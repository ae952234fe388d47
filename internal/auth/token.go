package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSecret means bearer identity is disabled
var ErrNoSecret = errors.New("token validation is not configured")

// TokenValidator checks HMAC-signed bearer tokens issued by the identity
// provider and extracts the principal id from the user_id claim
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator creates a validator for tokens signed with secret
func NewTokenValidator(secret []byte) *TokenValidator {
	return &TokenValidator{secret: secret}
}

// Enabled reports whether a secret is configured
func (v *TokenValidator) Enabled() bool {
	return len(v.secret) > 0
}

// ValidateToken returns the principal id carried by a valid token
func (v *TokenValidator) ValidateToken(tokenString string) (string, error) {
	if !v.Enabled() {
		return "", ErrNoSecret
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("invalid user_id in token")
	}
	return userID, nil
}

// IssueToken signs a token for principalID. The server never issues tokens
// to clients; this is used by votectl and tests.
func (v *TokenValidator) IssueToken(principalID string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": principalID,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
