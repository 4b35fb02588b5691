package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	Hospital string `json:"hospital,omitempty"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a signed token for a user. The hospital id is only set
// for hospital admins. Every token carries a unique jti so logout can revoke
// it individually.
func GenerateJWT(secret []byte, userID, role, hospital string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT secret is not configured")
	}
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Role:     role,
		Hospital: hospital,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateJWT parses and verifies a token string.
func ValidateJWT(secret []byte, tokenStr string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, errors.New("JWT secret is not configured")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
