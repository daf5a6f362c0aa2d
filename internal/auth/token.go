package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type sessionClaims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// CreateToken issues an HS256 session token for a wallet address.
func CreateToken(address string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a session token and returns the wallet address.
func ParseToken(tokenStr string, secret []byte) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || claims.Address == "" {
		return "", errors.New("invalid session claims")
	}
	return claims.Address, nil
}
