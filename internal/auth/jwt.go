package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenDuration  = 15 * time.Minute
	RefreshTokenDuration = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the payload of both token types. Refresh tokens additionally
// carry the database-tracked TokenID so they can be revoked server-side.
type Claims struct {
	UserID    string `json:"userId"`
	TokenID   string `json:"jti"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken mints the short-lived bearer token used on API
// requests.
func GenerateAccessToken(secret string, userID string) (string, error) {
	return signToken(secret, Claims{UserID: userID, TokenType: tokenTypeAccess}, AccessTokenDuration)
}

// GenerateRefreshToken mints the long-lived cookie token tied to a stored
// refresh_tokens row via tokenID.
func GenerateRefreshToken(secret string, userID string, tokenID string) (string, error) {
	return signToken(secret, Claims{UserID: userID, TokenID: tokenID, TokenType: tokenTypeRefresh}, RefreshTokenDuration)
}

func signToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ID:        claims.TokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString([]byte(secret))
}

// ValidateToken verifies the signature and expiry of either token type.
// Callers are responsible for checking TokenType against the operation.
func ValidateToken(secret string, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
