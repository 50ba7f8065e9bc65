package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims identify the caller of an API request. StoreID is uuid.Nil for
// customers and for admins, who may act on any store.
type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	StoreID uuid.UUID `json:"store_id"`
	Role    string    `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carry just enough to look the account up again.
type RefreshClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, userID, storeID uuid.UUID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  userID,
		StoreID: storeID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func GenerateRefreshToken(secret string, userID uuid.UUID, role string) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(secret, tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil || claims.Role == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ValidateRefreshToken returns the account id and role of a refresh token.
func ValidateRefreshToken(secret, tokenStr string) (uuid.UUID, string, error) {
	claims := &RefreshClaims{}
	if err := parse(secret, tokenStr, claims); err != nil {
		return uuid.Nil, "", err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid subject: %w", err)
	}
	return id, claims.Role, nil
}

func parse(secret, tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
