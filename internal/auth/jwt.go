package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

// Roles that see every zone.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// Claims defines the structured data we store in the JWT
type Claims struct {
	UserID  string   `json:"user_id"`
	Role    string   `json:"role"`
	ZoneIDs []string `json:"zone_ids,omitempty"`
	jwt.RegisteredClaims
}

// Scope returns the report visibility granted by the claims. Admins and
// managers are unrestricted; everyone else sees only their zones.
func (c *Claims) Scope() domain.Scope {
	switch c.Role {
	case RoleAdmin, RoleManager:
		return domain.UnrestrictedScope()
	}
	return domain.ZoneScope(c.ZoneIDs...)
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secretKey: []byte(secret), ttl: ttl}
}

// GenerateToken creates a new JWT access token
func (tm *TokenManager) GenerateToken(userID, role string, zoneIDs []string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:  userID,
		Role:    role,
		ZoneIDs: zoneIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
