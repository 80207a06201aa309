package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

func TestTokenManager_UsesConfiguredTTL(t *testing.T) {
	ttl := 2 * time.Hour
	tm := NewTokenManager("test-secret", ttl)

	start := time.Now()

	token, err := tm.GenerateToken("u1", "technician", []string{"z1"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)

	expectedExpiry := start.Add(ttl)
	assert.WithinDuration(t, expectedExpiry, claims.ExpiresAt.Time, 2*time.Second)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, []string{"z1"}, claims.ZoneIDs)
}

func TestTokenManager_RejectsForeignTokens(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	other, err := NewTokenManager("other-secret", time.Hour).GenerateToken("u1", RoleAdmin, nil)
	require.NoError(t, err)
	_, err = tm.ValidateToken(other)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = tm.ValidateToken(signed)
	assert.Error(t, err)

	_, err = tm.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestClaims_Scope(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   domain.Scope
	}{
		{"admin", Claims{Role: RoleAdmin, ZoneIDs: []string{"z1"}}, domain.UnrestrictedScope()},
		{"manager", Claims{Role: RoleManager}, domain.UnrestrictedScope()},
		{"technician", Claims{Role: "technician", ZoneIDs: []string{"z2", "z1"}}, domain.ZoneScope("z2", "z1")},
		{"no zones sees nothing", Claims{Role: "technician"}, domain.ZoneScope()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.claims.Scope())
		})
	}
}
