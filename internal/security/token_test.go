package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_AccessToken(t *testing.T) {
	m := NewTokenManager(testSecret)

	token, err := m.GenerateAccessToken(6, "worker")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int32(6), claims.UserID)
	assert.Equal(t, "worker", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, "6", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RefreshTokenIsNotAccess(t *testing.T) {
	m := NewTokenManager(testSecret)

	token, err := m.GenerateRefreshToken(6)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.Type)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager(testSecret).(*tokenManager)
	issued := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	token, err := m.GenerateAccessToken(1, "admin")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(accessTTL + time.Minute) }
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager(testSecret)
	other := NewTokenManager("ffffffffffffffffffffffffffffffff")

	foreign, err := other.GenerateAccessToken(1, "admin")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, UserClaims{UserID: 1, Type: TokenTypeAccess})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		UserID:           1,
		Type:             TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})
	badIssuer, err := wrongIssuer.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"none algorithm", unsigned},
		{"wrong issuer", badIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
