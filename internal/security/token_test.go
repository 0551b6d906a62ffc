package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently-backend/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)

	t.Run("Access token round trip", func(t *testing.T) {
		token, err := m.GenerateAccessToken("user-1", "user@example.com", domain.UserRoleAdmin)
		require.NoError(t, err)

		claims, err := m.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, TokenTypeAccess, claims.Type)
		assert.Equal(t, domain.Actor{UserID: "user-1", Role: domain.UserRoleAdmin}, claims.Actor())
	})

	t.Run("Role defaults to user", func(t *testing.T) {
		token, err := m.GenerateAccessToken("user-2", "", "")
		require.NoError(t, err)
		claims, err := m.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, domain.UserRoleUser, claims.Role)
	})

	t.Run("Service token", func(t *testing.T) {
		token, err := m.GenerateServiceToken("payments-webhook")
		require.NoError(t, err)
		claims, err := m.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, TokenTypeService, claims.Type)
		assert.True(t, claims.Actor().IsTrusted())
	})

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour)
		token, err := other.GenerateAccessToken("user-1", "", domain.UserRoleUser)
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		past := &tokenManager{secret: []byte(testSecret), expiry: time.Minute, now: func() time.Time {
			return time.Now().Add(-time.Hour)
		}}
		token, err := past.GenerateAccessToken("user-1", "", domain.UserRoleUser)
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Unsigned token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, UserClaims{UserID: "user-1"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
