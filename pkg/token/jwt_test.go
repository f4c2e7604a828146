package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 1, 7)

	tokenString, err := manager.GenerateToken(42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := manager.VerifyToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", 1, 7)
	other := NewJWTManager("other-secret", 1, 7)

	tokenString, err := manager.GenerateToken(1, "alice")
	require.NoError(t, err)

	_, err = other.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestVerifyToken_Expired(t *testing.T) {
	// 过期时间为 -1 小时，生成即过期
	manager := NewJWTManager("test-secret", -1, 7)

	tokenString, err := manager.GenerateToken(1, "alice")
	require.NoError(t, err)

	_, err = manager.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestVerifyToken_Garbage(t *testing.T) {
	manager := NewJWTManager("test-secret", 1, 7)

	_, err := manager.VerifyToken("not-a-jwt")
	assert.Error(t, err)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", 1, 7)

	tokenString, err := manager.GenerateRefreshToken(7, "bob")
	require.NoError(t, err)

	claims, err := manager.VerifyToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "bob", claims.Username)
}
