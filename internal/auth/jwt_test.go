package auth

import (
	"testing"

	"commsub_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(ttl int) {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TTL = ttl
	cfg.JWT.RefreshTTL = 24
	config.AppConfig = cfg
}

func TestGenerateAndParseToken(t *testing.T) {
	testConfig(60)

	token, err := GenerateToken("user-1", "admin")
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestParseTokenExpired(t *testing.T) {
	testConfig(-1)

	token, err := GenerateToken("user-1", "user")
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.Equal(t, ErrTokenExpired, err)
}

func TestParseTokenWrongSecret(t *testing.T) {
	testConfig(60)
	token, err := GenerateToken("user-1", "user")
	require.NoError(t, err)

	config.AppConfig.JWT.Secret = "another-secret"
	_, err = ParseToken(token)
	assert.Equal(t, ErrTokenInvalid, err)
}

func TestGenerateRefreshTokenUnique(t *testing.T) {
	a, err := GenerateRefreshToken()
	require.NoError(t, err)
	b, err := GenerateRefreshToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Str0ngPass!")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("Str0ngPass!", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.NoError(t, ValidatePassword("longenough"))
}
