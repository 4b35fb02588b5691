package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong-pass", hash))
}

func TestHashPassword_CostOutOfRange(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", -1)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, DefaultBcryptCost, cost)
}

func TestGenerateAndValidateJWT(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateJWT(secret, "user-1", "doctor", "", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "doctor", claims.Role)
	assert.Empty(t, claims.Hospital)
	assert.NotEmpty(t, claims.ID, "token must carry a jti for revocation")
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT([]byte("secret-a"), "user-1", "admin", "", time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT([]byte("secret-b"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateJWT_HospitalClaim(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateJWT(secret, "user-2", "hospitaladmin", "abc123", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "abc123", claims.Hospital)
}

func TestGenerateJWT_NoSecret(t *testing.T) {
	_, err := GenerateJWT(nil, "user-1", "admin", "", time.Hour)
	assert.Error(t, err)
}

func TestMissingFields(t *testing.T) {
	required := []string{"name", "email", "password"}

	missing := MissingFields(required, map[string]string{
		"name":     "Jane",
		"email":    "  ",
		"password": "",
	})
	assert.Equal(t, []string{"email", "password"}, missing)

	missing = MissingFields(required, map[string]string{
		"name": "Jane", "email": "j@x.io", "password": "pw",
	})
	assert.Empty(t, missing)
}
