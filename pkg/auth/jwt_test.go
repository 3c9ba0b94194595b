package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef-secret"

func TestValidateToken(t *testing.T) {
	v, err := NewJWTValidator(secret, "diarybot")
	require.NoError(t, err)

	good, err := GenerateToken(secret, "diarybot", "ops@example.com", []string{RoleOperator}, time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken("Bearer " + good)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.True(t, claims.HasRole(RoleOperator))
	assert.False(t, claims.HasRole("admin"))

	expired, err := GenerateToken(secret, "diarybot", "ops", nil, -time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	forged, err := GenerateToken("another-secret-of-16+", "diarybot", "ops", nil, time.Hour)
	require.NoError(t, err)
	_, err = v.ValidateToken(forged)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	foreign, err := GenerateToken(secret, "someone-else", "ops", nil, time.Hour)
	require.NoError(t, err)
	_, err = v.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidClaims)

	anonymous, err := GenerateToken(secret, "diarybot", "", nil, time.Hour)
	require.NoError(t, err)
	_, err = v.ValidateToken(anonymous)
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = v.ValidateToken("  ")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	v, err := NewJWTValidator(secret, "")
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = v.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTValidator_RequiresSecret(t *testing.T) {
	_, err := NewJWTValidator("", "diarybot")
	assert.Error(t, err)
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)

	ctx := SetClaimsInContext(context.Background(), &Claims{Roles: []string{RoleOperator}})
	claims, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.True(t, claims.HasRole(RoleOperator))
}
