package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentry/pkg/domain-errors"
)

var jwtService = NewService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken("sbj_123", "web-client", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sbj_123", claims.SubjectID)
	assert.Equal(t, "web-client", claims.ClientID)
	assert.Equal(t, "test-issuer", claims.Issuer)
}

func TestValidateExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken("sbj_123", "web-client", -time.Minute)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateTokenWrongKey(t *testing.T) {
	other := NewService("other-key", "test-issuer", "test-audience")
	token, err := other.GenerateAccessToken("sbj_123", "web-client", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestValidateGarbageToken(t *testing.T) {
	_, err := jwtService.ValidateToken("not-a-jwt")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestAdapterMapsClaims(t *testing.T) {
	token, err := jwtService.GenerateAccessToken("sbj_456", "mobile", time.Hour)
	require.NoError(t, err)

	adapter := NewAdapter(jwtService)
	claims, err := adapter.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sbj_456", claims.SubjectID)
	assert.Equal(t, "mobile", claims.ClientID)
}
