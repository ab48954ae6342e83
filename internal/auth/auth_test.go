package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhall/registrar/internal/model"
)

var secret = []byte("unit-test-secret")

func TestTokenRoundTrip(t *testing.T) {
	tok, err := CreateAccessToken(secret, "user-1", model.RoleAdmin, "user-1@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := ParseValidate(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Sub)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "user-1@example.com", claims.Email)

	actor := claims.Actor()
	assert.Equal(t, "user-1", actor.ID)
	assert.True(t, actor.Role.IsAdmin())
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, err := CreateAccessToken(secret, "user-1", model.RoleUser, "", time.Hour)
	require.NoError(t, err)

	_, err = ParseValidate([]byte("other-secret"), tok)
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	tok, err := CreateAccessToken(secret, "user-1", model.RoleUser, "", -time.Minute)
	require.NoError(t, err)

	_, err = ParseValidate(secret, tok)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseValidate(secret, "not.a.token")
	assert.Error(t, err)
}
