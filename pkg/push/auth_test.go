package push

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestSenderAuth_SignTask(t *testing.T) {
	auth, err := NewSenderAuth()
	assert.NoError(t, err)

	token, err := auth.SignTask("t1")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		return &auth.key.PublicKey, nil
	})
	assert.NoError(t, err)
	assert.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, "t1", claims["sub"])
}

func TestSenderAuth_JWKSHandler(t *testing.T) {
	auth, err := NewSenderAuth()
	assert.NoError(t, err)
	assert.NotNil(t, auth.JWKSHandler())
}
