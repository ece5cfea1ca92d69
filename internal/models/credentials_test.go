package models

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_IsZero(t *testing.T) {
	assert.True(t, Credentials{}.IsZero())
	assert.False(t, Credentials{RefreshToken: "r"}.IsZero())
	assert.False(t, Credentials{AccessToken: "a"}.IsZero())
}

func TestCredentials_AccessExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("any-key"))
	require.NoError(t, err)

	got, ok := Credentials{AccessToken: signed}.AccessExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u"}).
		SignedString([]byte("any-key"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "absent", token: ""},
		{name: "opaque", token: "not-a-jwt"},
		{name: "no exp claim", token: noExp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Credentials{AccessToken: tt.token}.AccessExpiresAt()
			assert.False(t, ok)
		})
	}
}
