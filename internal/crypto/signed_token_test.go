package crypto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClaims struct {
	UserID string `json:"userId"`
}

func TestTokenSigner(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	t.Run("round trip", func(t *testing.T) {
		signer := NewTokenSigner(key, time.Hour)

		token, err := signer.Sign(testClaims{UserID: "user-1"})
		require.NoError(t, err)
		assert.Len(t, strings.Split(token, "."), 2)

		var claims testClaims
		require.NoError(t, signer.Verify(token, &claims))
		assert.Equal(t, "user-1", claims.UserID)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		signer := NewTokenSigner(key, -time.Minute)

		token, err := signer.Sign(testClaims{UserID: "user-1"})
		require.NoError(t, err)

		var claims testClaims
		err = signer.Verify(token, &claims)
		assert.ErrorContains(t, err, "expired")
	})

	t.Run("tampered payload is rejected", func(t *testing.T) {
		signer := NewTokenSigner(key, time.Hour)

		token, err := signer.Sign(testClaims{UserID: "user-1"})
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		tampered := parts[0] + "x." + parts[1]

		var claims testClaims
		assert.Error(t, signer.Verify(tampered, &claims))
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		signer := NewTokenSigner(key, time.Hour)
		other := NewTokenSigner([]byte("ffffffffffffffffffffffffffffffff"), time.Hour)

		token, err := signer.Sign(testClaims{UserID: "user-1"})
		require.NoError(t, err)

		var claims testClaims
		assert.Error(t, other.Verify(token, &claims))
	})

	t.Run("garbage tokens are rejected", func(t *testing.T) {
		signer := NewTokenSigner(key, time.Hour)

		var claims testClaims
		for _, token := range []string{"", "no-dot", "a.b.c", "!!!.???"} {
			assert.Error(t, signer.Verify(token, &claims), "token %q", token)
		}
	})
}

func TestSignData(t *testing.T) {
	key := []byte("test-key")

	sig := SignData("payload", key)
	assert.True(t, ValidateSignedData("payload", sig, key))
	assert.False(t, ValidateSignedData("other", sig, key))
	assert.False(t, ValidateSignedData("payload", sig, []byte("wrong")))
	assert.False(t, ValidateSignedData("payload", "not-base64!!", key))
}
