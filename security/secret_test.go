package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecret_RoundTrip(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, VerifySecret(hash, "s3cret"))
	assert.ErrorIs(t, VerifySecret(hash, "wrong"), ErrSecretMismatch)
}

func TestHashSecret_Empty(t *testing.T) {
	_, err := HashSecret("")
	assert.Error(t, err)
}

func TestVerifySecret_EmptyHash(t *testing.T) {
	assert.ErrorIs(t, VerifySecret("", "anything"), ErrSecretMismatch)
}

func TestVerifySecret_MalformedHash(t *testing.T) {
	err := VerifySecret("not-a-bcrypt-hash", "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretMismatch)
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("abc", "abc"))
	assert.False(t, ConstantTimeEqual("abc", "abd"))
	assert.False(t, ConstantTimeEqual("abc", "ab"))
}
