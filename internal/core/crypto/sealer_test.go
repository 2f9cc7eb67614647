package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	sealer, err := NewSealer("correct horse battery staple", testSalt)
	require.NoError(t, err)

	plaintext := []byte(`{"model_path": "/models/v3"}`)
	sealed, err := sealer.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealer_WrongPassphrase(t *testing.T) {
	sealer, err := NewSealer("correct horse battery staple", testSalt)
	require.NoError(t, err)
	other, err := NewSealer("wrong passphrase", testSalt)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestNewSealer_SaltTooShort(t *testing.T) {
	_, err := NewSealer("passphrase", []byte("short"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSaltLength)
}
