package util

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := NewAESKey()
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		n := 8 + i%121
		plain := make([]byte, n)
		_, err := rand.Read(plain)
		require.NoError(t, err)

		ct, err := SealAES(plain, key, []byte("aad"))
		require.NoError(t, err)

		got, err := OpenAES(ct, key, []byte("aad"))
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestOpenAESRejectsWrongAAD(t *testing.T) {
	key, err := NewAESKey()
	require.NoError(t, err)

	ct, err := SealAES([]byte("secret"), key, []byte("session-a|anthropic"))
	require.NoError(t, err)

	_, err = OpenAES(ct, key, []byte("session-b|anthropic"))
	assert.Error(t, err, "ciphertext must not open under different AAD")
}

func TestSealAESUniqueNonces(t *testing.T) {
	key, err := NewAESKey()
	require.NoError(t, err)

	a, err := SealAES([]byte("same"), key, nil)
	require.NoError(t, err)
	b, err := SealAES([]byte("same"), key, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "each seal must use a fresh nonce")
}

func TestOpenAESShortCiphertext(t *testing.T) {
	key, err := NewAESKey()
	require.NoError(t, err)

	_, err = OpenAES([]byte{0x01, 0x02}, key, nil)
	assert.Error(t, err)
}

func TestSealAESInvalidKeySize(t *testing.T) {
	_, err := SealAES([]byte("x"), []byte("short"), nil)
	assert.Error(t, err)
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	WipeBytes(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestHKDFDeterministic(t *testing.T) {
	a, err := HKDF([]byte("seed"), []byte("salt"), []byte("info"))
	require.NoError(t, err)
	b, err := HKDF([]byte("seed"), []byte("salt"), []byte("info"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := HKDF([]byte("seed"), []byte("salt"), []byte("other"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
