package cipher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestAESGCM_RoundTrip(t *testing.T) {
	c, err := NewAESGCM(testKey())
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("sk-test-credential")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-test-credential", ciphertext)

	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-credential", plaintext)
}

func TestAESGCM_NonceMakesCiphertextsDiffer(t *testing.T) {
	c, err := NewAESGCM(testKey())
	require.NoError(t, err)

	first, err := c.Encrypt("same-secret")
	require.NoError(t, err)
	second, err := c.Encrypt("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNewAESGCM_RejectsBadKey(t *testing.T) {
	_, err := NewAESGCM([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestAESGCM_Decrypt_Malformed(t *testing.T) {
	c, err := NewAESGCM(testKey())
	require.NoError(t, err)

	t.Run("not base64", func(t *testing.T) {
		_, err := c.Decrypt("%%%not-base64%%%")
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := c.Decrypt("YWJj")
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})

	t.Run("tampered", func(t *testing.T) {
		ciphertext, err := c.Encrypt("secret")
		require.NoError(t, err)
		tampered := "A" + ciphertext[1:]
		if tampered == ciphertext {
			tampered = "B" + ciphertext[1:]
		}
		_, err = c.Decrypt(tampered)
		assert.Error(t, err)
	})
}

func TestNoop(t *testing.T) {
	var c Noop
	out, err := c.Encrypt("plain")
	assert.NoError(t, err)
	assert.Equal(t, "plain", out)
}
