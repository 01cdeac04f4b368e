package session

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, secret string) *Codec {
	t.Helper()
	c, err := NewCodec([]byte(secret))
	require.NoError(t, err)
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t, "0123456789abcdef0123")

	for _, plaintext := range []string{"admin:42:1700000000", "", "wx_user:oAbC-123:1800000000"} {
		token, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		got, err := c.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestCodecNonceMakesTokensDistinct(t *testing.T) {
	c := newTestCodec(t, "0123456789abcdef0123")

	a, err := c.Encrypt("admin:42:1700000000")
	require.NoError(t, err)
	b, err := c.Encrypt("admin:42:1700000000")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodecDecryptFailures(t *testing.T) {
	c := newTestCodec(t, "0123456789abcdef0123")
	valid, err := c.Encrypt("admin:42:1700000000")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(valid)
	require.NoError(t, err)
	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-1] ^= 0x01

	other := newTestCodec(t, "another-secret-value")
	foreign, err := other.Encrypt("admin:42:1700000000")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"empty", ""},
		{"truncated", valid[:20]},
		{"tampered", base64.RawURLEncoding.EncodeToString(tampered)},
		{"different key", foreign},
		{"plaintext", "admin:42:1700000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestNewCodecRejectsEmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	require.Error(t, err)
}
