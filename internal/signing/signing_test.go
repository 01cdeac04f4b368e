package signing

import (
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func TestSign(t *testing.T) {
	t.Run("sorts values and secret byte-wise", func(t *testing.T) {
		params := map[string]string{
			"cardId":    "pFS7Fjg8kV1IdDz01r4SQwMkuCKc",
			"timestamp": "1400000000",
			"nonce_str": "Wm3WZYTPz0wzccnW",
		}
		// byte order: digits < upper case < lower case
		want := sha1Hex("1400000000" + "Wm3WZYTPz0wzccnW" + "pFS7Fjg8kV1IdDz01r4SQwMkuCKc" + "ticket")
		assert.Equal(t, want, Sign(params, "ticket"))
	})

	t.Run("deterministic", func(t *testing.T) {
		params := map[string]string{"a": "x", "b": "y", "c": "z"}
		first := Sign(params, "secret")
		for range 20 {
			assert.Equal(t, first, Sign(params, "secret"))
		}
	})

	t.Run("keys do not matter", func(t *testing.T) {
		a := map[string]string{"appId": "wx1", "timestamp": "1", "nonceStr": "n"}
		b := map[string]string{"x": "n", "y": "wx1", "z": "1"}
		assert.Equal(t, Sign(a, "t"), Sign(b, "t"))
	})

	t.Run("duplicate values are kept", func(t *testing.T) {
		a := map[string]string{"a": "v", "b": "v"}
		b := map[string]string{"a": "v"}
		assert.NotEqual(t, Sign(a, "t"), Sign(b, "t"))
	})

	t.Run("secret participates", func(t *testing.T) {
		params := map[string]string{"a": "v"}
		assert.NotEqual(t, Sign(params, "t1"), Sign(params, "t2"))
	})

	t.Run("empty params sign the secret alone", func(t *testing.T) {
		assert.Equal(t, sha1Hex("ticket"), Sign(nil, "ticket"))
	})
}

func TestJSAPISignature(t *testing.T) {
	// Example from the JS-SDK documentation.
	got := JSAPISignature(
		"sM4AOVdWfPE4DxkXGEs8VMCPGGVi4C3VM0P37wVUCFvkVAy_90u5h9nbSlYy3-Sl-HhTdfl2fzFy1AOcHKP7qg",
		"Wm3WZYTPz0wzccnW",
		"1414587457",
		"http://mp.weixin.qq.com?params=value",
	)
	assert.Equal(t, "0f9de62fce790f9a083d5c99e95740ceb90c27ed", got)
}

func TestNonce(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		n, err := Nonce(NonceLength)
		assert.NoError(t, err)
		assert.Len(t, n, NonceLength)
		for _, r := range n {
			assert.Contains(t, nonceAlphabet, string(r))
		}
		seen[n] = true
	}
	assert.Greater(t, len(seen), 45)
}
