package signing

import (
	"crypto/rand"
	"fmt"
)

const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NonceLength is the length of nonces embedded in signed client parameters.
const NonceLength = 16

// Nonce returns n random alphanumeric characters.
func Nonce(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	// 248 is the largest multiple of 62 below 256; larger bytes would bias the result.
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= 248 {
				continue
			}
			out = append(out, nonceAlphabet[int(b)%len(nonceAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
