// Package signing computes the SHA-1 signatures required by the platform's
// client-side protocols. SHA-1 is mandated by the platform for wire compatibility.
package signing

import (
	"crypto/sha1" //nolint:gosec // mandated by the platform protocol
	"encoding/hex"
	"sort"
	"strings"
)

// Sign signs the card protocol parameter set: the parameter values (keys are
// ignored) plus secret are sorted byte-wise, concatenated without separator
// and hashed. Two maps holding the same multiset of values sign identically.
func Sign(params map[string]string, secret string) string {
	items := make([]string, 0, len(params)+1)
	for _, v := range params {
		items = append(items, v)
	}
	items = append(items, secret)
	sort.Strings(items)

	sum := sha1.Sum([]byte(strings.Join(items, ""))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// JSAPISignature signs a JS-SDK config request for the page at url.
// Any fragment of url must be stripped by the caller.
func JSAPISignature(ticket, nonce, timestamp, url string) string {
	plain := "jsapi_ticket=" + ticket +
		"&noncestr=" + nonce +
		"&timestamp=" + timestamp +
		"&url=" + url
	sum := sha1.Sum([]byte(plain)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
