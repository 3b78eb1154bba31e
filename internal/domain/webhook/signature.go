package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignaturePrefix is prepended to the hex digest in the signature header.
const SignaturePrefix = "sha256="

// Sign computes the signature header value for a serialized payload using the
// partner's shared webhook secret. The signature covers the exact bytes sent
// on the wire.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature header against the body. Comparison is
// constant time. Receivers use this to authenticate inbound webhooks.
func Verify(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, SignaturePrefix) {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(header))
}
