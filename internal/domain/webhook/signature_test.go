package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	body := []byte(`{"event_type":"job.completed","event_id":"e-1"}`)
	sig := Sign("whsec_abc", body)

	assert.True(t, strings.HasPrefix(sig, SignaturePrefix))
	assert.Len(t, strings.TrimPrefix(sig, SignaturePrefix), 64)

	// Same inputs are deterministic.
	assert.Equal(t, sig, Sign("whsec_abc", body))

	// Any input change produces a different signature.
	assert.NotEqual(t, sig, Sign("whsec_other", body))
	assert.NotEqual(t, sig, Sign("whsec_abc", []byte(`{}`)))
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event_id":"e-1"}`)
	sig := Sign("whsec_abc", body)

	assert.True(t, Verify("whsec_abc", body, sig))
	assert.False(t, Verify("whsec_other", body, sig))
	assert.False(t, Verify("whsec_abc", []byte(`{"event_id":"e-2"}`), sig))
	assert.False(t, Verify("whsec_abc", body, "md5=abc"))
	assert.False(t, Verify("whsec_abc", body, ""))
}
