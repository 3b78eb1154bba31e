package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentFromKey(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantEnv Environment
		wantOK  bool
	}{
		{name: "test key", apiKey: "pk_test_abc123", wantEnv: EnvironmentTest, wantOK: true},
		{name: "live key", apiKey: "pk_live_abc123", wantEnv: EnvironmentLive, wantOK: true},
		{name: "no prefix", apiKey: "abc123", wantOK: false},
		{name: "empty", apiKey: "", wantOK: false},
		{name: "secret prefix is not a key", apiKey: "sk_test_abc", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := EnvironmentFromKey(tt.apiKey)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantEnv, env)
			}
		})
	}
}

func TestEnvironment_KeyPrefix_RoundTrips(t *testing.T) {
	for _, env := range []Environment{EnvironmentTest, EnvironmentLive} {
		got, ok := EnvironmentFromKey(env.KeyPrefix() + "xyz")
		require.True(t, ok)
		assert.Equal(t, env, got)
	}
}

func TestPartnerKey_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	key := PartnerKey{}
	assert.False(t, key.Expired(now), "no expiry never expires")

	key.ExpiresAt = &future
	assert.False(t, key.Expired(now))

	key.ExpiresAt = &past
	assert.True(t, key.Expired(now))
}

func TestPartnerContext_CanAccessCompany(t *testing.T) {
	companyA := "550e8400-e29b-41d4-a716-446655440000"
	companyB := "650e8400-e29b-41d4-a716-446655440000"

	t.Run("unrestricted partner accesses any company", func(t *testing.T) {
		pc := PartnerContext{KeyID: "k1"}
		assert.True(t, pc.CanAccessCompany(companyA))
		assert.True(t, pc.CanAccessCompany(companyB))
	})

	t.Run("empty restriction behaves as unrestricted", func(t *testing.T) {
		empty := ""
		pc := PartnerContext{KeyID: "k1", CompanyID: &empty}
		assert.True(t, pc.CanAccessCompany(companyA))
	})

	t.Run("restricted partner only accesses its company", func(t *testing.T) {
		pc := PartnerContext{KeyID: "k1", CompanyID: &companyA}
		assert.True(t, pc.CanAccessCompany(companyA))
		assert.False(t, pc.CanAccessCompany(companyB))
		assert.False(t, pc.CanAccessCompany(""))
	})
}

func TestPartnerContext_IPAllowed(t *testing.T) {
	t.Run("no whitelist accepts any address", func(t *testing.T) {
		pc := PartnerContext{KeyID: "k1"}
		assert.True(t, pc.IPAllowed("203.0.113.7"))
		assert.True(t, pc.IPAllowed(""))
	})

	t.Run("whitelisted address passes", func(t *testing.T) {
		pc := PartnerContext{KeyID: "k1", AllowedIPs: []string{"203.0.113.7", "2001:db8::1"}}
		assert.True(t, pc.IPAllowed("203.0.113.7"))
		assert.True(t, pc.IPAllowed("2001:db8::1"))
	})

	t.Run("unlisted address is refused", func(t *testing.T) {
		pc := PartnerContext{KeyID: "k1", AllowedIPs: []string{"203.0.113.7"}}
		assert.False(t, pc.IPAllowed("198.51.100.4"))
		assert.False(t, pc.IPAllowed(""))
	})
}

func TestMintKeyRequest_Validate(t *testing.T) {
	tests := []struct {
		name        string
		req         MintKeyRequest
		expectError bool
	}{
		{
			name: "valid",
			req:  MintKeyRequest{PartnerName: "acme", Environment: EnvironmentTest},
		},
		{
			name:        "missing partner name",
			req:         MintKeyRequest{Environment: EnvironmentLive},
			expectError: true,
		},
		{
			name:        "bad environment",
			req:         MintKeyRequest{PartnerName: "acme", Environment: "staging"},
			expectError: true,
		},
		{
			name:        "negative rate limit",
			req:         MintKeyRequest{PartnerName: "acme", Environment: EnvironmentTest, RateLimitPerMinute: -5},
			expectError: true,
		},
		{
			name: "valid allowed ips",
			req:  MintKeyRequest{PartnerName: "acme", Environment: EnvironmentTest, AllowedIPs: []string{"203.0.113.7", "2001:db8::1"}},
		},
		{
			name:        "malformed allowed ip",
			req:         MintKeyRequest{PartnerName: "acme", Environment: EnvironmentTest, AllowedIPs: []string{"not-an-ip"}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
