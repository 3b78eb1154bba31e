package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the admin surface.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC bearer tokens for admin authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration for the admin surface.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"partner-api-admin"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID string   `env:"USER_ID" envDefault:"dev-user"`
	Email  string   `env:"EMAIL"   envDefault:"dev@example.com"`
	Groups []string `env:"GROUPS"  envDefault:"admins"          envSeparator:";"`
}

// AuthConfig groups admin authentication configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// AdminGroup is the directory group required for key management endpoints.
	AdminGroup string `env:"ADMIN_GROUP,required"`

	// UserGroup is the directory group granting read-only console access.
	UserGroup string `env:"USER_GROUP"`
}

// PartnerAuthConfig groups partner API key authentication configuration.
type PartnerAuthConfig struct {
	// KeyCacheTTL bounds how long a looked-up partner key record may be
	// served from cache before re-reading the database.
	KeyCacheTTL time.Duration `env:"PARTNER_AUTH_KEY_CACHE_TTL" envDefault:"30s"`

	// DefaultRateLimitPerMinute applies to keys with no per-key override.
	DefaultRateLimitPerMinute int `env:"PARTNER_AUTH_DEFAULT_RATE_LIMIT" envDefault:"60"`

	// BcryptCost is the cost factor used when hashing new API secrets.
	BcryptCost int `env:"PARTNER_AUTH_BCRYPT_COST" envDefault:"10"`

	// EncryptionKey protects webhook signing secrets at rest. Either a
	// hex-encoded 32-byte key or a passphrase hashed down to one. When
	// empty, secrets are stored unencrypted (development only).
	EncryptionKey string `env:"PARTNER_AUTH_ENCRYPTION_KEY"`
}

// Sanitize applies guardrails to partner auth configuration values.
func (p *PartnerAuthConfig) Sanitize() {
	if p.KeyCacheTTL < 0 {
		p.KeyCacheTTL = 0
	}
	if p.DefaultRateLimitPerMinute < 1 {
		p.DefaultRateLimitPerMinute = 60
	}
	if p.BcryptCost < 4 || p.BcryptCost > 31 {
		p.BcryptCost = 10
	}
}
