package model

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Environment distinguishes sandbox keys from production keys.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Environment string

const (
	// EnvironmentTest identifies sandbox credentials (pk_test_ prefix).
	EnvironmentTest Environment = "test"
	// EnvironmentLive identifies production credentials (pk_live_ prefix).
	EnvironmentLive Environment = "live"
)

// Valid returns true if the Environment is valid.
func (e Environment) Valid() bool {
	return e == EnvironmentTest || e == EnvironmentLive
}

// UnmarshalText implements encoding.TextUnmarshaler for Environment to allow env parsing.
func (e *Environment) UnmarshalText(text []byte) error {
	v := Environment(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*e = v
		return nil
	}
	return fmt.Errorf("invalid Environment: %q", v)
}

// KeyPrefix returns the API key prefix for this environment.
func (e Environment) KeyPrefix() string {
	if e == EnvironmentLive {
		return "pk_live_"
	}
	return "pk_test_"
}

// EnvironmentFromKey derives the environment from an API key prefix.
func EnvironmentFromKey(apiKey string) (Environment, bool) {
	switch {
	case strings.HasPrefix(apiKey, "pk_live_"):
		return EnvironmentLive, true
	case strings.HasPrefix(apiKey, "pk_test_"):
		return EnvironmentTest, true
	default:
		return "", false
	}
}

// PartnerKey is a stored partner credential. SecretHash is a bcrypt hash of the
// API secret; the plaintext secret is only ever returned once at mint time.
type PartnerKey struct {
	ID                 string      `json:"id"                    db:"id"`
	PartnerName        string      `json:"partner_name"          db:"partner_name"`
	KeyID              string      `json:"key_id"                db:"key_id"`
	SecretHash         string      `json:"-"                     db:"secret_hash"`
	WebhookSecret      string      `json:"-"                     db:"webhook_secret"`
	Environment        Environment `json:"environment"           db:"environment"`
	CompanyID          *string     `json:"company_id,omitempty"  db:"company_id"`
	RateLimitPerMinute int         `json:"rate_limit_per_minute" db:"rate_limit_per_minute"`
	AllowedIPs         []string    `json:"allowed_ips,omitempty" db:"allowed_ips"`
	IsActive           bool        `json:"is_active"             db:"is_active"`
	ExpiresAt          *time.Time  `json:"expires_at,omitempty"  db:"expires_at"`
	LastUsedAt         *time.Time  `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt          time.Time   `json:"created_at"            db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"            db:"updated_at"`
}

// Expired reports whether the key has an expiry in the past.
func (k *PartnerKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// PartnerContext is the authenticated caller descriptor attached to a request
// after the auth gate accepts its credentials.
type PartnerContext struct {
	KeyID              string
	PartnerName        string
	Environment        Environment
	CompanyID          *string
	RateLimitPerMinute int
	AllowedIPs         []string
	IdempotencyKey     string
}

// IPAllowed reports whether the caller's address passes the key's whitelist.
// A key with no whitelist accepts any address. Pure, no I/O.
func (p *PartnerContext) IPAllowed(ip string) bool {
	if len(p.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range p.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}

// CanAccessCompany reports whether the partner may act on the given company.
// A key bound to a company may only touch that company; an unbound key may
// touch any company. Pure, no I/O.
func (p *PartnerContext) CanAccessCompany(companyID string) bool {
	if p.CompanyID == nil || *p.CompanyID == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(*p.CompanyID), []byte(companyID)) == 1
}

// MintKeyRequest describes a new credential to create via the admin surface.
type MintKeyRequest struct {
	PartnerName        string      `json:"partner_name"`
	Environment        Environment `json:"environment"`
	CompanyID          *string     `json:"company_id,omitempty"`
	RateLimitPerMinute int         `json:"rate_limit_per_minute,omitempty"`
	AllowedIPs         []string    `json:"allowed_ips,omitempty"`
	ExpiresAt          *time.Time  `json:"expires_at,omitempty"`
}

// Validate validates the MintKeyRequest fields.
func (r *MintKeyRequest) Validate() error {
	if strings.TrimSpace(r.PartnerName) == "" {
		return errors.New("partner name is required")
	}
	if !r.Environment.Valid() {
		return errors.New("environment must be test or live")
	}
	if r.RateLimitPerMinute < 0 {
		return errors.New("rate limit must be >= 0")
	}
	for _, ip := range r.AllowedIPs {
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("invalid allowed IP %q", ip)
		}
	}
	return nil
}

// RateLimitResult reports the outcome of one fixed-window rate-limit check.
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// MintedKey carries the one-time plaintext credentials back to the admin caller.
type MintedKey struct {
	Key           PartnerKey `json:"key"`
	APIKey        string     `json:"api_key"`
	APISecret     string     `json:"api_secret"`
	WebhookSecret string     `json:"webhook_secret"`
}
