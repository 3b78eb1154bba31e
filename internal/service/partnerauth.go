package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
)

// PartnerAuthServiceOptions groups dependencies for PartnerAuthService.
type PartnerAuthServiceOptions struct {
	Keys   core.PartnerKeyRepository // Required: partner key repository
	Cache  core.CacheRepository      // Optional: key record cache
	Config config.PartnerAuthConfig  // Required: auth gate configuration
	Logger *slog.Logger              // Optional: structured logger
}

// PartnerAuthService is the request auth gate for the partner API surface.
// It validates an API key/secret pair against the stored credential, enforces
// the active flag and expiry, and produces the PartnerContext that downstream
// handlers act on.
type PartnerAuthService struct {
	keys   core.PartnerKeyRepository
	cache  core.CacheRepository
	config config.PartnerAuthConfig
	logger *slog.Logger
}

// NewPartnerAuthService constructs a new PartnerAuthService.
func NewPartnerAuthService(opts PartnerAuthServiceOptions) (*PartnerAuthService, error) {
	if opts.Keys == nil {
		return nil, errors.New("PartnerKeyRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "partner_auth_service")
	}

	return &PartnerAuthService{
		keys:   opts.Keys,
		cache:  opts.Cache,
		config: opts.Config,
		logger: logger,
	}, nil
}

// MustNewPartnerAuthService constructs a new PartnerAuthService and panics on error.
func MustNewPartnerAuthService(opts PartnerAuthServiceOptions) *PartnerAuthService {
	svc, err := NewPartnerAuthService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create PartnerAuthService: %v", err))
	}
	return svc
}

// Authenticate validates an API key and secret pair. The key carries its
// environment prefix (pk_test_ / pk_live_); the secret is verified against the
// stored bcrypt hash. A revoked key is rejected with a forbidden error so
// callers can tell revocation apart from bad or expired credentials, which
// are unauthorized.
func (s *PartnerAuthService) Authenticate(ctx context.Context, apiKey, apiSecret string) (*model.PartnerContext, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" || apiSecret == "" {
		return nil, apperrors.Unauthorized("Missing API credentials")
	}

	env, ok := model.EnvironmentFromKey(apiKey)
	if !ok {
		return nil, apperrors.Unauthorized("Invalid API key")
	}
	keyID := strings.TrimPrefix(apiKey, env.KeyPrefix())
	if keyID == "" {
		return nil, apperrors.Unauthorized("Invalid API key")
	}

	key, err := s.lookupKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, data.ErrPartnerKeyNotFound) {
			// Burn a hash comparison so a missing key costs the same as a
			// wrong secret.
			_ = bcrypt.CompareHashAndPassword(dummySecretHash, []byte(apiSecret))
			return nil, apperrors.Unauthorized("Invalid API credentials")
		}
		return nil, fmt.Errorf("lookup partner key: %w", err)
	}

	if key.Environment != env {
		return nil, apperrors.Unauthorized("Invalid API credentials")
	}

	if bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(apiSecret)) != nil {
		return nil, apperrors.Unauthorized("Invalid API credentials")
	}

	if !key.IsActive {
		return nil, apperrors.Forbidden("API key has been revoked")
	}
	if key.Expired(time.Now()) {
		return nil, apperrors.Unauthorized("API key has expired")
	}

	s.keys.TouchLastUsed(ctx, key.ID)

	rateLimit := key.RateLimitPerMinute
	if rateLimit <= 0 {
		rateLimit = s.config.DefaultRateLimitPerMinute
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "partner authenticated",
			"key_id", key.KeyID,
			"partner", key.PartnerName,
			"environment", key.Environment,
		)
	}

	return &model.PartnerContext{
		KeyID:              key.ID,
		PartnerName:        key.PartnerName,
		Environment:        key.Environment,
		CompanyID:          key.CompanyID,
		RateLimitPerMinute: rateLimit,
		AllowedIPs:         key.AllowedIPs,
	}, nil
}

// dummySecretHash is a bcrypt hash of an unguessable value, compared against
// when the key id does not exist to keep lookup timing uniform.
var dummySecretHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// lookupKey reads the credential record, preferring the short-lived cache.
// Cache entries are stored as JSON so a revocation is observed within the TTL.
func (s *PartnerAuthService) lookupKey(ctx context.Context, keyID string) (*model.PartnerKey, error) {
	cacheKey := partnerKeyCacheKey(keyID)

	if s.cache != nil && s.config.KeyCacheTTL > 0 {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil && len(raw) > 0 {
			var rec cachedKeyRecord
			if jsonErr := json.Unmarshal(raw, &rec); jsonErr == nil {
				return rec.toModel(), nil
			}
			// Corrupt cache entry; fall through to the database.
			if _, delErr := s.cache.Delete(ctx, cacheKey); delErr != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "drop corrupt key cache entry failed", "error", delErr)
			}
		}
	}

	key, err := s.keys.GetByKeyID(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.config.KeyCacheTTL > 0 {
		if raw, jsonErr := json.Marshal(newCachedKeyRecord(key)); jsonErr == nil {
			if cacheErr := s.cache.Set(ctx, cacheKey, raw, s.config.KeyCacheTTL); cacheErr != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "cache partner key failed", "error", cacheErr)
			}
		}
	}

	return key, nil
}

// Invalidate drops a cached credential, used after admin revocation so the
// gate stops honoring the key before the cache TTL lapses.
func (s *PartnerAuthService) Invalidate(ctx context.Context, keyID string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Delete(ctx, partnerKeyCacheKey(keyID)); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "invalidate partner key cache failed",
			"key_id", keyID,
			"error", err,
		)
	}
}

func partnerKeyCacheKey(keyID string) string {
	return "partner_key:" + keyID
}

// cachedKeyRecord is the cache wire shape for a credential. PartnerKey hides
// SecretHash from JSON on purpose, so caching needs an explicit shape; the
// webhook signing secret deliberately never round-trips through the cache.
type cachedKeyRecord struct {
	ID                 string            `json:"id"`
	PartnerName        string            `json:"partner_name"`
	KeyID              string            `json:"key_id"`
	SecretHash         string            `json:"secret_hash"`
	Environment        model.Environment `json:"environment"`
	CompanyID          *string           `json:"company_id,omitempty"`
	RateLimitPerMinute int               `json:"rate_limit_per_minute"`
	AllowedIPs         []string          `json:"allowed_ips,omitempty"`
	IsActive           bool              `json:"is_active"`
	ExpiresAt          *time.Time        `json:"expires_at,omitempty"`
}

func newCachedKeyRecord(key *model.PartnerKey) cachedKeyRecord {
	return cachedKeyRecord{
		ID:                 key.ID,
		PartnerName:        key.PartnerName,
		KeyID:              key.KeyID,
		SecretHash:         key.SecretHash,
		Environment:        key.Environment,
		CompanyID:          key.CompanyID,
		RateLimitPerMinute: key.RateLimitPerMinute,
		AllowedIPs:         key.AllowedIPs,
		IsActive:           key.IsActive,
		ExpiresAt:          key.ExpiresAt,
	}
}

func (r cachedKeyRecord) toModel() *model.PartnerKey {
	return &model.PartnerKey{
		ID:                 r.ID,
		PartnerName:        r.PartnerName,
		KeyID:              r.KeyID,
		SecretHash:         r.SecretHash,
		Environment:        r.Environment,
		CompanyID:          r.CompanyID,
		RateLimitPerMinute: r.RateLimitPerMinute,
		AllowedIPs:         r.AllowedIPs,
		IsActive:           r.IsActive,
		ExpiresAt:          r.ExpiresAt,
	}
}
