package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
)

// KeyInvalidator drops a cached credential after an admin mutation so the auth
// gate observes the change before the cache TTL lapses.
type KeyInvalidator interface {
	Invalidate(ctx context.Context, keyID string)
}

// PartnerKeyServiceOptions groups dependencies for PartnerKeyService.
type PartnerKeyServiceOptions struct {
	Repo        core.PartnerKeyRepository // Required: partner key repository
	Config      config.PartnerAuthConfig  // Required: hashing configuration
	Invalidator KeyInvalidator            // Optional: auth gate cache invalidation
	Logger      *slog.Logger              // Optional: structured logger
}

// PartnerKeyService is the admin surface for partner credentials: minting,
// listing, and revocation. Plaintext secrets exist only in the mint response.
type PartnerKeyService struct {
	repo        core.PartnerKeyRepository
	config      config.PartnerAuthConfig
	invalidator KeyInvalidator
	logger      *slog.Logger
}

// NewPartnerKeyService constructs a new PartnerKeyService.
func NewPartnerKeyService(opts PartnerKeyServiceOptions) (*PartnerKeyService, error) {
	if opts.Repo == nil {
		return nil, errors.New("PartnerKeyRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "partner_key_service")
	}

	return &PartnerKeyService{
		repo:        opts.Repo,
		config:      opts.Config,
		invalidator: opts.Invalidator,
		logger:      logger,
	}, nil
}

// MustNewPartnerKeyService constructs a new PartnerKeyService and panics on error.
func MustNewPartnerKeyService(opts PartnerKeyServiceOptions) *PartnerKeyService {
	svc, err := NewPartnerKeyService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create PartnerKeyService: %v", err))
	}
	return svc
}

// Mint creates a new partner credential. The returned MintedKey carries the
// plaintext API secret and webhook secret for the one and only time.
func (s *PartnerKeyService) Mint(ctx context.Context, req *model.MintKeyRequest) (*model.MintedKey, error) {
	if req == nil {
		return nil, apperrors.Validation("mint request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	keyID := uuid.New().String()
	apiSecret, err := randomSecret(32)
	if err != nil {
		return nil, fmt.Errorf("generate api secret: %w", err)
	}
	webhookSecret, err := randomSecret(32)
	if err != nil {
		return nil, fmt.Errorf("generate webhook secret: %w", err)
	}

	cost := s.config.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(apiSecret), cost)
	if err != nil {
		return nil, fmt.Errorf("hash api secret: %w", err)
	}

	rateLimit := req.RateLimitPerMinute
	if rateLimit <= 0 {
		rateLimit = s.config.DefaultRateLimitPerMinute
	}

	created, err := s.repo.Create(ctx, &model.PartnerKey{
		PartnerName:        req.PartnerName,
		KeyID:              keyID,
		SecretHash:         string(hash),
		WebhookSecret:      webhookSecret,
		Environment:        req.Environment,
		CompanyID:          req.CompanyID,
		RateLimitPerMinute: rateLimit,
		AllowedIPs:         req.AllowedIPs,
		IsActive:           true,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create partner key: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "partner key minted",
			"key_id", created.KeyID,
			"partner", created.PartnerName,
			"environment", created.Environment,
		)
	}

	return &model.MintedKey{
		Key:           *created,
		APIKey:        created.Environment.KeyPrefix() + created.KeyID,
		APISecret:     apiSecret,
		WebhookSecret: webhookSecret,
	}, nil
}

// List returns all credentials, newest first.
func (s *PartnerKeyService) List(ctx context.Context) ([]model.PartnerKey, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partner keys: %w", err)
	}
	return keys, nil
}

// Get returns one credential by row id.
func (s *PartnerKeyService) Get(ctx context.Context, id string) (*model.PartnerKey, error) {
	key, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, data.ErrPartnerKeyNotFound) {
		return nil, apperrors.NotFound("Partner key not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get partner key: %w", err)
	}
	return key, nil
}

// Revoke deactivates a credential and evicts it from the auth gate cache.
func (s *PartnerKeyService) Revoke(ctx context.Context, id string) error {
	key, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	revoked, err := s.repo.Revoke(ctx, id)
	if err != nil {
		return fmt.Errorf("revoke partner key: %w", err)
	}
	if !revoked {
		return apperrors.Conflict("Partner key is already revoked")
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, key.KeyID)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "partner key revoked",
			"key_id", key.KeyID,
			"partner", key.PartnerName,
		)
	}

	return nil
}

// randomSecret returns a hex-encoded secret with n bytes of entropy.
func randomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
