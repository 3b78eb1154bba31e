package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dialcoach/partner-api/internal/data/cryptoutil"
	"github.com/dialcoach/partner-api/internal/domain/model"
)

// ErrPartnerKeyNotFound is returned when no partner key matches the lookup.
var ErrPartnerKeyNotFound = errors.New("partner key not found")

// PartnerKeyRepo provides database operations for partner credentials. Webhook
// signing secrets are encrypted at rest; API secrets are stored only as bcrypt
// hashes and never need decryption.
type PartnerKeyRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	encryptor    cryptoutil.Encryptor
	logger       *slog.Logger
}

// PartnerKeyRepoConfig holds configuration options for the partner key repository.
type PartnerKeyRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
	Encryptor    cryptoutil.Encryptor
}

// NewPartnerKeyRepo creates a new PartnerKeyRepo instance.
func NewPartnerKeyRepo(db *sql.DB, cfg PartnerKeyRepoConfig) *PartnerKeyRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	enc := cfg.Encryptor
	if enc == nil {
		enc = cryptoutil.NoopEncryptor{}
	}
	return &PartnerKeyRepo{
		DB:           db,
		timeProvider: tp,
		encryptor:    enc,
		logger:       cfg.Logger,
	}
}

const partnerKeyColumns = `
  id,
  partner_name,
  key_id,
  secret_hash,
  webhook_secret,
  environment,
  company_id,
  rate_limit_per_minute,
  allowed_ips,
  is_active,
  expires_at,
  last_used_at,
  created_at,
  updated_at
`

func scanPartnerKey(scanner rowScanner) (*model.PartnerKey, error) {
	var (
		key        model.PartnerKey
		companyID  sql.NullString
		allowedIPs []byte
		expiresAt  sql.NullTime
		lastUsedAt sql.NullTime
	)
	if err := scanner.Scan(
		&key.ID,
		&key.PartnerName,
		&key.KeyID,
		&key.SecretHash,
		&key.WebhookSecret,
		&key.Environment,
		&companyID,
		&key.RateLimitPerMinute,
		&allowedIPs,
		&key.IsActive,
		&expiresAt,
		&lastUsedAt,
		&key.CreatedAt,
		&key.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(allowedIPs) > 0 {
		if err := json.Unmarshal(allowedIPs, &key.AllowedIPs); err != nil {
			return nil, fmt.Errorf("decode allowed_ips: %w", err)
		}
	}
	key.CompanyID = cloneNullableString(companyID)
	key.ExpiresAt = cloneNullableTime(expiresAt)
	key.LastUsedAt = cloneNullableTime(lastUsedAt)
	return &key, nil
}

func (r *PartnerKeyRepo) openWebhookSecret(key *model.PartnerKey) error {
	plaintext, err := r.encryptor.Decrypt(key.WebhookSecret)
	if err != nil {
		return fmt.Errorf("decrypt webhook secret: %w", err)
	}
	key.WebhookSecret = string(plaintext)
	return nil
}

// Create persists a new partner key row.
func (r *PartnerKeyRepo) Create(ctx context.Context, key *model.PartnerKey) (*model.PartnerKey, error) {
	if key == nil {
		return nil, errors.New("partner key is required")
	}

	sealedSecret, err := r.encryptor.Encrypt([]byte(key.WebhookSecret))
	if err != nil {
		return nil, fmt.Errorf("encrypt webhook secret: %w", err)
	}

	var allowedIPs []byte
	if len(key.AllowedIPs) > 0 {
		allowedIPs, err = json.Marshal(key.AllowedIPs)
		if err != nil {
			return nil, fmt.Errorf("encode allowed_ips: %w", err)
		}
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO partner_api_keys(partner_name, key_id, secret_hash, webhook_secret, environment, company_id, rate_limit_per_minute, allowed_ips, is_active, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+partnerKeyColumns,
		key.PartnerName,
		key.KeyID,
		key.SecretHash,
		sealedSecret,
		key.Environment,
		key.CompanyID,
		key.RateLimitPerMinute,
		allowedIPs,
		key.IsActive,
		key.ExpiresAt,
	)

	created, err := scanPartnerKey(row)
	if err != nil {
		return nil, fmt.Errorf("insert partner key: %w", err)
	}
	if err := r.openWebhookSecret(created); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByKeyID looks up a credential by its public key identifier.
func (r *PartnerKeyRepo) GetByKeyID(ctx context.Context, keyID string) (*model.PartnerKey, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+partnerKeyColumns+`
		FROM partner_api_keys
		WHERE key_id = $1
	`, keyID)

	key, err := scanPartnerKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPartnerKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get partner key: %w", err)
	}
	if err := r.openWebhookSecret(key); err != nil {
		return nil, err
	}
	return key, nil
}

// GetByID looks up a credential by its row id.
func (r *PartnerKeyRepo) GetByID(ctx context.Context, id string) (*model.PartnerKey, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+partnerKeyColumns+`
		FROM partner_api_keys
		WHERE id = $1
	`, id)

	key, err := scanPartnerKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPartnerKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get partner key: %w", err)
	}
	if err := r.openWebhookSecret(key); err != nil {
		return nil, err
	}
	return key, nil
}

// List returns all partner keys, newest first.
func (r *PartnerKeyRepo) List(ctx context.Context) ([]model.PartnerKey, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+partnerKeyColumns+`
		FROM partner_api_keys
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list partner keys: %w", err)
	}
	defer rows.Close()

	var keys []model.PartnerKey
	for rows.Next() {
		key, scanErr := scanPartnerKey(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan partner key: %w", scanErr)
		}
		if err := r.openWebhookSecret(key); err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return keys, nil
}

// Revoke deactivates a key. Returns false when the key does not exist or was
// already inactive.
func (r *PartnerKeyRepo) Revoke(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE partner_api_keys
		SET is_active = FALSE,
		    updated_at = $2
		WHERE id = $1 AND is_active
	`, id, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("revoke partner key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke rows affected: %w", err)
	}
	return affected > 0, nil
}

// TouchLastUsed records credential use. Failures are logged and swallowed;
// auth must not depend on this bookkeeping write.
func (r *PartnerKeyRepo) TouchLastUsed(ctx context.Context, id string) {
	if _, err := r.DB.ExecContext(ctx, `
		UPDATE partner_api_keys
		SET last_used_at = $2
		WHERE id = $1
	`, id, r.timeProvider.Now().UTC()); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "touch partner key last_used_at failed",
			"key_id", id,
			"error", err,
		)
	}
}
