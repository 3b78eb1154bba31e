package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dialcoach/partner-api/internal/domain/model"
)

// ErrDeliveryNotFound is returned when no webhook delivery matches the lookup.
var ErrDeliveryNotFound = errors.New("webhook delivery not found")

// WebhookRepo provides database operations for webhook deliveries and their
// attempt history.
type WebhookRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// WebhookRepoConfig holds configuration options for the webhook repository.
type WebhookRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// NewWebhookRepo creates a new WebhookRepo instance.
func NewWebhookRepo(db *sql.DB, cfg WebhookRepoConfig) *WebhookRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &WebhookRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const deliveryColumns = `
  id,
  job_id,
  partner_key_id,
  event_type,
  event_id,
  url,
  payload,
  status,
  attempt_count,
  max_attempts,
  last_status_code,
  next_attempt_at,
  created_at,
  updated_at
`

func scanDelivery(scanner rowScanner) (*model.WebhookDelivery, error) {
	var (
		d              model.WebhookDelivery
		payload        []byte
		lastStatusCode sql.NullInt32
		nextAttemptAt  sql.NullTime
	)
	if err := scanner.Scan(
		&d.ID,
		&d.JobID,
		&d.PartnerKeyID,
		&d.EventType,
		&d.EventID,
		&d.URL,
		&payload,
		&d.Status,
		&d.AttemptCount,
		&d.MaxAttempts,
		&lastStatusCode,
		&nextAttemptAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Payload = cloneJSON(payload)
	d.LastStatusCode = cloneNullableInt(lastStatusCode)
	d.NextAttemptAt = cloneNullableTime(nextAttemptAt)
	return &d, nil
}

// Enqueue persists a new pending delivery, due immediately.
func (r *WebhookRepo) Enqueue(ctx context.Context, d *model.WebhookDelivery) (*model.WebhookDelivery, error) {
	if d == nil {
		return nil, errors.New("delivery is required")
	}

	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal delivery payload: %w", err)
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO webhook_deliveries(job_id, partner_key_id, event_type, event_id, url, payload, status, max_attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',$7,$8)
		RETURNING `+deliveryColumns,
		d.JobID,
		d.PartnerKeyID,
		d.EventType,
		d.EventID,
		d.URL,
		payload,
		d.MaxAttempts,
		now,
	)

	created, err := scanDelivery(row)
	if err != nil {
		return nil, fmt.Errorf("insert delivery: %w", err)
	}
	return created, nil
}

// ClaimDue atomically claims up to limit pending deliveries whose next attempt
// is due, bumping attempt_count so two runners never send the same attempt.
func (r *WebhookRepo) ClaimDue(ctx context.Context, limit int) ([]model.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 10
	}

	now := r.timeProvider.Now().UTC()
	rows, err := r.DB.QueryContext(ctx, `
		WITH cte AS (
		  SELECT id FROM webhook_deliveries
		  WHERE status = 'pending'
		    AND next_attempt_at IS NOT NULL
		    AND next_attempt_at <= $1
		  ORDER BY next_attempt_at ASC
		  LIMIT $2
		  FOR UPDATE SKIP LOCKED
		)
		UPDATE webhook_deliveries d
		SET attempt_count = d.attempt_count + 1,
		    next_attempt_at = NULL,
		    updated_at = $1
		FROM cte
		WHERE d.id = cte.id
		RETURNING d.id, d.job_id, d.partner_key_id, d.event_type, d.event_id, d.url, d.payload, d.status, d.attempt_count, d.max_attempts, d.last_status_code, d.next_attempt_at, d.created_at, d.updated_at
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []model.WebhookDelivery
	for rows.Next() {
		d, scanErr := scanDelivery(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan delivery: %w", scanErr)
		}
		deliveries = append(deliveries, *d)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return deliveries, nil
}

// MarkDelivered finalises a delivery after a 2xx response.
func (r *WebhookRepo) MarkDelivered(ctx context.Context, id string, statusCode int) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET status = 'delivered',
		    last_status_code = $2,
		    next_attempt_at = NULL,
		    updated_at = $3
		WHERE id = $1
	`, id, statusCode, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// Reschedule records a failed attempt's status and sets the next attempt time.
func (r *WebhookRepo) Reschedule(ctx context.Context, id string, statusCode *int, nextAttemptAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET last_status_code = $2,
		    next_attempt_at = $3,
		    updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`, id, statusCode, nextAttemptAt.UTC(), r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("reschedule delivery: %w", err)
	}
	return nil
}

// MarkFailed finalises a delivery whose attempt budget is exhausted.
func (r *WebhookRepo) MarkFailed(ctx context.Context, id string, statusCode *int) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET status = 'failed',
		    last_status_code = $2,
		    next_attempt_at = NULL,
		    updated_at = $3
		WHERE id = $1
	`, id, statusCode, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// RecordAttempt appends one attempt row to the delivery's history.
func (r *WebhookRepo) RecordAttempt(ctx context.Context, a *model.WebhookAttempt) error {
	if a == nil {
		return errors.New("attempt is required")
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO webhook_attempts(delivery_id, attempt_number, status_code, response_body, duration_ms, error)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, a.DeliveryID, a.AttemptNumber, a.StatusCode, a.ResponseBody, a.DurationMS, a.Error)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// GetByID retrieves a delivery by its ID.
func (r *WebhookRepo) GetByID(ctx context.Context, id string) (*model.WebhookDelivery, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE id = $1
	`, id)

	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

// AttemptsForDelivery returns a delivery's attempt history, oldest first.
func (r *WebhookRepo) AttemptsForDelivery(ctx context.Context, deliveryID string) ([]model.WebhookAttempt, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, delivery_id, attempt_number, status_code, response_body, duration_ms, error, created_at
		FROM webhook_attempts
		WHERE delivery_id = $1
		ORDER BY attempt_number ASC
	`, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.WebhookAttempt
	for rows.Next() {
		var (
			a            model.WebhookAttempt
			statusCode   sql.NullInt32
			responseBody sql.NullString
			attemptErr   sql.NullString
		)
		if scanErr := rows.Scan(
			&a.ID,
			&a.DeliveryID,
			&a.AttemptNumber,
			&statusCode,
			&responseBody,
			&a.DurationMS,
			&attemptErr,
			&a.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan attempt: %w", scanErr)
		}
		a.StatusCode = cloneNullableInt(statusCode)
		a.ResponseBody = cloneNullableString(responseBody)
		a.Error = cloneNullableString(attemptErr)
		attempts = append(attempts, a)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return attempts, nil
}

// PurgeOldAttempts deletes attempt rows for terminal deliveries older than the
// cutoff and returns the number removed.
func (r *WebhookRepo) PurgeOldAttempts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM webhook_attempts a
		USING webhook_deliveries d
		WHERE a.delivery_id = d.id
		  AND d.status IN ('delivered', 'failed')
		  AND a.created_at < $1
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge webhook attempts: %w", err)
	}
	return res.RowsAffected()
}
