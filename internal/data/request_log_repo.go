package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dialcoach/partner-api/internal/data/database"
	"github.com/dialcoach/partner-api/internal/domain/model"
)

// RequestLogRepo persists observed inbound partner requests.
type RequestLogRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewRequestLogRepo creates a new RequestLogRepo instance.
func NewRequestLogRepo(db *sql.DB, tp TimeProvider) *RequestLogRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &RequestLogRepo{DB: db, timeProvider: tp}
}

// Insert writes one request log row.
func (r *RequestLogRepo) Insert(ctx context.Context, entry *model.RequestLogEntry) error {
	if entry == nil {
		return errors.New("request log entry is required")
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO partner_request_logs(partner_key_id, method, path, status, duration_ms, ip, user_agent, idempotency_key, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		entry.PartnerKeyID,
		entry.Method,
		entry.Path,
		entry.Status,
		entry.DurationMS,
		entry.IP,
		entry.UserAgent,
		entry.IdempotencyKey,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// RecentForKey returns the newest request log rows for a partner key.
func (r *RequestLogRepo) RecentForKey(ctx context.Context, partnerKeyID string, limit int) ([]model.RequestLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, partner_key_id, method, path, status, duration_ms, ip, user_agent, idempotency_key, created_at
		FROM partner_request_logs
		WHERE partner_key_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, partnerKeyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	defer rows.Close()

	return collectRequestLogs(rows)
}

// Search runs the admin request-log listing with optional filters. Newest rows
// first.
func (r *RequestLogRepo) Search(ctx context.Context, q *model.RequestLogQuery) ([]model.RequestLogEntry, error) {
	if q == nil {
		q = &model.RequestLogQuery{}
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	opts := []database.ListQueryOption{
		database.WithColumns(requestLogColumns...),
		database.WithOrderBy("created_at", "DESC"),
		database.WithLimit(limit),
	}
	if q.Offset > 0 {
		opts = append(opts, database.WithOffset(q.Offset))
	}
	if q.PartnerKeyID != "" {
		opts = append(opts, database.WithCondition(database.WhereCond("partner_key_id", database.Equal, q.PartnerKeyID)))
	}
	if q.Method != "" {
		opts = append(opts, database.WithCondition(database.WhereCond("method", database.Equal, strings.ToUpper(q.Method))))
	}
	if q.PathPrefix != "" {
		opts = append(opts, database.WithCondition(database.WhereCond("path", database.Like, q.PathPrefix+"%")))
	}
	if q.MinStatus > 0 {
		opts = append(opts, database.WithCondition(database.WhereCond("status", database.GreaterThanOrEqual, q.MinStatus)))
	}
	if q.Since != nil {
		opts = append(opts, database.WithCondition(database.WhereCond("created_at", database.GreaterThanOrEqual, q.Since.UTC())))
	}

	query, args := database.BuildListQuery(database.NewListQueryOptions("partner_request_logs", opts...))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search request logs: %w", err)
	}
	defer rows.Close()

	return collectRequestLogs(rows)
}

var requestLogColumns = []string{
	"id", "partner_key_id", "method", "path", "status",
	"duration_ms", "ip", "user_agent", "idempotency_key", "created_at",
}

func collectRequestLogs(rows *sql.Rows) ([]model.RequestLogEntry, error) {
	var entries []model.RequestLogEntry
	for rows.Next() {
		var (
			e              model.RequestLogEntry
			keyID          sql.NullString
			idempotencyKey sql.NullString
		)
		if scanErr := rows.Scan(
			&e.ID,
			&keyID,
			&e.Method,
			&e.Path,
			&e.Status,
			&e.DurationMS,
			&e.IP,
			&e.UserAgent,
			&idempotencyKey,
			&e.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan request log: %w", scanErr)
		}
		e.PartnerKeyID = cloneNullableString(keyID)
		e.IdempotencyKey = cloneNullableString(idempotencyKey)
		entries = append(entries, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return entries, nil
}

// PurgeOlderThan deletes request log rows older than the cutoff and returns the
// number removed.
func (r *RequestLogRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM partner_request_logs
		WHERE created_at < $1
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge request logs: %w", err)
	}
	return res.RowsAffected()
}
