package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/dialcoach/partner-api/internal/errors"
	"github.com/dialcoach/partner-api/internal/domain/model"
)

// ErrCallNotFound is returned when no call matches the lookup.
var ErrCallNotFound = errors.New("call not found")

// CallRepo provides database operations for submitted calls.
type CallRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewCallRepo creates a new CallRepo instance.
func NewCallRepo(db *sql.DB, tp TimeProvider) *CallRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &CallRepo{DB: db, timeProvider: tp}
}

const callColumns = `id, company_id, agent_id, call_type, audio_url, transcript, analysis, score, status, created_at, updated_at`

func scanCall(scanner rowScanner) (*model.Call, error) {
	var (
		c          model.Call
		audioURL   sql.NullString
		transcript sql.NullString
		analysis   []byte
		score      sql.NullFloat64
	)
	if err := scanner.Scan(
		&c.ID,
		&c.CompanyID,
		&c.AgentID,
		&c.CallType,
		&audioURL,
		&transcript,
		&analysis,
		&score,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.AudioURL = cloneNullableString(audioURL)
	c.Transcript = cloneNullableString(transcript)
	if len(analysis) > 0 {
		c.Analysis = append(json.RawMessage(nil), analysis...)
	}
	if score.Valid {
		v := score.Float64
		c.Score = &v
	}
	return &c, nil
}

// Create persists a new call in pending state.
func (r *CallRepo) Create(ctx context.Context, req *model.AnalyzeCallRequest) (*model.Call, error) {
	if req == nil {
		return nil, errors.New("analyze call request is required")
	}

	callType := req.CallType
	if callType == "" {
		callType = "sales_call"
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO calls(company_id, agent_id, call_type, audio_url, transcript, status)
		VALUES ($1,$2,$3,$4,$5,'pending')
		RETURNING `+callColumns,
		req.CompanyID, req.AgentID, callType, req.AudioURL, req.Transcript,
	)

	call, err := scanCall(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return call, nil
}

// GetByID retrieves a call by its ID.
func (r *CallRepo) GetByID(ctx context.Context, id string) (*model.Call, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE id = $1
	`, id)

	call, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return call, nil
}

// MarkAnalyzing moves a pending call into analysis.
func (r *CallRepo) MarkAnalyzing(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE calls
		SET status = 'analyzing',
		    updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark call analyzing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// StoreAnalysis records the transcript, analysis document and score, and marks
// the call analyzed.
func (r *CallRepo) StoreAnalysis(ctx context.Context, id string, transcript *string, analysis json.RawMessage, score *float64) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE calls
		SET transcript = COALESCE($2, transcript),
		    analysis = $3,
		    score = $4,
		    status = 'analyzed',
		    updated_at = $5
		WHERE id = $1
	`, id, transcript, []byte(analysis), score, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("store call analysis: %w", err)
	}
	return nil
}

// MarkFailed records a terminal analysis failure.
func (r *CallRepo) MarkFailed(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE calls
		SET status = 'failed',
		    updated_at = $2
		WHERE id = $1
	`, id, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark call failed: %w", err)
	}
	return nil
}
