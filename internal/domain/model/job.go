// Package model defines the core data types and structures used throughout the partner API.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of async work a partner can enqueue.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeCallAnalysis represents transcription and scoring of a recorded sales call.
	JobTypeCallAnalysis JobType = "call_analysis"
	// JobTypeSimulation represents generation of a practice simulation scenario.
	JobTypeSimulation JobType = "simulation"

	// JobStatusPending indicates a job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job has failed to complete.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeCallAnalysis || t == JobTypeSimulation
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal returns true once a job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents an async unit of partner work with all its metadata and status information.
type Job struct {
	ID               string          `json:"id"                          db:"id"`
	Type             JobType         `json:"type"                        db:"type"`
	Status           JobStatus       `json:"status"                      db:"status"`
	PartnerKeyID     string          `json:"partner_key_id"              db:"partner_key_id"`
	CompanyID        *string         `json:"company_id,omitempty"        db:"company_id"`
	Payload          json.RawMessage `json:"payload"                     db:"payload"`
	Result           json.RawMessage `json:"result,omitempty"            db:"result"`
	WebhookURL       *string         `json:"webhook_url,omitempty"       db:"webhook_url"`
	WebhookTransform *string         `json:"webhook_transform,omitempty" db:"webhook_transform"`
	IdempotencyKey   *string         `json:"idempotency_key,omitempty"   db:"idempotency_key"`
	ScheduledAt      time.Time       `json:"scheduled_at"                db:"scheduled_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"        db:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"      db:"completed_at"`
	RetryCount       int             `json:"retry_count"                 db:"retry_count"`
	MaxRetries       int             `json:"max_retries"                 db:"max_retries"`
	LastError        *string         `json:"last_error,omitempty"        db:"last_error"`
	LeaseExpiresAt   *time.Time      `json:"lease_expires_at,omitempty"  db:"lease_expires_at"`
	CreatedAt        time.Time       `json:"created_at"                  db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"                  db:"updated_at"`
}

// CreateJobRequest represents a request to enqueue a new job.
type CreateJobRequest struct {
	Type             JobType         `json:"type"`
	Payload          json.RawMessage `json:"payload"`
	CompanyID        *string         `json:"company_id,omitempty"`
	WebhookURL       *string         `json:"webhook_url,omitempty"`
	WebhookTransform *string         `json:"webhook_transform,omitempty"`
	IdempotencyKey   *string         `json:"idempotency_key,omitempty"`
	ScheduledAt      *time.Time      `json:"scheduled_at,omitempty"`
	MaxRetries       int             `json:"max_retries"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	if r.CompanyID != nil && *r.CompanyID != "" {
		if _, err := uuid.Parse(*r.CompanyID); err != nil {
			return errors.New("company id must be a valid UUID")
		}
	}
	if r.IdempotencyKey != nil && len(*r.IdempotencyKey) > 255 {
		return errors.New("idempotency key must be at most 255 characters")
	}
	if r.WebhookTransform != nil && *r.WebhookTransform != "" &&
		(r.WebhookURL == nil || *r.WebhookURL == "") {
		return errors.New("webhook transform requires a webhook url")
	}
	return nil
}

// JobStats represents counts of jobs in different states.
type JobStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// JobStatusResponse represents the status information returned to a polling partner.
type JobStatusResponse struct {
	ID          string          `json:"job_id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	LastError   *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// StatusResponse builds the partner-facing view of a job.
func (j *Job) StatusResponse() JobStatusResponse {
	return JobStatusResponse{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		Result:      j.Result,
		LastError:   j.LastError,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}
