package model

import (
	"encoding/json"
	"time"
)

// DeliveryStatus represents the lifecycle of an outbound webhook delivery.
type DeliveryStatus string

const (
	// DeliveryStatusPending indicates the delivery is waiting for its next attempt.
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusDelivered indicates the receiver acknowledged the delivery with a 2xx.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusFailed indicates every attempt was exhausted without a 2xx.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// Valid returns true if the DeliveryStatus is valid.
func (s DeliveryStatus) Valid() bool {
	return s == DeliveryStatusPending || s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

// WebhookEventType names the job transition a delivery announces.
type WebhookEventType string

const (
	// WebhookEventJobCompleted is emitted when a job reaches completed.
	WebhookEventJobCompleted WebhookEventType = "job.completed"
	// WebhookEventJobFailed is emitted when a job reaches failed.
	WebhookEventJobFailed WebhookEventType = "job.failed"
)

// WebhookDelivery is one logical notification to a partner endpoint. Attempts
// against it are recorded separately in WebhookAttempt rows.
type WebhookDelivery struct {
	ID             string           `json:"id"                         db:"id"`
	JobID          string           `json:"job_id"                     db:"job_id"`
	PartnerKeyID   string           `json:"partner_key_id"             db:"partner_key_id"`
	EventType      WebhookEventType `json:"event_type"                 db:"event_type"`
	EventID        string           `json:"event_id"                   db:"event_id"`
	URL            string           `json:"url"                        db:"url"`
	Payload        json.RawMessage  `json:"payload"                    db:"payload"`
	Status         DeliveryStatus   `json:"status"                     db:"status"`
	AttemptCount   int              `json:"attempt_count"              db:"attempt_count"`
	MaxAttempts    int              `json:"max_attempts"               db:"max_attempts"`
	LastStatusCode *int             `json:"last_status_code,omitempty" db:"last_status_code"`
	NextAttemptAt  *time.Time       `json:"next_attempt_at,omitempty"  db:"next_attempt_at"`
	CreatedAt      time.Time        `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"                 db:"updated_at"`
}

// Exhausted reports whether the delivery has used up its attempt budget.
func (d *WebhookDelivery) Exhausted() bool {
	return d.AttemptCount >= d.MaxAttempts
}

// WebhookAttempt records one HTTP attempt against a delivery, success or not.
type WebhookAttempt struct {
	ID            string    `json:"id"                      db:"id"`
	DeliveryID    string    `json:"delivery_id"             db:"delivery_id"`
	AttemptNumber int       `json:"attempt_number"          db:"attempt_number"`
	StatusCode    *int      `json:"status_code,omitempty"   db:"status_code"`
	ResponseBody  *string   `json:"response_body,omitempty" db:"response_body"`
	DurationMS    int64     `json:"duration_ms"             db:"duration_ms"`
	Error         *string   `json:"error,omitempty"         db:"error"`
	CreatedAt     time.Time `json:"created_at"              db:"created_at"`
}

// WebhookEnvelope is the wire shape POSTed to partner endpoints. Receivers
// deduplicate on EventID since deliveries are at-least-once.
type WebhookEnvelope struct {
	EventType WebhookEventType `json:"event_type"`
	EventID   string           `json:"event_id"`
	Timestamp time.Time        `json:"timestamp"`
	Data      json.RawMessage  `json:"data"`
}
