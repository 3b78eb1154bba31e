// Package testutil provides testing utilities and helpers for the partner API.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/dialcoach/partner-api/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Type:       model.JobTypeCallAnalysis,
			Payload:    json.RawMessage(`{"recording_url": "https://recordings.example.com/call-1.mp3"}`),
			MaxRetries: 3,
		},
	}
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithPayload sets the job payload.
func (b *JobRequestBuilder) WithPayload(payload json.RawMessage) *JobRequestBuilder {
	b.req.Payload = payload
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *JobRequestBuilder) WithPayloadString(payload string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithCompanyID scopes the job to a company.
func (b *JobRequestBuilder) WithCompanyID(companyID string) *JobRequestBuilder {
	b.req.CompanyID = &companyID
	return b
}

// WithWebhook sets the callback URL for terminal-state notifications.
func (b *JobRequestBuilder) WithWebhook(url string) *JobRequestBuilder {
	b.req.WebhookURL = &url
	return b
}

// WithWebhookTransform sets the JMESPath payload transform for the callback.
func (b *JobRequestBuilder) WithWebhookTransform(expr string) *JobRequestBuilder {
	b.req.WebhookTransform = &expr
	return b
}

// WithIdempotencyKey sets the idempotency key.
func (b *JobRequestBuilder) WithIdempotencyKey(key string) *JobRequestBuilder {
	b.req.IdempotencyKey = &key
	return b
}

// WithScheduledAt sets the scheduled time.
func (b *JobRequestBuilder) WithScheduledAt(scheduledAt time.Time) *JobRequestBuilder {
	b.req.ScheduledAt = &scheduledAt
	return b
}

// WithMaxRetries sets the maximum number of retries.
func (b *JobRequestBuilder) WithMaxRetries(maxRetries int) *JobRequestBuilder {
	b.req.MaxRetries = maxRetries
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// Common test job request presets

// CallAnalysisJobRequest creates a call analysis job request with default values.
func CallAnalysisJobRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeCallAnalysis).
		WithPayloadString(`{"recording_url": "https://recordings.example.com/call-1.mp3", "agent_email": "agent@example.com"}`).
		Build()
}

// SimulationJobRequest creates a simulation job request with default values.
func SimulationJobRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeSimulation).
		WithPayloadString(`{"scenario": "cold_call", "difficulty": "medium"}`).
		Build()
}

// ScheduledJobRequest creates a job request scheduled for the future.
func ScheduledJobRequest(scheduledAt time.Time) *model.CreateJobRequest {
	return NewJobRequest().
		WithScheduledAt(scheduledAt).
		WithPayloadString(`{"recording_url": "https://recordings.example.com/scheduled.mp3"}`).
		Build()
}

// RetryableJobRequest creates a job request with custom retry settings.
func RetryableJobRequest(maxRetries int) *model.CreateJobRequest {
	return NewJobRequest().
		WithMaxRetries(maxRetries).
		WithPayloadString(`{"recording_url": "https://recordings.example.com/retryable.mp3"}`).
		Build()
}
