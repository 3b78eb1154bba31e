package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dialcoach/partner-api/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	Create(ctx context.Context, partnerKeyID string, req *model.CreateJobRequest) (*model.Job, error)
	FindByIdempotencyKey(ctx context.Context, partnerKeyID, idempotencyKey string) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	GetForPartner(ctx context.Context, id, partnerKeyID string) (*model.Job, error)
	ReserveNext(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, jobType model.JobType) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string, result json.RawMessage) (*model.Job, bool, error)
	Fail(ctx context.Context, id, errMsg string) (*model.Job, bool, error)
	Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
	RequeueExpired(ctx context.Context, jobType model.JobType) (int64, error)
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count low.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// FailStalePendingJobs marks pending jobs older than maxAge as failed.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs marked as failed.
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes jobs with the given status older than maxAge.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}

// PartnerKeyRepository defines the interface for partner API key data operations.
type PartnerKeyRepository interface {
	Create(ctx context.Context, key *model.PartnerKey) (*model.PartnerKey, error)
	GetByKeyID(ctx context.Context, keyID string) (*model.PartnerKey, error)
	GetByID(ctx context.Context, id string) (*model.PartnerKey, error)
	List(ctx context.Context) ([]model.PartnerKey, error)
	Revoke(ctx context.Context, id string) (bool, error)
	TouchLastUsed(ctx context.Context, id string)
}

// WebhookDeliveryRepository defines the interface for webhook delivery data operations.
type WebhookDeliveryRepository interface {
	Enqueue(ctx context.Context, d *model.WebhookDelivery) (*model.WebhookDelivery, error)
	ClaimDue(ctx context.Context, limit int) ([]model.WebhookDelivery, error)
	MarkDelivered(ctx context.Context, id string, statusCode int) error
	Reschedule(ctx context.Context, id string, statusCode *int, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, id string, statusCode *int) error
	RecordAttempt(ctx context.Context, a *model.WebhookAttempt) error
	GetByID(ctx context.Context, id string) (*model.WebhookDelivery, error)
	AttemptsForDelivery(ctx context.Context, deliveryID string) ([]model.WebhookAttempt, error)
	PurgeOldAttempts(ctx context.Context, cutoff time.Time) (int64, error)
}

// RequestLogRepository defines the interface for partner request log data operations.
type RequestLogRepository interface {
	Insert(ctx context.Context, entry *model.RequestLogEntry) error
	RecentForKey(ctx context.Context, partnerKeyID string, limit int) ([]model.RequestLogEntry, error)
	Search(ctx context.Context, q *model.RequestLogQuery) ([]model.RequestLogEntry, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CompanyRepository defines the interface for company and agent data operations.
type CompanyRepository interface {
	Create(ctx context.Context, req *model.CreateCompanyRequest) (*model.Company, error)
	GetByID(ctx context.Context, id string) (*model.Company, error)
	UpdateQuestionnaire(ctx context.Context, id string, questionnaire json.RawMessage) (bool, error)
	CreateAgent(ctx context.Context, companyID string, req *model.CreateAgentRequest) (*model.Agent, error)
	GetAgent(ctx context.Context, companyID, agentID string) (*model.Agent, error)
	ListAgents(ctx context.Context, companyID string) ([]model.Agent, error)
}

// CallRepository defines the interface for call data operations.
type CallRepository interface {
	Create(ctx context.Context, req *model.AnalyzeCallRequest) (*model.Call, error)
	GetByID(ctx context.Context, id string) (*model.Call, error)
	MarkAnalyzing(ctx context.Context, id string) (bool, error)
	StoreAnalysis(ctx context.Context, id string, transcript *string, analysis json.RawMessage, score *float64) error
	MarkFailed(ctx context.Context, id string) error
}

// RateLimiter defines the interface for per-key request quota checks.
type RateLimiter interface {
	Allow(ctx context.Context, keyID string, limit int) (*model.RateLimitResult, error)
}
