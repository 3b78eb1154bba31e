// Package mocks provides mock implementations for testing the partner API.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, FindByIdempotencyKey, GetByID, GetForPartner, ReserveNext,
// WaitForNotification, Heartbeat, Complete, Fail, Stats, RequeueExpired
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/dialcoach/partner-api/internal/core JobRepository

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// FailStalePendingJobs, DeleteOldJobs
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/dialcoach/partner-api/internal/core ReaperRepository

// Generate mock for PartnerKeyRepository interface from internal/core package.
// This creates MockPartnerKeyRepository with methods for all PartnerKeyRepository interface methods:
// Create, GetByKeyID, GetByID, List, Revoke, TouchLastUsed
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=partner_key_repository_mock.go github.com/dialcoach/partner-api/internal/core PartnerKeyRepository

// Generate mock for WebhookDeliveryRepository interface from internal/core package.
// This creates MockWebhookDeliveryRepository with methods for all WebhookDeliveryRepository interface methods:
// Enqueue, ClaimDue, MarkDelivered, Reschedule, MarkFailed, RecordAttempt,
// GetByID, AttemptsForDelivery, PurgeOldAttempts
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=webhook_delivery_repository_mock.go github.com/dialcoach/partner-api/internal/core WebhookDeliveryRepository

// Generate mock for RequestLogRepository interface from internal/core package.
// This creates MockRequestLogRepository with methods for all RequestLogRepository interface methods:
// Insert, RecentForKey, Search, PurgeOlderThan
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=request_log_repository_mock.go github.com/dialcoach/partner-api/internal/core RequestLogRepository

// Generate mock for CompanyRepository interface from internal/core package.
// This creates MockCompanyRepository with methods for all CompanyRepository interface methods:
// Create, GetByID, UpdateQuestionnaire, CreateAgent, GetAgent, ListAgents
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=company_repository_mock.go github.com/dialcoach/partner-api/internal/core CompanyRepository

// Generate mock for CallRepository interface from internal/core package.
// This creates MockCallRepository with methods for all CallRepository interface methods:
// Create, GetByID, MarkAnalyzing, StoreAnalysis, MarkFailed
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=call_repository_mock.go github.com/dialcoach/partner-api/internal/core CallRepository

// Generate mock for RateLimiter interface from internal/core package.
// This creates MockRateLimiter with methods for all RateLimiter interface methods:
// Allow
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=rate_limiter_mock.go github.com/dialcoach/partner-api/internal/core RateLimiter
