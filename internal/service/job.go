package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/data"
	domainjob "github.com/dialcoach/partner-api/internal/domain/job"
	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/observability/notify"
	"github.com/dialcoach/partner-api/internal/service/failurenotifier"
)

// JobEventPublisher enqueues an outbound notification for a job that reached a
// terminal state. WebhookService implements it; the indirection keeps the job
// queue usable without the delivery pipeline wired.
type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, job *model.Job, event model.WebhookEventType) error
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository        // Required: job repository
	DefaultLease    time.Duration             // Required: default lease duration for jobs
	Logger          *slog.Logger              // Optional: structured logger
	FailureNotifier *failurenotifier.Service  // Optional: failure notification fan-out
	EventPublisher  JobEventPublisher         // Optional: webhook delivery enqueue on terminal states
	LeasePolicy     *domainjob.LeasePolicy    // Optional: override default lease policy
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
}

// JobService provides business logic for job operations including pub/sub notifications.
//
// This service manages:
// - Enqueue with idempotency-key replay
// - Job reservation and lease management
// - Pub/sub notification system for job availability
// - Webhook delivery enqueue when jobs reach terminal states
// - Graceful shutdown of all listeners.
type JobService struct {
	repo            core.JobRepository
	leasePolicy     *domainjob.LeasePolicy
	notifier        domainjob.Notifier
	logger          *slog.Logger
	failureNotifier *failurenotifier.Service
	eventPublisher  JobEventPublisher
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	var leasePolicy *domainjob.LeasePolicy
	switch {
	case opts.LeasePolicy != nil:
		leasePolicy = opts.LeasePolicy
	case opts.DefaultLease > 0:
		var err error
		leasePolicy, err = domainjob.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultLease must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized",
			"default_lease", leasePolicy.Default(),
		)
	}

	return &JobService{
		repo:            opts.Repo,
		leasePolicy:     leasePolicy,
		notifier:        notifier,
		logger:          logger,
		failureNotifier: opts.FailureNotifier,
		eventPublisher:  opts.EventPublisher,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create enqueues a new job for the authenticated partner. When the request
// carries an idempotency key the partner has used before, the stored job is
// returned instead of a duplicate; replayed reports true in that case.
func (s *JobService) Create(
	ctx context.Context,
	partnerKeyID string,
	req *model.CreateJobRequest,
) (job *model.Job, replayed bool, err error) {
	if partnerKeyID == "" {
		return nil, false, errors.New("partner key id is required")
	}
	if req == nil {
		return nil, false, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, lookupErr := s.repo.FindByIdempotencyKey(ctx, partnerKeyID, *req.IdempotencyKey)
		if lookupErr != nil && !errors.Is(lookupErr, data.ErrJobNotFound) {
			return nil, false, fmt.Errorf("idempotency lookup: %w", lookupErr)
		}
		if existing != nil {
			if s.logger != nil {
				s.logger.DebugContext(ctx, "idempotent replay",
					"id", existing.ID,
					"partner_key_id", partnerKeyID,
				)
			}
			return existing, true, nil
		}
	}

	job, err = s.repo.Create(ctx, partnerKeyID, req)
	if err != nil {
		return nil, false, fmt.Errorf("create job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job created",
			"id", job.ID,
			"type", job.Type,
			"status", job.Status,
			"partner_key_id", partnerKeyID,
		)
	}

	return job, false, nil
}

// ReserveNext reserves the next available job of the given type for processing.
func (s *JobService) ReserveNext(
	ctx context.Context,
	jobType model.JobType,
	lease time.Duration,
) (*model.Job, error) {
	decision := s.leasePolicy.Resolve(lease)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second lease duration to 1 second",
			"requested_duration", decision.Requested,
			"job_type", jobType)
	}

	job, err := s.repo.ReserveNext(ctx, jobType, decision.Seconds)
	if err != nil {
		return nil, fmt.Errorf("reserve next job: %w", err)
	}

	if s.logger != nil && job != nil {
		s.logger.DebugContext(ctx, "job reserved",
			"id", job.ID,
			"type", jobType,
			"lease_seconds", decision.Seconds,
		)
	}

	return job, nil
}

// Subscribe creates a subscription for job notifications of the given type.
// Returns an unsubscribe function and a channel that receives notifications.
func (s *JobService) Subscribe(jobType model.JobType) (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe(jobType)
}

// WaitForNotification waits for a notification indicating new jobs are available.
func (s *JobService) WaitForNotification(ctx context.Context, jobType model.JobType) error {
	return s.repo.WaitForNotification(ctx, jobType)
}

// Heartbeat extends the lease on a job to indicate it's still being processed.
func (s *JobService) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	decision := s.leasePolicy.Resolve(extend)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second heartbeat duration to 1 second",
			"requested_duration", decision.Requested,
			"job_id", id)
	}

	updated, err := s.repo.Heartbeat(ctx, id, decision.Seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}

	if s.logger != nil && updated {
		s.logger.DebugContext(ctx, "job heartbeat updated", "id", id, "extend_seconds", decision.Seconds)
	}

	return updated, nil
}

// Complete marks a running job as completed, stores its result, and enqueues
// the job.completed webhook delivery when the job requested one.
func (s *JobService) Complete(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	job, completed, err := s.repo.Complete(ctx, id, result)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}

	if s.logger != nil && completed {
		s.logger.DebugContext(ctx, "job completed", "id", id)
	}

	if completed {
		s.publishTerminalEvent(ctx, job, model.WebhookEventJobCompleted)
	}

	return completed, nil
}

// Fail marks a job attempt as failed with the given error message.
func (s *JobService) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	return s.FailWithDetails(ctx, id, errMsg, JobFailureDetails{})
}

// JobFailureDetails captures optional context for failure notifications.
type JobFailureDetails struct {
	ErrorClass  string
	PartnerName string
	Metadata    map[string]string
	Severity    string
	OccurredAt  time.Time
}

// FailWithDetails records a failed attempt. While retry budget remains the job
// returns to pending; once exhausted it turns terminally failed, the on-call
// notifier fires, and the job.failed webhook delivery is enqueued.
func (s *JobService) FailWithDetails(
	ctx context.Context,
	id, errMsg string,
	details JobFailureDetails,
) (bool, error) {
	if errMsg == "" {
		return false, errors.New("error message required")
	}

	job, failed, err := s.repo.Fail(ctx, id, errMsg)
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", id, err)
	}

	if s.logger != nil && failed {
		s.logger.DebugContext(ctx, "job attempt failed",
			"id", id,
			"error", errMsg,
			"status", jobStatusOrEmpty(job),
		)
	}

	if failed && job != nil && job.Status == model.JobStatusFailed {
		if s.failureNotifier != nil {
			payload := buildJobFailurePayload(job, errMsg, details)
			s.failureNotifier.NotifyJobFailure(ctx, payload)
		}
		s.publishTerminalEvent(ctx, job, model.WebhookEventJobFailed)
	}

	return failed, nil
}

func (s *JobService) publishTerminalEvent(ctx context.Context, job *model.Job, event model.WebhookEventType) {
	if s.eventPublisher == nil || job == nil {
		return
	}
	if job.WebhookURL == nil || *job.WebhookURL == "" {
		return
	}
	if err := s.eventPublisher.PublishJobEvent(ctx, job, event); err != nil && s.logger != nil {
		// Delivery enqueue is best-effort; the partner can still poll the job.
		s.logger.WarnContext(ctx, "enqueue webhook delivery failed",
			"job_id", job.ID,
			"event", event,
			"error", err,
		)
	}
}

func jobStatusOrEmpty(job *model.Job) string {
	if job == nil {
		return ""
	}
	return string(job.Status)
}

func buildJobFailurePayload(job *model.Job, errMsg string, details JobFailureDetails) notify.JobFailurePayload {
	payload := notify.JobFailurePayload{
		JobID:        job.ID,
		JobType:      string(job.Type),
		PartnerKeyID: job.PartnerKeyID,
		PartnerName:  details.PartnerName,
		Error:        errMsg,
		ErrorClass:   details.ErrorClass,
		Severity:     details.Severity,
		OccurredAt:   details.OccurredAt,
		Metadata:     copyMetadata(details.Metadata),
	}
	if job.CompanyID != nil {
		payload.CompanyID = *job.CompanyID
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}

	payload.Metadata = mergeMetadata(payload.Metadata, map[string]string{
		"retry_count": strconv.Itoa(job.RetryCount),
		"max_retries": strconv.Itoa(job.MaxRetries),
		"status":      string(job.Status),
	})
	if payload.ErrorClass != "" {
		payload.Metadata = mergeMetadata(payload.Metadata, map[string]string{
			"error_class": payload.ErrorClass,
		})
	}

	if len(payload.Metadata) == 0 {
		payload.Metadata = nil
	}

	return payload
}

func copyMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		if strings.TrimSpace(k) == "" {
			continue
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		dst[k] = v
	}
	return dst
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	out := copyMetadata(base)
	if out == nil && len(extra) == 0 {
		return nil
	}
	if out == nil {
		out = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	return out
}

// Stats returns statistics about jobs of the given type in different states.
func (s *JobService) Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx, jobType)
	if err != nil {
		return nil, fmt.Errorf("get job stats for type %s: %w", jobType, err)
	}
	return stats, nil
}

// GetStatus returns the partner-facing status view of a job, scoped to the
// partner key that owns it.
func (s *JobService) GetStatus(ctx context.Context, id, partnerKeyID string) (*model.JobStatusResponse, error) {
	job, err := s.repo.GetForPartner(ctx, id, partnerKeyID)
	if err != nil {
		return nil, err
	}

	resp := job.StatusResponse()
	return &resp, nil
}

// GetByID returns a job by its ID. Internal use; does not scope to a partner.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id %s: %w", id, err)
	}
	return job, nil
}

// RequeueExpired returns expired-lease jobs of the given type to pending.
func (s *JobService) RequeueExpired(ctx context.Context, jobType model.JobType) (int64, error) {
	requeued, err := s.repo.RequeueExpired(ctx, jobType)
	if err != nil {
		return 0, fmt.Errorf("requeue expired jobs: %w", err)
	}
	if requeued > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "requeued expired jobs",
			"type", jobType,
			"count", requeued,
		)
	}
	return requeued, nil
}

// StopAllListeners stops all background notification listeners.
// Call this during graceful shutdown.
func (s *JobService) StopAllListeners() {
	if s.notifier != nil {
		s.notifier.StopAll()
	}
}
