package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/domain/model"
	domainwebhook "github.com/dialcoach/partner-api/internal/domain/webhook"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// WebhookServiceOptions groups dependencies for WebhookService.
type WebhookServiceOptions struct {
	Deliveries core.WebhookDeliveryRepository // Required: delivery repository
	Config     config.WebhookRunnerConfig     // Required: delivery configuration
	Evaluator  JMESPathEvaluator              // Optional: payload transform evaluator
	Logger     *slog.Logger                   // Optional: structured logger
}

// WebhookService owns the delivery side of partner notifications: it validates
// callback URLs, shapes signed event envelopes, and enqueues deliveries for
// the webhook runner. Sending happens in the runner, not here.
type WebhookService struct {
	deliveries core.WebhookDeliveryRepository
	config     config.WebhookRunnerConfig
	evaluator  JMESPathEvaluator
	logger     *slog.Logger
}

// NewWebhookService constructs a new WebhookService.
func NewWebhookService(opts WebhookServiceOptions) (*WebhookService, error) {
	if opts.Deliveries == nil {
		return nil, errors.New("WebhookDeliveryRepository is required")
	}

	evaluator := opts.Evaluator
	if evaluator == nil {
		evaluator = jmespathLibEvaluator{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "webhook_service")
	}

	return &WebhookService{
		deliveries: opts.Deliveries,
		config:     opts.Config,
		evaluator:  evaluator,
		logger:     logger,
	}, nil
}

// MustNewWebhookService constructs a new WebhookService and panics on error.
func MustNewWebhookService(opts WebhookServiceOptions) *WebhookService {
	svc, err := NewWebhookService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create WebhookService: %v", err))
	}
	return svc
}

// ValidateCallback checks a partner-supplied callback URL and optional
// transform expression before a job carrying them is accepted.
func (s *WebhookService) ValidateCallback(rawURL string, transform *string) error {
	if rawURL != "" {
		if err := domainwebhook.ValidateURL(rawURL, s.config.AllowInsecureURLs); err != nil {
			return apperrors.ValidationField("webhook_url", err.Error())
		}
	}
	if transform != nil && *transform != "" {
		if err := s.evaluator.Validate(*transform); err != nil {
			return apperrors.ValidationField("webhook_transform", "invalid transform expression")
		}
	}
	return nil
}

// PublishJobEvent enqueues one delivery announcing a job's terminal state.
// The payload is the partner-facing job view, optionally reshaped by the
// job's transform expression. Each event gets a fresh event id; receivers
// deduplicate on it.
func (s *WebhookService) PublishJobEvent(ctx context.Context, job *model.Job, event model.WebhookEventType) error {
	if job == nil {
		return errors.New("job is required")
	}
	if job.WebhookURL == nil || *job.WebhookURL == "" {
		return errors.New("job has no webhook url")
	}
	if err := domainwebhook.ValidateURL(*job.WebhookURL, s.config.AllowInsecureURLs); err != nil {
		return fmt.Errorf("validate webhook url: %w", err)
	}

	data, err := s.buildEventData(job)
	if err != nil {
		return err
	}

	envelope := model.WebhookEnvelope{
		EventType: event,
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	maxAttempts := s.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domainwebhook.DefaultMaxAttempts
	}

	delivery, err := s.deliveries.Enqueue(ctx, &model.WebhookDelivery{
		JobID:        job.ID,
		PartnerKeyID: job.PartnerKeyID,
		EventType:    event,
		EventID:      envelope.EventID,
		URL:          *job.WebhookURL,
		Payload:      body,
		MaxAttempts:  maxAttempts,
	})
	if err != nil {
		return fmt.Errorf("enqueue delivery: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "webhook delivery enqueued",
			"delivery_id", delivery.ID,
			"job_id", job.ID,
			"event", event,
		)
	}

	return nil
}

// buildEventData renders the job's partner-facing view and applies the job's
// transform expression when one is set. A transform that fails or produces
// nothing falls back to the untransformed view; delivery must not be lost to
// a bad expression.
func (s *WebhookService) buildEventData(job *model.Job) (json.RawMessage, error) {
	view, err := json.Marshal(job.StatusResponse())
	if err != nil {
		return nil, fmt.Errorf("marshal job view: %w", err)
	}

	if job.WebhookTransform == nil || strings.TrimSpace(*job.WebhookTransform) == "" {
		return view, nil
	}

	var doc any
	if err := json.Unmarshal(view, &doc); err != nil {
		return view, nil
	}

	result, err := s.evaluator.Evaluate(*job.WebhookTransform, doc)
	if err != nil || result == nil {
		if s.logger != nil {
			s.logger.Warn("webhook transform failed, sending untransformed payload",
				"job_id", job.ID,
				"error", err,
			)
		}
		return view, nil
	}

	transformed, err := json.Marshal(result)
	if err != nil {
		return view, nil
	}
	return transformed, nil
}

// GetDelivery returns one delivery for the admin surface.
func (s *WebhookService) GetDelivery(ctx context.Context, id string) (*model.WebhookDelivery, error) {
	delivery, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// DeliveryAttempts returns the attempt history for one delivery.
func (s *WebhookService) DeliveryAttempts(ctx context.Context, deliveryID string) ([]model.WebhookAttempt, error) {
	attempts, err := s.deliveries.AttemptsForDelivery(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("delivery attempts: %w", err)
	}
	return attempts, nil
}
