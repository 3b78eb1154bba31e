// Package webhookrunner provides the delivery loop that POSTs queued webhook
// events to partner endpoints.
package webhookrunner

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	domainwebhook "github.com/dialcoach/partner-api/internal/domain/webhook"
	"github.com/dialcoach/partner-api/internal/observability/metrics"
	"github.com/dialcoach/partner-api/internal/observability/statsd"
)

const maxResponseBodyBytes = 4 * 1024

// RunnerOptions configures the webhook delivery runner.
type RunnerOptions struct {
	DB         *sql.DB
	Config     config.WebhookRunnerConfig
	Logger     *slog.Logger
	HTTPClient *http.Client

	// Optional dependency injections (useful for tests/decoupling)
	Deliveries core.WebhookDeliveryRepository
	Keys       core.PartnerKeyRepository
	Metrics    statsd.Sink
}

// Runner claims due deliveries in batches and POSTs them to partner endpoints.
// Each payload is signed with the partner's webhook secret; failed attempts
// are rescheduled with exponential backoff until the attempt budget runs out.
type Runner struct {
	deliveries core.WebhookDeliveryRepository
	keys       core.PartnerKeyRepository
	policy     *domainwebhook.RetryPolicy
	http       *http.Client
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
	metrics    statsd.Sink
}

// NewRunner wires repositories and constructs a webhook delivery runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Deliveries == nil {
		return nil, errors.New("either DB or Deliveries must be provided")
	}

	cfg := opts.Config
	cfg.Sanitize()

	deliveries := opts.Deliveries
	if deliveries == nil {
		deliveries = data.NewWebhookRepo(opts.DB, data.WebhookRepoConfig{})
	}
	keys := opts.Keys
	if keys == nil && opts.DB != nil {
		keys = data.NewPartnerKeyRepo(opts.DB, data.PartnerKeyRepoConfig{})
	}

	policy, err := domainwebhook.NewRetryPolicy(cfg.MaxAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	if err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.DeliveryTimeout}
	}

	return &Runner{
		deliveries: deliveries,
		keys:       keys,
		policy:     policy,
		http:       hc,
		logger:     logger,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		metrics:    opts.Metrics,
	}, nil
}

// Run processes due deliveries until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting webhook runner",
		"interval", r.interval,
		"batch_size", r.batchSize,
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.deliverDue(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.logger.ErrorContext(ctx, "deliver due webhooks", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "webhook runner stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// deliverDue claims one batch of due deliveries and attempts each in turn.
// Repeats until a tick claims nothing so a backlog drains faster than one
// batch per interval.
func (r *Runner) deliverDue(ctx context.Context) error {
	for {
		batch, err := r.deliveries.ClaimDue(ctx, r.batchSize)
		if err != nil {
			return fmt.Errorf("claim due deliveries: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		for i := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.attempt(ctx, &batch[i])
		}
	}
}

// attempt performs one delivery attempt and records its outcome. ClaimDue
// already counted this attempt, so AttemptCount is the number of the attempt
// being made now.
func (r *Runner) attempt(ctx context.Context, d *model.WebhookDelivery) {
	attemptNumber := d.AttemptCount
	start := time.Now()

	statusCode, responseBody, sendErr := r.send(ctx, d)
	duration := time.Since(start)

	r.recordAttempt(ctx, d, attemptNumber, statusCode, responseBody, duration, sendErr)

	success := sendErr == nil && statusCode >= 200 && statusCode < 300
	if success {
		if err := r.deliveries.MarkDelivered(ctx, d.ID, statusCode); err != nil {
			r.logger.ErrorContext(ctx, "mark delivered", "delivery_id", d.ID, "error", err)
		}
		r.emit(d, metrics.ResultSuccess, statusCode, attemptNumber, duration, nil)
		return
	}

	var codePtr *int
	if statusCode > 0 {
		codePtr = &statusCode
	}

	nextAt, retry := r.policy.NextAttemptAt(time.Now().UTC(), attemptNumber)
	if !retry {
		if err := r.deliveries.MarkFailed(ctx, d.ID, codePtr); err != nil {
			r.logger.ErrorContext(ctx, "mark failed", "delivery_id", d.ID, "error", err)
		}
		r.logger.WarnContext(ctx, "webhook delivery exhausted",
			"delivery_id", d.ID,
			"event", d.EventType,
			"attempts", attemptNumber,
		)
		r.emit(d, metrics.ResultError, statusCode, attemptNumber, duration, sendErr)
		return
	}

	if err := r.deliveries.Reschedule(ctx, d.ID, codePtr, nextAt); err != nil {
		r.logger.ErrorContext(ctx, "reschedule delivery", "delivery_id", d.ID, "error", err)
	}
	r.emit(d, metrics.ResultError, statusCode, attemptNumber, duration, sendErr)
}

// send POSTs the payload. Returns the response status code (0 when the
// request never completed) and a bounded slice of the response body.
func (r *Runner) send(ctx context.Context, d *model.WebhookDelivery) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-ID", d.EventID)
	req.Header.Set("X-Webhook-Attempt", strconv.Itoa(d.AttemptCount))
	if signature := r.sign(ctx, d); signature != "" {
		req.Header.Set("X-Partner-Signature", signature)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.WarnContext(ctx, "close response body", "delivery_id", d.ID, "error", closeErr)
		}
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, string(body), fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, string(body), nil
}

// sign computes the payload signature with the owning partner's webhook
// secret. A missing secret sends the delivery unsigned rather than dropping it.
func (r *Runner) sign(ctx context.Context, d *model.WebhookDelivery) string {
	if r.keys == nil || d.PartnerKeyID == "" {
		return ""
	}
	key, err := r.keys.GetByID(ctx, d.PartnerKeyID)
	if err != nil {
		r.logger.WarnContext(ctx, "load partner key for signing",
			"delivery_id", d.ID,
			"partner_key_id", d.PartnerKeyID,
			"error", err,
		)
		return ""
	}
	if key.WebhookSecret == "" {
		return ""
	}
	return domainwebhook.Sign(key.WebhookSecret, d.Payload)
}

func (r *Runner) recordAttempt(
	ctx context.Context,
	d *model.WebhookDelivery,
	attemptNumber, statusCode int,
	responseBody string,
	duration time.Duration,
	sendErr error,
) {
	attempt := &model.WebhookAttempt{
		DeliveryID:    d.ID,
		AttemptNumber: attemptNumber,
		DurationMS:    duration.Milliseconds(),
	}
	if statusCode > 0 {
		attempt.StatusCode = &statusCode
	}
	if responseBody != "" {
		attempt.ResponseBody = &responseBody
	}
	if sendErr != nil {
		msg := sendErr.Error()
		attempt.Error = &msg
	}

	if err := r.deliveries.RecordAttempt(ctx, attempt); err != nil {
		r.logger.ErrorContext(ctx, "record attempt", "delivery_id", d.ID, "error", err)
	}
}

func (r *Runner) emit(
	d *model.WebhookDelivery,
	result string,
	statusCode, attempt int,
	duration time.Duration,
	err error,
) {
	metrics.EmitWebhookDelivery(r.metrics, metrics.WebhookMetric{
		EventType:  string(d.EventType),
		Result:     result,
		StatusCode: statusCode,
		Attempt:    attempt,
		Duration:   duration,
		Err:        err,
	})
}
