package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeJobRunner runs the async job worker pool.
	ServiceModeJobRunner ServiceMode = "job-runner"
	// ServiceModeWebhookRunner runs the webhook delivery runner.
	ServiceModeWebhookRunner ServiceMode = "webhook-runner"
	// ServiceModeReaper runs the cleanup reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeJobRunner,
		ServiceModeWebhookRunner,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP,
			ServiceModeJobRunner,
			ServiceModeWebhookRunner,
			ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, job-runner, webhook-runner, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// JobRunnerConfig contains async job worker configuration.
type JobRunnerConfig struct {
	// Concurrency is the number of worker goroutines per job type.
	Concurrency int `env:"JOB_RUNNER_CONCURRENCY" envDefault:"2"`

	// JobLease is the duration to lease a claimed job.
	JobLease time.Duration `env:"JOB_RUNNER_JOB_LEASE" envDefault:"30s"`

	// HeartbeatInterval is how often a worker extends the lease on a
	// long-running job. Must be comfortably below JobLease.
	HeartbeatInterval time.Duration `env:"JOB_RUNNER_HEARTBEAT_INTERVAL" envDefault:"10s"`
}

// Sanitize applies guardrails to job runner configuration values.
func (j *JobRunnerConfig) Sanitize() {
	if j.Concurrency < 1 {
		j.Concurrency = 1
	}
	if j.JobLease < 5*time.Second {
		j.JobLease = 5 * time.Second
	}
	if j.HeartbeatInterval <= 0 || j.HeartbeatInterval >= j.JobLease {
		j.HeartbeatInterval = j.JobLease / 3
	}
}

// WebhookRunnerConfig contains webhook delivery runner configuration.
type WebhookRunnerConfig struct {
	// Interval is the due-delivery poll interval.
	Interval time.Duration `env:"WEBHOOK_RUNNER_INTERVAL" envDefault:"5s"`

	// BatchSize is the maximum number of deliveries claimed per tick.
	BatchSize int `env:"WEBHOOK_RUNNER_BATCH_SIZE" envDefault:"20"`

	// DeliveryTimeout bounds a single outbound POST.
	DeliveryTimeout time.Duration `env:"WEBHOOK_RUNNER_DELIVERY_TIMEOUT" envDefault:"10s"`

	// MaxAttempts is the delivery attempt budget per webhook.
	MaxAttempts int `env:"WEBHOOK_RUNNER_MAX_ATTEMPTS" envDefault:"5"`

	// RetryBaseDelay is the delay before the second attempt; it doubles
	// per attempt up to RetryMaxDelay.
	RetryBaseDelay time.Duration `env:"WEBHOOK_RUNNER_RETRY_BASE_DELAY" envDefault:"30s"`

	// RetryMaxDelay caps the backoff between attempts.
	RetryMaxDelay time.Duration `env:"WEBHOOK_RUNNER_RETRY_MAX_DELAY" envDefault:"1h"`

	// AllowInsecureURLs permits http and loopback destinations.
	// Only for development and tests.
	AllowInsecureURLs bool `env:"WEBHOOK_RUNNER_ALLOW_INSECURE_URLS" envDefault:"false"`
}

// Sanitize applies guardrails to webhook runner configuration values.
func (w *WebhookRunnerConfig) Sanitize() {
	if w.Interval < time.Second {
		w.Interval = time.Second
	}
	if w.BatchSize < 1 {
		w.BatchSize = 1
	}
	if w.DeliveryTimeout <= 0 {
		w.DeliveryTimeout = 10 * time.Second
	}
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}
	if w.RetryBaseDelay <= 0 {
		w.RetryBaseDelay = 30 * time.Second
	}
	if w.RetryMaxDelay < w.RetryBaseDelay {
		w.RetryMaxDelay = w.RetryBaseDelay
	}
}

// RequestLogConfig contains partner request logging configuration.
type RequestLogConfig struct {
	// BufferSize is the capacity of the in-memory log channel. When the
	// buffer is full, entries are dropped rather than blocking requests.
	BufferSize int `env:"REQUEST_LOG_BUFFER_SIZE" envDefault:"1024"`

	// FlushTimeout bounds draining buffered entries on shutdown.
	FlushTimeout time.Duration `env:"REQUEST_LOG_FLUSH_TIMEOUT" envDefault:"5s"`

	// MaxAge is the retention period for request log rows.
	MaxAge time.Duration `env:"REQUEST_LOG_MAX_AGE" envDefault:"720h"` // 30 days
}

// Sanitize applies guardrails to request log configuration values.
func (r *RequestLogConfig) Sanitize() {
	if r.BufferSize < 1 {
		r.BufferSize = 1
	}
	if r.FlushTimeout <= 0 {
		r.FlushTimeout = 5 * time.Second
	}
	if r.MaxAge < time.Hour {
		r.MaxAge = time.Hour
	}
}

// AIConfig contains configuration for the upstream AI vendor client.
type AIConfig struct {
	// BaseURL is the vendor API endpoint.
	BaseURL string `env:"AI_BASE_URL" envDefault:"https://api.openai.com/v1"`

	// APIKey authenticates requests to the vendor.
	APIKey string `env:"AI_API_KEY"`

	// Model selects the vendor model used for analysis and simulation.
	Model string `env:"AI_MODEL" envDefault:"gpt-4o-mini"`

	// Timeout bounds a single vendor request.
	Timeout time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to AI configuration values.
func (a *AIConfig) Sanitize() {
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if a.Timeout <= 0 {
		a.Timeout = 60 * time.Second
	}
}

// ReaperConfig contains cleanup reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	// Jobs stuck in pending status longer than this will be failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// WebhookAttemptsMaxAge is the retention period for attempt history of
	// terminal webhook deliveries.
	WebhookAttemptsMaxAge time.Duration `env:"REAPER_WEBHOOK_ATTEMPTS_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.WebhookAttemptsMaxAge < 24*time.Hour {
		r.WebhookAttemptsMaxAge = 24 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
