// Package reaper provides adapters for running the retention reaper.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/observability/statsd"
	"github.com/dialcoach/partner-api/internal/service"
)

// Runner provides a simple adapter to run the reaper loop.
// It constructs the reaper service and runs the cleanup loop.
type Runner struct {
	reaper  *service.ReaperService
	logger  *slog.Logger
	metrics statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// RequestLogMaxAge is the retention period for request log rows.
	RequestLogMaxAge time.Duration

	// Optional dependency injection for testing/decoupling
	Repo        core.ReaperRepository
	Webhooks    core.WebhookDeliveryRepository
	RequestLogs core.RequestLogRepository
	Metrics     statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := wireReaperService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{
		reaper:  reaper,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wireReaperService wires up all dependencies for the reaper service.
func wireReaperService(opts RunnerOptions) (*service.ReaperService, error) {
	repo := opts.Repo
	if repo == nil {
		repo = data.NewJobRepo(opts.DB, data.JobRepoConfig{})
	}

	webhooks := opts.Webhooks
	if webhooks == nil && opts.DB != nil {
		webhooks = data.NewWebhookRepo(opts.DB, data.WebhookRepoConfig{})
	}

	requestLogs := opts.RequestLogs
	if requestLogs == nil && opts.DB != nil {
		requestLogs = data.NewRequestLogRepo(opts.DB, nil)
	}

	// Use NewReaperService instead of Must to allow error propagation
	return service.NewReaperService(service.ReaperServiceOptions{
		Repo:             repo,
		Config:           opts.Config,
		Webhooks:         webhooks,
		RequestLogs:      requestLogs,
		RequestLogMaxAge: opts.RequestLogMaxAge,
		Logger:           opts.Logger,
		Metrics:          opts.Metrics,
	})
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
