package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/adapters/aiclient"
	"github.com/dialcoach/partner-api/internal/adapters/jobrunner"
	"github.com/dialcoach/partner-api/internal/adapters/reaper"
	"github.com/dialcoach/partner-api/internal/adapters/webhookrunner"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/data/cryptoutil"
	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/observability/statsd"
	"github.com/dialcoach/partner-api/internal/service"
	"github.com/dialcoach/partner-api/internal/service/failurenotifier"
)

// JobRunnersConfig contains configuration for the async job worker pools.
type JobRunnersConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	Config          config.JobRunnerConfig
	AI              config.AIConfig
	Webhooks        config.WebhookRunnerConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunJobRunners starts one runner per job type and blocks until the context
// is cancelled or a runner fails. Both runners share the vendor client and
// the webhook event publisher so terminal jobs enqueue partner notifications.
func RunJobRunners(ctx context.Context, cfg JobRunnersConfig) error {
	ai, err := aiclient.New(aiclient.Options{
		Config: cfg.AI,
		Logger: cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create AI client: %w", err)
	}

	publisher, err := buildJobEventPublisher(cfg.DB, cfg.Webhooks, cfg.Logger)
	if err != nil {
		return fmt.Errorf("create webhook publisher: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, jobType := range []model.JobType{model.JobTypeCallAnalysis, model.JobTypeSimulation} {
		runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
			DB:              cfg.DB,
			Logger:          cfg.Logger,
			Config:          cfg.Config,
			JobType:         jobType,
			AI:              ai,
			Metrics:         cfg.Metrics,
			FailureNotifier: cfg.FailureNotifier,
			EventPublisher:  publisher,
		})
		if err != nil {
			return fmt.Errorf("create %s runner: %w", jobType, err)
		}
		group.Go(func() error {
			if runErr := runner.Run(groupCtx); runErr != nil {
				return fmt.Errorf("run %s runner: %w", jobType, runErr)
			}
			return nil
		})
	}

	return group.Wait()
}

// buildJobEventPublisher wires a WebhookService over its own delivery repo so
// the job runner can enqueue partner notifications on terminal states.
func buildJobEventPublisher(
	db *sql.DB,
	cfg config.WebhookRunnerConfig,
	logger *slog.Logger,
) (service.JobEventPublisher, error) {
	if db == nil {
		return nil, nil
	}
	svc, err := service.NewWebhookService(service.WebhookServiceOptions{
		Deliveries: data.NewWebhookRepo(db, data.WebhookRepoConfig{Logger: logger}),
		Config:     cfg,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// WebhookRunnerConfig contains configuration for the webhook delivery runner.
type WebhookRunnerConfig struct {
	DB        *sql.DB
	Logger    *slog.Logger
	Config    config.WebhookRunnerConfig
	Encryptor cryptoutil.Encryptor
	Metrics   statsd.Sink
}

// RunWebhookRunner starts the webhook delivery runner. The partner key repo
// gets the application encryptor so stored webhook secrets can be decrypted
// for payload signing.
func RunWebhookRunner(ctx context.Context, cfg WebhookRunnerConfig) error {
	var keys *data.PartnerKeyRepo
	if cfg.DB != nil {
		keys = data.NewPartnerKeyRepo(cfg.DB, data.PartnerKeyRepoConfig{
			Logger:    cfg.Logger,
			Encryptor: resolveEncryptor(cfg.Encryptor, cfg.Logger),
		})
	}

	runner, err := webhookrunner.NewRunner(webhookrunner.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Keys:    keys,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create webhook runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperRunnerConfig contains configuration for the retention reaper.
type ReaperRunnerConfig struct {
	DB               *sql.DB
	Logger           *slog.Logger
	Config           config.ReaperConfig
	RequestLogMaxAge time.Duration
	Metrics          statsd.Sink
}

// RunReaper starts the cleanup reaper service.
func RunReaper(ctx context.Context, cfg ReaperRunnerConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:               cfg.DB,
		Config:           cfg.Config,
		Logger:           cfg.Logger,
		RequestLogMaxAge: cfg.RequestLogMaxAge,
		Metrics:          cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}

//nolint:ireturn // Returning Encryptor interface is required for runner injection.
func resolveEncryptor(enc cryptoutil.Encryptor, logger *slog.Logger) cryptoutil.Encryptor {
	if enc != nil {
		return enc
	}
	if logger != nil {
		logger.Warn("no encryptor provided; using noop encryptor")
	}
	return &cryptoutil.NoopEncryptor{}
}
