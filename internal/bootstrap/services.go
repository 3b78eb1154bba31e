package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/data/cryptoutil"
	"github.com/dialcoach/partner-api/internal/observability/notify/pagerduty"
	"github.com/dialcoach/partner-api/internal/observability/notify/slack"
	"github.com/dialcoach/partner-api/internal/observability/statsd"
	"github.com/dialcoach/partner-api/internal/service"
	"github.com/dialcoach/partner-api/internal/service/failurenotifier"
	"github.com/redis/go-redis/v9"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Companies     *service.CompanyService
	Calls         *service.CallService
	Jobs          *service.JobService
	Keys          *service.PartnerKeyService
	PartnerAuth   *service.PartnerAuthService
	Webhooks      *service.WebhookService
	RequestLogs   *service.RequestLogService
	Auth          *service.AuthService
	RateLimiter   core.RateLimiter
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB             *sql.DB
	Redis          redis.UniversalClient
	CompanyRepo    *data.CompanyRepo
	CallRepo       *data.CallRepo
	JobRepo        *data.JobRepo
	KeyRepo        *data.PartnerKeyRepo
	WebhookRepo    *data.WebhookRepo
	RequestLogRepo *data.RequestLogRepo
	CacheRepo      *data.RedisCacheRepo
	RateLimitRepo  *data.RedisRateLimitRepo
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "partnerapi",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	failureNotifier := buildFailureNotifier(obsLogger, cfg.Notifications)

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: failureNotifier,
		NotifierConfig:  cfg.Notifications,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
// Partner key credentials (webhook secrets) are encrypted at rest, so the key
// repo always gets the application encryptor.
func buildRepositories(
	db *sql.DB,
	redisClient redis.UniversalClient,
	encryptor cryptoutil.Encryptor,
	logger *slog.Logger,
) *serviceRepositories {
	repos := &serviceRepositories{
		DB:             db,
		Redis:          redisClient,
		CompanyRepo:    data.NewCompanyRepo(db, nil),
		CallRepo:       data.NewCallRepo(db, nil),
		JobRepo:        data.NewJobRepo(db, data.JobRepoConfig{Logger: logger}),
		KeyRepo:        data.NewPartnerKeyRepo(db, data.PartnerKeyRepoConfig{Logger: logger, Encryptor: encryptor}),
		WebhookRepo:    data.NewWebhookRepo(db, data.WebhookRepoConfig{Logger: logger}),
		RequestLogRepo: data.NewRequestLogRepo(db, nil),
	}

	if redisClient != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(redisClient)
		repos.RateLimitRepo = data.NewRedisRateLimitRepo(redisClient, nil)
	}

	return repos
}

// DomainServicesOptions groups inputs for domain service wiring.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) ServiceContainer {
	if opts == nil {
		return ServiceContainer{}
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	webhookService := service.MustNewWebhookService(service.WebhookServiceOptions{
		Deliveries: opts.Repos.WebhookRepo,
		Config:     appCfg.WebhookRunner,
		Logger:     svcLogger,
	})

	jobService := service.MustNewJobService(service.JobServiceOptions{
		Repo:            opts.Repos.JobRepo,
		DefaultLease:    appCfg.JobRunner.JobLease,
		Logger:          svcLogger,
		FailureNotifier: opts.Observability.FailureNotifier,
		EventPublisher:  webhookService,
	})

	companyService := service.MustNewCompanyService(service.CompanyServiceOptions{
		Repo:   opts.Repos.CompanyRepo,
		Cache:  cacheOrNil(opts.Repos.CacheRepo),
		Config: appCfg.Cache,
		Logger: svcLogger,
	})

	callService := service.MustNewCallService(service.CallServiceOptions{
		Calls:     opts.Repos.CallRepo,
		Companies: opts.Repos.CompanyRepo,
		Jobs:      jobService,
		Callbacks: webhookService,
		Logger:    svcLogger,
	})

	partnerAuthService := service.MustNewPartnerAuthService(service.PartnerAuthServiceOptions{
		Keys:   opts.Repos.KeyRepo,
		Cache:  cacheOrNil(opts.Repos.CacheRepo),
		Config: appCfg.PartnerAuth,
		Logger: svcLogger,
	})

	keyService := service.MustNewPartnerKeyService(service.PartnerKeyServiceOptions{
		Repo:        opts.Repos.KeyRepo,
		Config:      appCfg.PartnerAuth,
		Invalidator: partnerAuthService,
		Logger:      svcLogger,
	})

	requestLogService := service.MustNewRequestLogService(service.RequestLogServiceOptions{
		Repo:    opts.Repos.RequestLogRepo,
		Config:  appCfg.RequestLog,
		Logger:  svcLogger,
		Metrics: sinkOrNil(opts.Observability.MetricsSink),
	})

	authService := BuildAuthService(AuthConfig{
		Auth:        appCfg.Auth,
		RedisClient: opts.Repos.Redis,
		Logger:      svcLogger,
	})

	container := ServiceContainer{
		Companies:     companyService,
		Calls:         callService,
		Jobs:          jobService,
		Keys:          keyService,
		PartnerAuth:   partnerAuthService,
		Webhooks:      webhookService,
		RequestLogs:   requestLogService,
		Auth:          authService,
		Observability: opts.Observability,
	}
	if opts.Repos.RateLimitRepo != nil {
		container.RateLimiter = opts.Repos.RateLimitRepo
	}
	return container
}

// cacheOrNil avoids storing a typed-nil repo behind the cache interface.
//
//nolint:ireturn // Interface return keeps the nil check at one call site.
func cacheOrNil(repo *data.RedisCacheRepo) core.CacheRepository {
	if repo == nil {
		return nil
	}
	return repo
}

//nolint:ireturn // Interface return keeps the nil check at one call site.
func sinkOrNil(client *statsd.Client) statsd.Sink {
	if client == nil {
		return nil
	}
	return client
}

func NewServices(deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	encryptionKey := ""
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
		encryptionKey = deps.Config.PartnerAuth.EncryptionKey
	}
	observability := buildObservability(logger, obsCfg)
	encryptor := CreateEncryptor(encryptionKey, logger)
	repos := buildRepositories(deps.DB, deps.RedisClient, encryptor, logger)
	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	encryptor       cryptoutil.Encryptor
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				if deps.logger != nil {
					deps.logger.WarnContext(
						ctx,
						"dropping background service error",
						"service",
						descriptor.name,
						"error",
						errMsg,
					)
				} else {
					slog.Default().WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				}
			}
		}
	}()

	if deps.logger != nil {
		deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	} else {
		slog.Default().InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	}

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newJobRunnerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeJobRunner,
		name: "job runner",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var jobCfg config.JobRunnerConfig
			var aiCfg config.AIConfig
			var webhookCfg config.WebhookRunnerConfig
			if deps.cfg.Config != nil {
				jobCfg = deps.cfg.Config.JobRunner
				aiCfg = deps.cfg.Config.AI
				webhookCfg = deps.cfg.Config.WebhookRunner
			}
			return RunJobRunners(ctx, JobRunnersConfig{
				DB:              deps.cfg.DB,
				Logger:          deps.logger,
				Config:          jobCfg,
				AI:              aiCfg,
				Webhooks:        webhookCfg,
				Metrics:         deps.cfg.Services.Observability.MetricsSink,
				FailureNotifier: deps.cfg.Services.Observability.FailureNotifier,
			})
		},
	}
}

func newWebhookRunnerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeWebhookRunner,
		name: "webhook runner",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var webhookCfg config.WebhookRunnerConfig
			if deps.cfg.Config != nil {
				webhookCfg = deps.cfg.Config.WebhookRunner
			}
			return RunWebhookRunner(ctx, WebhookRunnerConfig{
				DB:        deps.cfg.DB,
				Logger:    deps.logger,
				Config:    webhookCfg,
				Encryptor: deps.encryptor,
				Metrics:   deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			var requestLogMaxAge time.Duration
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
				requestLogMaxAge = deps.cfg.Config.RequestLog.MaxAge
			}
			return RunReaper(ctx, ReaperRunnerConfig{
				DB:               deps.cfg.DB,
				Logger:           deps.logger,
				Config:           reaperCfg,
				RequestLogMaxAge: requestLogMaxAge,
				Metrics:          deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newJobRunnerBackgroundService(deps),
		newWebhookRunnerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	encryptor := CreateEncryptor(cfg.Config.PartnerAuth.EncryptionKey, logger)

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		encryptor:       encryptor,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		requestLogs: cfg.Services.RequestLogs,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeJobRunner,
		config.ServiceModeWebhookRunner,
		config.ServiceModeReaper,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	requestLogs *service.RequestLogService
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		// Create a timeout context for HTTP shutdown
		shutdownCtx, cancel := context.WithTimeout(cfg.ctx, shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context:     shutdownCtx,
			Server:      cfg.httpServer,
			RequestLogs: cfg.requestLogs,
			Logger:      cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
