// Package jobrunner provides the worker pool that executes async partner jobs.
package jobrunner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/adapters/aiclient"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	obserrors "github.com/dialcoach/partner-api/internal/observability/errors"
	"github.com/dialcoach/partner-api/internal/observability/metrics"
	"github.com/dialcoach/partner-api/internal/observability/statsd"
	"github.com/dialcoach/partner-api/internal/service"
	"github.com/dialcoach/partner-api/internal/service/failurenotifier"
)

// HandlerFunc processes a job and returns the result payload to store on
// completion. An error fails the job, which will be retried per policy.
type HandlerFunc func(ctx context.Context, job *model.Job) (json.RawMessage, error)

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Config carries concurrency, lease, and heartbeat settings.
	Config config.JobRunnerConfig

	// JobType selects which job type this runner processes. Required.
	JobType model.JobType

	// AI is the vendor client used by the built-in handlers. Required
	// unless custom handlers are registered.
	AI *aiclient.Client

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo        core.JobRepository
	CallsRepo       core.CallRepository
	CompaniesRepo   core.CompanyRepository
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
	EventPublisher  service.JobEventPublisher
}

// Runner pulls jobs of one type and executes them using registered handlers.
// Long-running work is kept alive by a heartbeat goroutine that extends the
// lease until the handler returns.
type Runner struct {
	jobs      *service.JobService
	calls     core.CallRepository
	companies core.CompanyRepository
	ai        *aiclient.Client
	logger    *slog.Logger
	lease     time.Duration
	heartbeat time.Duration
	jobType   model.JobType
	workers   int
	handlers  map[model.JobType]HandlerFunc
	metrics   statsd.Sink
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner wires repositories/services and constructs a job runner for a single job type.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.JobsRepo == nil {
		return nil, errors.New("either DB or JobsRepo must be provided")
	}
	if !opts.JobType.Valid() {
		return nil, fmt.Errorf("invalid job type: %q", opts.JobType)
	}

	logger := resolveLogger(opts.Logger)

	cfg := opts.Config
	cfg.Sanitize()

	jobsRepo := opts.JobsRepo
	if jobsRepo == nil {
		jobsRepo = data.NewJobRepo(opts.DB, data.JobRepoConfig{})
	}
	callsRepo := opts.CallsRepo
	if callsRepo == nil && opts.DB != nil {
		callsRepo = data.NewCallRepo(opts.DB, nil)
	}
	companiesRepo := opts.CompaniesRepo
	if companiesRepo == nil && opts.DB != nil {
		companiesRepo = data.NewCompanyRepo(opts.DB, nil)
	}

	jobSvc := service.MustNewJobService(service.JobServiceOptions{
		Repo:            jobsRepo,
		DefaultLease:    cfg.JobLease,
		Logger:          logger,
		FailureNotifier: opts.FailureNotifier,
		EventPublisher:  opts.EventPublisher,
	})

	r := &Runner{
		jobs:      jobSvc,
		calls:     callsRepo,
		companies: companiesRepo,
		ai:        opts.AI,
		logger:    logger,
		lease:     cfg.JobLease,
		heartbeat: cfg.HeartbeatInterval,
		jobType:   opts.JobType,
		workers:   cfg.Concurrency,
		handlers:  make(map[model.JobType]HandlerFunc),
		metrics:   opts.Metrics,
	}

	switch opts.JobType {
	case model.JobTypeCallAnalysis:
		if r.ai == nil || r.calls == nil {
			return nil, errors.New("call analysis requires AI client and call repository")
		}
		r.handlers[model.JobTypeCallAnalysis] = r.handleCallAnalysis
	case model.JobTypeSimulation:
		if r.ai == nil || r.companies == nil {
			return nil, errors.New("simulation requires AI client and company repository")
		}
		r.handlers[model.JobTypeSimulation] = r.handleSimulation
	}

	return r, nil
}

// Register installs or replaces the handler for a job type.
func (r *Runner) Register(jt model.JobType, h HandlerFunc) {
	r.handlers[jt] = h
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner",
		"type", r.jobType,
		"workers", r.workers,
		"lease", r.lease,
		"heartbeat", r.heartbeat,
	)

	// Derive a cancellable context that we can signal on first fatal error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe for notifications for the job type we process
	unsub, ch := r.jobs.Subscribe(r.jobType)
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.jobType, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			JobType:    string(job.Type),
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}

	h, ok := r.handlers[job.Type]
	if !ok {
		err := fmt.Errorf("no handler for job type %s", job.Type)
		r.fail(ctx, job.ID, err)
		emit("failed", metrics.ResultError, err)
		return
	}

	stopHeartbeat := r.startHeartbeat(ctx, job.ID)
	result, err := h(ctx, job)
	stopHeartbeat()

	if err != nil {
		r.fail(ctx, job.ID, err)
		emit("failed", metrics.ResultError, err)
		return
	}

	if completed, cerr := r.jobs.Complete(ctx, job.ID, result); cerr != nil {
		r.logger.ErrorContext(ctx, "complete job error", "job_id", job.ID, "error", cerr)
		emit("completed", metrics.ResultError, cerr)
	} else {
		outcome := metrics.ResultNoop
		if completed {
			outcome = metrics.ResultSuccess
		}
		emit("completed", outcome, nil)
	}
}

// startHeartbeat extends the job lease on an interval until the returned stop
// function is called. A lost lease (job requeued or reassigned) only logs;
// the terminal transition will report the conflict.
func (r *Runner) startHeartbeat(ctx context.Context, jobID string) func() {
	if r.heartbeat <= 0 {
		return func() {}
	}

	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				alive, err := r.jobs.Heartbeat(hbCtx, jobID, r.lease)
				if err != nil {
					r.logger.WarnContext(hbCtx, "heartbeat failed", "job_id", jobID, "error", err)
					continue
				}
				if !alive {
					r.logger.WarnContext(hbCtx, "lease lost", "job_id", jobID)
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) fail(ctx context.Context, id string, jobErr error) {
	if _, err := r.jobs.FailWithDetails(ctx, id, jobErr.Error(), service.JobFailureDetails{
		ErrorClass: obserrors.Classify(jobErr),
		Metadata: map[string]string{
			"component": r.componentLabel(),
		},
	}); err != nil {
		r.logger.ErrorContext(ctx, "fail job error", "job_id", id, "error", err, "original_error", jobErr)
	}
}

func (r *Runner) componentLabel() string {
	switch r.jobType {
	case model.JobTypeCallAnalysis:
		return "analysis_runner"
	case model.JobTypeSimulation:
		return "simulation_runner"
	default:
		return "job_runner"
	}
}
