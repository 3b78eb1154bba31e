package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
)

// CallbackValidator checks a partner-supplied webhook callback before a job
// carrying it is accepted. WebhookService implements it.
type CallbackValidator interface {
	ValidateCallback(rawURL string, transform *string) error
}

// CallServiceOptions groups dependencies for CallService.
type CallServiceOptions struct {
	Calls     core.CallRepository    // Required: call repository
	Companies core.CompanyRepository // Required: agent ownership checks
	Jobs      *JobService            // Required: async job enqueue
	Callbacks CallbackValidator      // Optional: webhook callback validation
	Logger    *slog.Logger           // Optional: structured logger
}

// CallService accepts partner requests for the two async workloads: call
// analysis and simulation generation. Both persist their subject and enqueue
// a job; the work itself happens in the job runner.
type CallService struct {
	calls     core.CallRepository
	companies core.CompanyRepository
	jobs      *JobService
	callbacks CallbackValidator
	logger    *slog.Logger
}

// NewCallService constructs a new CallService.
func NewCallService(opts CallServiceOptions) (*CallService, error) {
	if opts.Calls == nil {
		return nil, errors.New("CallRepository is required")
	}
	if opts.Companies == nil {
		return nil, errors.New("CompanyRepository is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "call_service")
	}

	return &CallService{
		calls:     opts.Calls,
		companies: opts.Companies,
		jobs:      opts.Jobs,
		callbacks: opts.Callbacks,
		logger:    logger,
	}, nil
}

// MustNewCallService constructs a new CallService and panics on error.
func MustNewCallService(opts CallServiceOptions) *CallService {
	svc, err := NewCallService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create CallService: %v", err))
	}
	return svc
}

// callAnalysisPayload is the job payload for call_analysis work.
type callAnalysisPayload struct {
	CallID    string `json:"call_id"`
	CompanyID string `json:"company_id"`
	AgentID   string `json:"agent_id"`
}

// AnalysisAccepted is the response to an accepted analyze-call request.
type AnalysisAccepted struct {
	Call     *model.Call `json:"call"`
	JobID    string      `json:"job_id"`
	Replayed bool        `json:"-"`
}

// Analyze accepts a call recording or transcript for async analysis. It
// persists the call, enqueues a call_analysis job for the partner, and
// returns both so the caller can poll the job or await the webhook.
func (s *CallService) Analyze(ctx context.Context, partnerKeyID string, req *model.AnalyzeCallRequest) (*AnalysisAccepted, error) {
	if req == nil {
		return nil, apperrors.Validation("analyze call request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := s.validateCallback(req.WebhookURL, nil); err != nil {
		return nil, err
	}

	// Agent must exist under the requested company before work is accepted.
	if _, err := s.companies.GetAgent(ctx, req.CompanyID, req.AgentID); err != nil {
		if errors.Is(err, data.ErrAgentNotFound) {
			return nil, apperrors.NotFound("Agent not found")
		}
		return nil, fmt.Errorf("check agent: %w", err)
	}

	call, err := s.calls.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}

	payload, err := json.Marshal(callAnalysisPayload{
		CallID:    call.ID,
		CompanyID: call.CompanyID,
		AgentID:   call.AgentID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	job, replayed, err := s.jobs.Create(ctx, partnerKeyID, &model.CreateJobRequest{
		Type:           model.JobTypeCallAnalysis,
		Payload:        payload,
		CompanyID:      &call.CompanyID,
		WebhookURL:     req.WebhookURL,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue analysis job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "call analysis accepted",
			"call_id", call.ID,
			"job_id", job.ID,
			"replayed", replayed,
		)
	}

	return &AnalysisAccepted{Call: call, JobID: job.ID, Replayed: replayed}, nil
}

// GetCall returns one analyzed or in-flight call.
func (s *CallService) GetCall(ctx context.Context, id string) (*model.Call, error) {
	call, err := s.calls.GetByID(ctx, id)
	if errors.Is(err, data.ErrCallNotFound) {
		return nil, apperrors.NotFound("Call not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return call, nil
}

// SimulationAccepted is the response to an accepted simulation request.
type SimulationAccepted struct {
	JobID    string `json:"job_id"`
	Replayed bool   `json:"-"`
}

// simulationPayload is the job payload for simulation work.
type simulationPayload struct {
	CompanyID string          `json:"company_id"`
	AgentID   *string         `json:"agent_id,omitempty"`
	Scenario  json.RawMessage `json:"scenario,omitempty"`
}

// RequestSimulation enqueues async generation of a practice scenario.
func (s *CallService) RequestSimulation(ctx context.Context, partnerKeyID string, req *model.SimulationRequest) (*SimulationAccepted, error) {
	if req == nil {
		return nil, apperrors.Validation("simulation request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := s.validateCallback(req.WebhookURL, nil); err != nil {
		return nil, err
	}

	if _, err := s.companies.GetByID(ctx, req.CompanyID); err != nil {
		if errors.Is(err, data.ErrCompanyNotFound) {
			return nil, apperrors.NotFound("Company not found")
		}
		return nil, fmt.Errorf("check company: %w", err)
	}

	payload, err := json.Marshal(simulationPayload{
		CompanyID: req.CompanyID,
		AgentID:   req.AgentID,
		Scenario:  req.Scenario,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	job, replayed, err := s.jobs.Create(ctx, partnerKeyID, &model.CreateJobRequest{
		Type:           model.JobTypeSimulation,
		Payload:        payload,
		CompanyID:      &req.CompanyID,
		WebhookURL:     req.WebhookURL,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue simulation job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "simulation accepted",
			"job_id", job.ID,
			"company_id", req.CompanyID,
			"replayed", replayed,
		)
	}

	return &SimulationAccepted{JobID: job.ID, Replayed: replayed}, nil
}

func (s *CallService) validateCallback(rawURL, transform *string) error {
	if s.callbacks == nil || rawURL == nil || *rawURL == "" {
		return nil
	}
	return s.callbacks.ValidateCallback(*rawURL, transform)
}
