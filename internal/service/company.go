package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
)

// CompanyServiceOptions groups dependencies for CompanyService.
type CompanyServiceOptions struct {
	Repo   core.CompanyRepository // Required: company repository
	Cache  core.CacheRepository   // Optional: questionnaire cache
	Config config.CacheConfig     // Required: cache TTLs
	Logger *slog.Logger           // Optional: structured logger
}

// CompanyService provides business logic for companies and their agents.
// Questionnaires are read far more often than written (every simulation job
// loads one), so reads go through a short-lived cache.
type CompanyService struct {
	repo   core.CompanyRepository
	cache  core.CacheRepository
	config config.CacheConfig
	logger *slog.Logger
}

// NewCompanyService constructs a new CompanyService.
func NewCompanyService(opts CompanyServiceOptions) (*CompanyService, error) {
	if opts.Repo == nil {
		return nil, errors.New("CompanyRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "company_service")
	}

	return &CompanyService{
		repo:   opts.Repo,
		cache:  opts.Cache,
		config: opts.Config,
		logger: logger,
	}, nil
}

// MustNewCompanyService constructs a new CompanyService and panics on error.
func MustNewCompanyService(opts CompanyServiceOptions) *CompanyService {
	svc, err := NewCompanyService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create CompanyService: %v", err))
	}
	return svc
}

// Create provisions a new company.
func (s *CompanyService) Create(ctx context.Context, req *model.CreateCompanyRequest) (*model.Company, error) {
	if req == nil {
		return nil, apperrors.Validation("create company request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	company, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "company created", "id", company.ID, "name", company.Name)
	}

	return company, nil
}

// Get returns one company by id.
func (s *CompanyService) Get(ctx context.Context, id string) (*model.Company, error) {
	company, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, data.ErrCompanyNotFound) {
		return nil, apperrors.NotFound("Company not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return company, nil
}

// Questionnaire returns a company's onboarding questionnaire, served from
// cache within the configured TTL.
func (s *CompanyService) Questionnaire(ctx context.Context, companyID string) (json.RawMessage, error) {
	cacheKey := questionnaireCacheKey(companyID)

	if s.cache != nil && s.config.QuestionnaireTTL > 0 {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil && len(raw) > 0 {
			return json.RawMessage(raw), nil
		}
	}

	company, err := s.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}

	questionnaire := company.Questionnaire
	if len(questionnaire) == 0 {
		questionnaire = json.RawMessage(`{}`)
	}

	if s.cache != nil && s.config.QuestionnaireTTL > 0 {
		if cacheErr := s.cache.Set(ctx, cacheKey, questionnaire, s.config.QuestionnaireTTL); cacheErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "cache questionnaire failed", "company_id", companyID, "error", cacheErr)
		}
	}

	return questionnaire, nil
}

// UpdateQuestionnaire replaces a company's questionnaire and drops the cached copy.
func (s *CompanyService) UpdateQuestionnaire(ctx context.Context, companyID string, req *model.UpdateQuestionnaireRequest) error {
	if req == nil {
		return apperrors.Validation("questionnaire request is required")
	}
	if err := req.Validate(); err != nil {
		return apperrors.Validation(err.Error())
	}

	updated, err := s.repo.UpdateQuestionnaire(ctx, companyID, req.Questionnaire)
	if err != nil {
		return fmt.Errorf("update questionnaire: %w", err)
	}
	if !updated {
		return apperrors.NotFound("Company not found")
	}

	if s.cache != nil {
		if _, delErr := s.cache.Delete(ctx, questionnaireCacheKey(companyID)); delErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "invalidate questionnaire cache failed",
				"company_id", companyID,
				"error", delErr,
			)
		}
	}

	return nil
}

// CreateAgent provisions a new agent under a company.
func (s *CompanyService) CreateAgent(ctx context.Context, companyID string, req *model.CreateAgentRequest) (*model.Agent, error) {
	if req == nil {
		return nil, apperrors.Validation("create agent request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	// Surfaces a clean not-found instead of a foreign key violation.
	if _, err := s.Get(ctx, companyID); err != nil {
		return nil, err
	}

	agent, err := s.repo.CreateAgent(ctx, companyID, req)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "agent created",
			"id", agent.ID,
			"company_id", companyID,
			"role", agent.Role,
		)
	}

	return agent, nil
}

// GetAgent returns one agent scoped to its company.
func (s *CompanyService) GetAgent(ctx context.Context, companyID, agentID string) (*model.Agent, error) {
	agent, err := s.repo.GetAgent(ctx, companyID, agentID)
	if errors.Is(err, data.ErrAgentNotFound) {
		return nil, apperrors.NotFound("Agent not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return agent, nil
}

// ListAgents returns all agents for a company.
func (s *CompanyService) ListAgents(ctx context.Context, companyID string) ([]model.Agent, error) {
	if _, err := s.Get(ctx, companyID); err != nil {
		return nil, err
	}
	agents, err := s.repo.ListAgents(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

func questionnaireCacheKey(companyID string) string {
	return "questionnaire:" + companyID
}
