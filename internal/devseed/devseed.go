package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB        *sql.DB
	companies *service.CompanyService
	keys      *service.PartnerKeyService
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	companyService := service.MustNewCompanyService(service.CompanyServiceOptions{
		Repo: data.NewCompanyRepo(db, nil),
	})

	keyService := service.MustNewPartnerKeyService(service.PartnerKeyServiceOptions{
		Repo: data.NewPartnerKeyRepo(db, data.PartnerKeyRepoConfig{}),
		Config: config.PartnerAuthConfig{
			DefaultRateLimitPerMinute: 60,
		},
	})

	return Services{
		DB:        db,
		companies: companyService,
		keys:      keyService,
	}
}

// Run executes the full development seeding workflow against the provided DB.
// Seeding is idempotent per entity name so repeated runs do not pile up rows.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0

	companyIDs := make(map[string]string, len(seedCompanies()))
	for _, spec := range seedCompanies() {
		id, err := seedCompany(ctx, svcs, spec, logger)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed company", "name", spec.Company.Name, "error", err)
			}
			failures++
			continue
		}
		companyIDs[spec.Company.Name] = id
	}

	failures += seedPartnerKeys(ctx, svcs, companyIDs, logger)

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

// companySpec describes one seeded company with its agents and questionnaire.
type companySpec struct {
	Company       model.CreateCompanyRequest
	Questionnaire json.RawMessage
	Agents        []model.CreateAgentRequest
}

func seedCompanies() []companySpec {
	return []companySpec{
		{
			Company: model.CreateCompanyRequest{
				Name:         "Acme Outbound",
				Industry:     strPtr("saas"),
				ContactEmail: strPtr("sales-ops@acme-outbound.test"),
			},
			Questionnaire: json.RawMessage(`{
				"tone": "consultative",
				"product": "workflow automation platform",
				"objections": ["price", "migration effort"],
				"target_persona": "operations manager"
			}`),
			Agents: []model.CreateAgentRequest{
				{Email: "jordan@acme-outbound.test", Name: "Jordan Reyes", Role: model.AgentRoleAgent},
				{Email: "sam@acme-outbound.test", Name: "Sam Whitfield", Role: model.AgentRoleManager},
			},
		},
		{
			Company: model.CreateCompanyRequest{
				Name:         "Northwind Insurance",
				Industry:     strPtr("insurance"),
				ContactEmail: strPtr("training@northwind.test"),
			},
			Questionnaire: json.RawMessage(`{
				"tone": "empathetic",
				"product": "term life policies",
				"objections": ["already covered", "too expensive"],
				"target_persona": "new parents"
			}`),
			Agents: []model.CreateAgentRequest{
				{Email: "casey@northwind.test", Name: "Casey Lindqvist", Role: model.AgentRoleAgent},
			},
		},
	}
}

// seedCompany creates a company with its questionnaire and agents, skipping
// creation when a company with the same name already exists.
func seedCompany(ctx context.Context, svcs Services, spec companySpec, logger *slog.Logger) (string, error) {
	existingID, err := findCompanyByName(ctx, svcs.DB, spec.Company.Name)
	if err != nil {
		return "", fmt.Errorf("lookup company: %w", err)
	}
	if existingID != "" {
		if logger != nil {
			logger.InfoContext(ctx, "company already exists", "name", spec.Company.Name, "id", existingID)
		}
		return existingID, nil
	}

	req := spec.Company
	company, err := svcs.companies.Create(ctx, &req)
	if err != nil {
		return "", fmt.Errorf("create company: %w", err)
	}

	if len(spec.Questionnaire) > 0 {
		updateErr := svcs.companies.UpdateQuestionnaire(ctx, company.ID, &model.UpdateQuestionnaireRequest{
			Questionnaire: spec.Questionnaire,
		})
		if updateErr != nil {
			return "", fmt.Errorf("set questionnaire: %w", updateErr)
		}
	}

	for _, agent := range spec.Agents {
		agentReq := agent
		if _, agentErr := svcs.companies.CreateAgent(ctx, company.ID, &agentReq); agentErr != nil {
			return "", fmt.Errorf("create agent %s: %w", agent.Email, agentErr)
		}
	}

	if logger != nil {
		logger.InfoContext(ctx, "created company", "name", company.Name, "id", company.ID, "agents", len(spec.Agents))
	}
	return company.ID, nil
}

// seedPartnerKeys mints one unrestricted test key plus one company-bound key.
// Plaintext credentials are logged; this only ever runs against dev databases.
func seedPartnerKeys(ctx context.Context, svcs Services, companyIDs map[string]string, logger *slog.Logger) int {
	existing, err := svcs.keys.List(ctx)
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to list partner keys", "error", err)
		}
		return 1
	}
	byPartner := make(map[string]bool, len(existing))
	for _, k := range existing {
		byPartner[k.PartnerName] = true
	}

	requests := []model.MintKeyRequest{
		{
			PartnerName: "Dev Sandbox",
			Environment: model.EnvironmentTest,
		},
	}
	if acmeID, ok := companyIDs["Acme Outbound"]; ok {
		requests = append(requests, model.MintKeyRequest{
			PartnerName: "Acme CRM Integration",
			Environment: model.EnvironmentTest,
			CompanyID:   &acmeID,
		})
	}

	failures := 0
	for _, req := range requests {
		if byPartner[req.PartnerName] {
			if logger != nil {
				logger.InfoContext(ctx, "partner key already exists", "partner", req.PartnerName)
			}
			continue
		}
		mintReq := req
		minted, mintErr := svcs.keys.Mint(ctx, &mintReq)
		if mintErr != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to mint partner key", "partner", req.PartnerName, "error", mintErr)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "minted partner key",
				"partner", minted.Key.PartnerName,
				"api_key", minted.APIKey,
				"api_secret", minted.APISecret,
				"webhook_secret", minted.WebhookSecret,
			)
		}
	}

	return failures
}

func findCompanyByName(ctx context.Context, db *sql.DB, name string) (string, error) {
	var id string
	err := db.QueryRowContext(ctx, `SELECT id FROM companies WHERE name = $1 LIMIT 1`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func strPtr(s string) *string {
	return &s
}
