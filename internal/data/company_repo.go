package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/dialcoach/partner-api/internal/errors"
	"github.com/dialcoach/partner-api/internal/domain/model"
)

// Company lookup errors.
var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrAgentNotFound   = errors.New("agent not found")
)

// CompanyRepo provides database operations for companies and their agents.
type CompanyRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewCompanyRepo creates a new CompanyRepo instance.
func NewCompanyRepo(db *sql.DB, tp TimeProvider) *CompanyRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &CompanyRepo{DB: db, timeProvider: tp}
}

const companyColumns = `id, name, industry, contact_email, questionnaire, created_at, updated_at`

func scanCompany(scanner rowScanner) (*model.Company, error) {
	var (
		c             model.Company
		industry      sql.NullString
		contactEmail  sql.NullString
		questionnaire []byte
	)
	if err := scanner.Scan(
		&c.ID,
		&c.Name,
		&industry,
		&contactEmail,
		&questionnaire,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Industry = cloneNullableString(industry)
	c.ContactEmail = cloneNullableString(contactEmail)
	if len(questionnaire) > 0 {
		c.Questionnaire = append(json.RawMessage(nil), questionnaire...)
	}
	return &c, nil
}

// Create persists a new company.
func (r *CompanyRepo) Create(ctx context.Context, req *model.CreateCompanyRequest) (*model.Company, error) {
	if req == nil {
		return nil, errors.New("create company request is required")
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO companies(name, industry, contact_email)
		VALUES ($1,$2,$3)
		RETURNING `+companyColumns,
		req.Name, req.Industry, req.ContactEmail,
	)

	company, err := scanCompany(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return company, nil
}

// GetByID retrieves a company by its ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*model.Company, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+companyColumns+`
		FROM companies
		WHERE id = $1
	`, id)

	company, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return company, nil
}

// UpdateQuestionnaire replaces a company's questionnaire document. Returns
// false when the company does not exist.
func (r *CompanyRepo) UpdateQuestionnaire(ctx context.Context, id string, questionnaire json.RawMessage) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE companies
		SET questionnaire = $2,
		    updated_at = $3
		WHERE id = $1
	`, id, []byte(questionnaire), r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update questionnaire: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("questionnaire rows affected: %w", err)
	}
	return affected > 0, nil
}

const agentColumns = `id, company_id, email, name, role, created_at, updated_at`

func scanAgent(scanner rowScanner) (*model.Agent, error) {
	var a model.Agent
	if err := scanner.Scan(
		&a.ID,
		&a.CompanyID,
		&a.Email,
		&a.Name,
		&a.Role,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAgent persists a new agent under a company.
func (r *CompanyRepo) CreateAgent(ctx context.Context, companyID string, req *model.CreateAgentRequest) (*model.Agent, error) {
	if req == nil {
		return nil, errors.New("create agent request is required")
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO agents(company_id, email, name, role)
		VALUES ($1,$2,$3,$4)
		RETURNING `+agentColumns,
		companyID, req.Email, req.Name, req.Role,
	)

	agent, err := scanAgent(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return agent, nil
}

// GetAgent retrieves an agent scoped to its company.
func (r *CompanyRepo) GetAgent(ctx context.Context, companyID, agentID string) (*model.Agent, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE company_id = $1 AND id = $2
	`, companyID, agentID)

	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return agent, nil
}

// ListAgents returns a company's agents ordered by creation time.
func (r *CompanyRepo) ListAgents(ctx context.Context, companyID string) ([]model.Agent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE company_id = $1
		ORDER BY created_at ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []model.Agent
	for rows.Next() {
		agent, scanErr := scanAgent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan agent: %w", scanErr)
		}
		agents = append(agents, *agent)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return agents, nil
}
