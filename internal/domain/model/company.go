package model

import (
	"encoding/json"
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Company is a customer organization whose agents are trained on the platform.
type Company struct {
	ID            string          `json:"id"                      db:"id"`
	Name          string          `json:"name"                    db:"name"`
	Industry      *string         `json:"industry,omitempty"      db:"industry"`
	ContactEmail  *string         `json:"contact_email,omitempty" db:"contact_email"`
	Questionnaire json.RawMessage `json:"questionnaire,omitempty" db:"questionnaire"`
	CreatedAt     time.Time       `json:"created_at"              db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"              db:"updated_at"`
}

// CreateCompanyRequest describes a new company to provision.
type CreateCompanyRequest struct {
	Name         string  `json:"name"`
	Industry     *string `json:"industry,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
}

// Validate validates the CreateCompanyRequest fields.
func (r *CreateCompanyRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if len(r.Name) > 255 {
		return errors.New("name must be at most 255 characters")
	}
	if r.ContactEmail != nil && *r.ContactEmail != "" {
		if _, err := mail.ParseAddress(*r.ContactEmail); err != nil {
			return errors.New("contact email is invalid")
		}
	}
	return nil
}

// AgentRole distinguishes reps from managers.
type AgentRole string

const (
	// AgentRoleAgent is a sales rep who takes training.
	AgentRoleAgent AgentRole = "agent"
	// AgentRoleManager can review team results.
	AgentRoleManager AgentRole = "manager"
)

// Valid returns true if the AgentRole is valid.
func (r AgentRole) Valid() bool {
	return r == AgentRoleAgent || r == AgentRoleManager
}

// Agent is a trainee or manager within a company.
type Agent struct {
	ID        string    `json:"id"         db:"id"`
	CompanyID string    `json:"company_id" db:"company_id"`
	Email     string    `json:"email"      db:"email"`
	Name      string    `json:"name"       db:"name"`
	Role      AgentRole `json:"role"       db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateAgentRequest describes a new agent to provision under a company.
type CreateAgentRequest struct {
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  AgentRole `json:"role,omitempty"`
}

// Validate validates the CreateAgentRequest fields and applies the default role.
func (r *CreateAgentRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("email is invalid")
	}
	if r.Role == "" {
		r.Role = AgentRoleAgent
	}
	if !r.Role.Valid() {
		return errors.New("role must be agent or manager")
	}
	return nil
}

// UpdateQuestionnaireRequest replaces a company's onboarding questionnaire.
type UpdateQuestionnaireRequest struct {
	Questionnaire json.RawMessage `json:"questionnaire"`
}

// Validate validates the UpdateQuestionnaireRequest fields.
func (r *UpdateQuestionnaireRequest) Validate() error {
	if len(r.Questionnaire) == 0 {
		return errors.New("questionnaire is required")
	}
	if !json.Valid(r.Questionnaire) {
		return errors.New("questionnaire must be valid JSON")
	}
	return nil
}
