package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/service"
)

// CompanyHandlers serves the partner-facing company and agent endpoints.
type CompanyHandlers struct {
	Svc *service.CompanyService
}

// requireCompanyAccess enforces the partner's company restriction. A key
// bound to a company may only touch that company. Writes the 403 envelope
// and returns false when access is denied.
func requireCompanyAccess(w http.ResponseWriter, r *http.Request, companyID string) bool {
	pc, ok := PartnerFromContext(r.Context())
	if !ok {
		WriteEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return false
	}
	if !pc.CanAccessCompany(companyID) {
		WriteEnvelope(w, http.StatusForbidden, CodeInsufficientPermissions, "partner key is not authorized for this company")
		return false
	}
	return true
}

// Create handles POST /api/partner/v1/companies. Keys bound to a single
// company cannot provision new ones.
func (h *CompanyHandlers) Create(w http.ResponseWriter, r *http.Request) {
	pc, ok := PartnerFromContext(r.Context())
	if !ok {
		WriteEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}
	if pc.CompanyID != nil && *pc.CompanyID != "" {
		WriteEnvelope(w, http.StatusForbidden, CodeInsufficientPermissions, "partner key is restricted to an existing company")
		return
	}

	var req model.CreateCompanyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	company, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, company)
}

// Get handles GET /api/partner/v1/companies/{id}.
func (h *CompanyHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !requireCompanyAccess(w, r, id) {
		return
	}

	company, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		RenderErrorCode(w, err, CodeCompanyNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, company)
}

// Questionnaire handles GET /api/partner/v1/companies/{id}/questionnaire.
func (h *CompanyHandlers) Questionnaire(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !requireCompanyAccess(w, r, id) {
		return
	}

	q, err := h.Svc.Questionnaire(r.Context(), id)
	if err != nil {
		RenderErrorCode(w, err, CodeCompanyNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]json.RawMessage{"questionnaire": q})
}

// UpdateQuestionnaire handles PUT /api/partner/v1/companies/{id}/questionnaire.
func (h *CompanyHandlers) UpdateQuestionnaire(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !requireCompanyAccess(w, r, id) {
		return
	}

	var req model.UpdateQuestionnaireRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.Svc.UpdateQuestionnaire(r.Context(), id, &req); err != nil {
		RenderErrorCode(w, err, CodeCompanyNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// CreateAgent handles POST /api/partner/v1/companies/{id}/agents.
func (h *CompanyHandlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !requireCompanyAccess(w, r, id) {
		return
	}

	var req model.CreateAgentRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	agent, err := h.Svc.CreateAgent(r.Context(), id, &req)
	if err != nil {
		RenderErrorCode(w, err, CodeCompanyNotFound)
		return
	}
	WriteJSON(w, http.StatusCreated, agent)
}

// ListAgents handles GET /api/partner/v1/companies/{id}/agents.
func (h *CompanyHandlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !requireCompanyAccess(w, r, id) {
		return
	}

	agents, err := h.Svc.ListAgents(r.Context(), id)
	if err != nil {
		RenderErrorCode(w, err, CodeCompanyNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]model.Agent{"agents": agents})
}

// GetAgent handles GET /api/partner/v1/companies/{id}/agents/{agentID}.
func (h *CompanyHandlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !requireCompanyAccess(w, r, id) {
		return
	}

	agent, err := h.Svc.GetAgent(r.Context(), id, r.PathValue("agentID"))
	if err != nil {
		RenderErrorCode(w, err, CodeAgentNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, agent)
}
