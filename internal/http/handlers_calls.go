package httpx

import (
	"net/http"

	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/service"
)

// CallHandlers serves the async workload endpoints: call analysis and
// simulation generation. Both return a job id the partner can poll.
type CallHandlers struct {
	Svc *service.CallService
}

// Analyze handles POST /api/partner/v1/calls/analyze.
// Returns 202 with the stored call and job id; a replay of a previously
// seen idempotency key returns 200 with the original job.
func (h *CallHandlers) Analyze(w http.ResponseWriter, r *http.Request) {
	pc, ok := PartnerFromContext(r.Context())
	if !ok {
		WriteEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	var req model.AnalyzeCallRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if !requireCompanyAccess(w, r, req.CompanyID) {
		return
	}
	if pc.IdempotencyKey != "" {
		key := pc.IdempotencyKey
		req.IdempotencyKey = &key
	}

	accepted, err := h.Svc.Analyze(r.Context(), pc.KeyID, &req)
	if err != nil {
		RenderErrorCode(w, err, CodeAgentNotFound)
		return
	}

	status := http.StatusAccepted
	if accepted.Replayed {
		status = http.StatusOK
	}
	WriteJSON(w, status, accepted)
}

// GetCall handles GET /api/partner/v1/calls/{id}.
func (h *CallHandlers) GetCall(w http.ResponseWriter, r *http.Request) {
	call, err := h.Svc.GetCall(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderError(w, err)
		return
	}
	// The restriction check needs the owning company, so it runs after load.
	if !requireCompanyAccess(w, r, call.CompanyID) {
		return
	}
	WriteJSON(w, http.StatusOK, call)
}

// Simulate handles POST /api/partner/v1/simulations.
func (h *CallHandlers) Simulate(w http.ResponseWriter, r *http.Request) {
	pc, ok := PartnerFromContext(r.Context())
	if !ok {
		WriteEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	var req model.SimulationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if !requireCompanyAccess(w, r, req.CompanyID) {
		return
	}
	if pc.IdempotencyKey != "" {
		key := pc.IdempotencyKey
		req.IdempotencyKey = &key
	}

	accepted, err := h.Svc.RequestSimulation(r.Context(), pc.KeyID, &req)
	if err != nil {
		RenderErrorCode(w, err, CodeCompanyNotFound)
		return
	}

	status := http.StatusAccepted
	if accepted.Replayed {
		status = http.StatusOK
	}
	WriteJSON(w, status, accepted)
}
