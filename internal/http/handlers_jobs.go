package httpx

import (
	"net/http"

	"github.com/dialcoach/partner-api/internal/service"
)

// JobHandlers serves the partner job status endpoint.
type JobHandlers struct {
	Svc *service.JobService
}

// GetStatus handles GET /api/partner/v1/jobs/{id}. The lookup is scoped to
// the calling partner's key so one partner can never read another's jobs.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	pc, ok := PartnerFromContext(r.Context())
	if !ok {
		WriteEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	status, err := h.Svc.GetStatus(r.Context(), r.PathValue("id"), pc.KeyID)
	if err != nil {
		RenderErrorCode(w, err, CodeJobNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
