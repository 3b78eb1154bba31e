package httpx

import (
	"net/http"
	"time"

	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/service"
)

// RequestLogHandlers serves the admin request audit search endpoint.
type RequestLogHandlers struct {
	Svc *service.RequestLogService
}

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// Search handles GET /api/admin/request-logs. Filters arrive as query
// params: partner_key_id, method, path_prefix, min_status, since (RFC 3339),
// limit, offset.
func (h *RequestLogHandlers) Search(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultLogLimit, maxLogLimit)
	q := &model.RequestLogQuery{
		PartnerKeyID: r.URL.Query().Get("partner_key_id"),
		Method:       r.URL.Query().Get("method"),
		PathPrefix:   r.URL.Query().Get("path_prefix"),
		MinStatus:    parseIntQuery(r, "min_status", 0),
		Limit:        limit,
		Offset:       offset,
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteEnvelope(w, http.StatusBadRequest, CodeInvalidInput, "since must be an RFC 3339 timestamp")
			return
		}
		q.Since = &since
	}

	entries, err := h.Svc.Search(r.Context(), q)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]model.RequestLogEntry{"entries": entries})
}
