package httpx

import (
	"net/http"

	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/service"
)

// WebhookDeliveryHandlers serves the admin webhook delivery inspection
// endpoints, used when a partner disputes a missed callback.
type WebhookDeliveryHandlers struct {
	Svc *service.WebhookService
}

// Get handles GET /api/admin/deliveries/{id}.
func (h *WebhookDeliveryHandlers) Get(w http.ResponseWriter, r *http.Request) {
	delivery, err := h.Svc.GetDelivery(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, delivery)
}

// Attempts handles GET /api/admin/deliveries/{id}/attempts.
func (h *WebhookDeliveryHandlers) Attempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.Svc.DeliveryAttempts(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]model.WebhookAttempt{"attempts": attempts})
}
