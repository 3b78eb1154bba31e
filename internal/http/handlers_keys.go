package httpx

import (
	"net/http"

	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/service"
)

// PartnerKeyHandlers serves the admin credential management endpoints.
type PartnerKeyHandlers struct {
	Svc *service.PartnerKeyService
}

// Mint handles POST /api/admin/keys. The response carries the plaintext
// secret and webhook secret exactly once; only hashes are stored.
func (h *PartnerKeyHandlers) Mint(w http.ResponseWriter, r *http.Request) {
	var req model.MintKeyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	minted, err := h.Svc.Mint(r.Context(), &req)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, minted)
}

// List handles GET /api/admin/keys.
func (h *PartnerKeyHandlers) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Svc.List(r.Context())
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]model.PartnerKey{"keys": keys})
}

// Get handles GET /api/admin/keys/{id}.
func (h *PartnerKeyHandlers) Get(w http.ResponseWriter, r *http.Request) {
	key, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, key)
}

// Revoke handles DELETE /api/admin/keys/{id}. Revocation is permanent;
// revoking an already revoked key returns 409.
func (h *PartnerKeyHandlers) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Revoke(r.Context(), r.PathValue("id")); err != nil {
		RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
