package httpx

import (
	"log/slog"
	"net/http"

	"github.com/dialcoach/partner-api/internal/core"
	domainauth "github.com/dialcoach/partner-api/internal/domain/auth"
	"github.com/dialcoach/partner-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	PartnerAuth PartnerAuthenticator    // Required: partner credential gate
	RateLimiter core.RateLimiter        // Optional: per-key rate limiting
	RequestLogs RequestRecorder         // Optional: partner request audit trail
	Companies   *service.CompanyService // Required
	Calls       *service.CallService    // Required
	Jobs        *service.JobService     // Required
	Keys        *service.PartnerKeyService
	Webhooks    *service.WebhookService
	Logs        *service.RequestLogService
	Auth         AuthServiceInterface // Optional: admin OIDC session login
	CookieDomain string

	// PartnerAPIEnabled is the kill switch for the partner surface.
	PartnerAPIEnabled bool

	CompressionEnabled bool
	CompressionLevel   int

	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router: the partner surface under
// /api/partner/v1 behind the auth gate and request logger, and the admin
// surface under /api/admin behind the OIDC session role check.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	registerPartnerRoutes(mux, services)
	registerAdminRoutes(mux, services)

	if services.Auth != nil {
		authHandlers := &AuthHandlers{Svc: services.Auth, CookieDomain: services.CookieDomain, Logger: logger}
		registerAuthRoutes(mux, authHandlers)
	}

	var handler http.Handler = mux
	if services.CompressionEnabled {
		handler = Compression(CompressionConfig{Level: services.CompressionLevel, Logger: logger})(handler)
	}
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

// registerPartnerRoutes wires the partner-facing surface. Every route shares
// one middleware chain: request logging outermost (so rejected requests are
// still logged, with a null key id), then the auth gate.
func registerPartnerRoutes(mux *http.ServeMux, services RouterServices) {
	companyHandlers := &CompanyHandlers{Svc: services.Companies}
	callHandlers := &CallHandlers{Svc: services.Calls}
	jobHandlers := &JobHandlers{Svc: services.Jobs}

	gate := PartnerGate(PartnerGateConfig{
		Auth:    services.PartnerAuth,
		Limiter: services.RateLimiter,
		Enabled: services.PartnerAPIEnabled,
		Logger:  services.Logger,
	})
	wrap := func(h http.HandlerFunc) http.Handler {
		var handler http.Handler = gate(h)
		if services.RequestLogs != nil {
			handler = RequestLogging(services.RequestLogs)(handler)
		}
		return handler
	}

	const base = "/api/partner/v1"
	mux.Handle("GET "+base+"/health", http.HandlerFunc(healthHandler))

	mux.Handle("POST "+base+"/companies", wrap(companyHandlers.Create))
	mux.Handle("GET "+base+"/companies/{id}", wrap(companyHandlers.Get))
	mux.Handle("GET "+base+"/companies/{id}/questionnaire", wrap(companyHandlers.Questionnaire))
	mux.Handle("PUT "+base+"/companies/{id}/questionnaire", wrap(companyHandlers.UpdateQuestionnaire))
	mux.Handle("POST "+base+"/companies/{id}/agents", wrap(companyHandlers.CreateAgent))
	mux.Handle("GET "+base+"/companies/{id}/agents", wrap(companyHandlers.ListAgents))
	mux.Handle("GET "+base+"/companies/{id}/agents/{agentID}", wrap(companyHandlers.GetAgent))

	mux.Handle("POST "+base+"/calls/analyze", wrap(callHandlers.Analyze))
	mux.Handle("GET "+base+"/calls/{id}", wrap(callHandlers.GetCall))
	mux.Handle("POST "+base+"/simulations", wrap(callHandlers.Simulate))

	mux.Handle("GET "+base+"/jobs/{id}", wrap(jobHandlers.GetStatus))
}

// registerAdminRoutes wires the admin surface behind the admin role check.
// Without an auth service the admin routes are not registered at all.
func registerAdminRoutes(mux *http.ServeMux, services RouterServices) {
	if services.Auth == nil {
		return
	}
	adminOnly := RequireRole(services.Auth, domainauth.RoleAdmin)
	wrap := func(h http.HandlerFunc) http.Handler {
		return adminOnly(h)
	}

	if services.Keys != nil {
		keyHandlers := &PartnerKeyHandlers{Svc: services.Keys}
		mux.Handle("POST /api/admin/keys", wrap(keyHandlers.Mint))
		mux.Handle("GET /api/admin/keys", wrap(keyHandlers.List))
		mux.Handle("GET /api/admin/keys/{id}", wrap(keyHandlers.Get))
		mux.Handle("DELETE /api/admin/keys/{id}", wrap(keyHandlers.Revoke))
	}

	if services.Logs != nil {
		logHandlers := &RequestLogHandlers{Svc: services.Logs}
		mux.Handle("GET /api/admin/request-logs", wrap(logHandlers.Search))
	}

	if services.Webhooks != nil {
		deliveryHandlers := &WebhookDeliveryHandlers{Svc: services.Webhooks}
		mux.Handle("GET /api/admin/deliveries/{id}", wrap(deliveryHandlers.Get))
		mux.Handle("GET /api/admin/deliveries/{id}/attempts", wrap(deliveryHandlers.Attempts))
	}
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}
