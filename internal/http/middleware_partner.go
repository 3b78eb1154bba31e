package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/domain/model"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
)

// PartnerAuthenticator verifies partner API credentials.
// PartnerAuthService implements it.
type PartnerAuthenticator interface {
	Authenticate(ctx context.Context, apiKey, apiSecret string) (*model.PartnerContext, error)
}

// PartnerGateConfig groups the collaborators of the partner auth gate.
type PartnerGateConfig struct {
	Auth    PartnerAuthenticator // Required: credential verification
	Limiter core.RateLimiter     // Optional: per-key rate limiting
	Enabled bool                 // Kill switch; false refuses all partner traffic
	Logger  *slog.Logger         // Optional: structured logger
}

// PartnerGate returns the middleware protecting the partner API surface.
// It refuses traffic when the kill switch is off, authenticates the
// Authorization/X-API-Secret credential pair, enforces the key's IP whitelist,
// applies the per-key rate limit, and attaches the PartnerContext (with any
// X-Idempotency-Key) to the request context.
func PartnerGate(cfg PartnerGateConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "partner_gate")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				WriteEnvelope(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "partner API is temporarily disabled")
				return
			}

			apiKey, apiSecret, ok := partnerCredentials(r)
			if !ok {
				WriteEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "missing API credentials")
				return
			}

			pc, err := cfg.Auth.Authenticate(r.Context(), apiKey, apiSecret)
			if err != nil {
				renderAuthError(w, err)
				return
			}

			if ip := clientIP(r); !pc.IPAllowed(ip) {
				logger.WarnContext(r.Context(), "partner request from non-whitelisted address",
					"key_id", pc.KeyID, "ip", ip)
				WriteEnvelope(w, http.StatusForbidden, CodeInsufficientPermissions,
					"your IP address is not whitelisted for this API key")
				return
			}

			pc.IdempotencyKey = r.Header.Get("X-Idempotency-Key")

			if !allowRequest(w, r, cfg, pc, logger) {
				return
			}

			ctx := SetPartnerInContext(r.Context(), pc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// partnerCredentials extracts the key/secret pair from the request headers.
func partnerCredentials(r *http.Request) (apiKey, apiSecret string, ok bool) {
	authz := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	if len(authz) > len(bearerPrefix) && strings.EqualFold(authz[:len(bearerPrefix)], bearerPrefix) {
		apiKey = strings.TrimSpace(authz[len(bearerPrefix):])
	}
	apiSecret = r.Header.Get("X-API-Secret")
	if apiKey == "" || apiSecret == "" {
		return "", "", false
	}
	return apiKey, apiSecret, true
}

// renderAuthError maps authentication failures onto the envelope without
// leaking whether the key exists.
func renderAuthError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsForbidden(err):
		WriteEnvelope(w, http.StatusForbidden, CodeForbidden, err.Error())
	case apperrors.IsUnauthorized(err):
		WriteEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
	default:
		WriteEnvelope(w, http.StatusInternalServerError, CodeInternalError, "internal server error")
	}
}

// allowRequest applies the per-key rate limit and writes the X-RateLimit-*
// headers. A limiter outage fails open: refusing all partner traffic because
// Redis is down is worse than briefly uncounted requests.
func allowRequest(w http.ResponseWriter, r *http.Request, cfg PartnerGateConfig, pc *model.PartnerContext, logger *slog.Logger) bool {
	if cfg.Limiter == nil || pc.RateLimitPerMinute <= 0 {
		return true
	}

	res, err := cfg.Limiter.Allow(r.Context(), pc.KeyID, pc.RateLimitPerMinute)
	if err != nil {
		logger.WarnContext(r.Context(), "rate limiter unavailable, failing open",
			"key_id", pc.KeyID, "error", err)
		return true
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

	if !res.Allowed {
		WriteEnvelope(w, http.StatusTooManyRequests, CodeRateLimitExceeded, "rate limit exceeded")
		return false
	}
	return true
}
