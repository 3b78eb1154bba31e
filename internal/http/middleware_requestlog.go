package httpx

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dialcoach/partner-api/internal/domain/model"
)

// RequestRecorder accepts one audit row per inbound partner request.
// RequestLogService implements it; Record must never block the request path.
type RequestRecorder interface {
	Record(entry model.RequestLogEntry) bool
}

// RequestLogging returns a middleware that records an audit entry for every
// partner request, including rejected ones. It must sit outside the partner
// gate so 401s are logged with a null key id.
func RequestLogging(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, holder := withPartnerHolder(r.Context())
			r = r.WithContext(ctx)
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)

			entry := model.RequestLogEntry{
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     ww.status,
				DurationMS: time.Since(start).Milliseconds(),
				IP:         clientIP(r),
				UserAgent:  r.UserAgent(),
			}
			// When the gate rejected the request the holder stays empty and
			// the row carries a null key id.
			if holder.pc != nil {
				keyID := holder.pc.KeyID
				entry.PartnerKeyID = &keyID
			}
			if idem := r.Header.Get("X-Idempotency-Key"); idem != "" {
				entry.IdempotencyKey = &idem
			}
			recorder.Record(entry)
		})
	}
}

// clientIP returns the originating client address, preferring the first
// X-Forwarded-For hop set by the ingress proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
