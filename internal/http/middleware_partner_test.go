package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dialcoach/partner-api/internal/domain/model"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
	"github.com/dialcoach/partner-api/internal/mocks"
)

// stubAuthenticator returns a fixed PartnerContext or error.
type stubAuthenticator struct {
	pc  *model.PartnerContext
	err error

	gotKey    string
	gotSecret string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, apiKey, apiSecret string) (*model.PartnerContext, error) {
	s.gotKey = apiKey
	s.gotSecret = apiSecret
	if s.err != nil {
		return nil, s.err
	}
	pc := *s.pc
	return &pc, nil
}

func testPartner() *model.PartnerContext {
	return &model.PartnerContext{
		KeyID:              "key-1",
		PartnerName:        "Acme CRM",
		Environment:        model.EnvironmentTest,
		RateLimitPerMinute: 60,
	}
}

func okHandler(seen **model.PartnerContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pc, ok := PartnerFromContext(r.Context()); ok && seen != nil {
			*seen = pc
		}
		w.WriteHeader(http.StatusOK)
	})
}

func newPartnerRequest() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/partner/v1/companies/c1", nil)
	r.Header.Set("Authorization", "Bearer pk_test_abc")
	r.Header.Set("X-API-Secret", "s3cret")
	return r
}

func TestPartnerGate_KillSwitch(t *testing.T) {
	gate := PartnerGate(PartnerGateConfig{Auth: &stubAuthenticator{pc: testPartner()}, Enabled: false})

	rec := httptest.NewRecorder()
	gate(okHandler(nil)).ServeHTTP(rec, newPartnerRequest())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeServiceUnavailable, decodeEnvelope(t, rec).Error.Code)
}

func TestPartnerGate_MissingCredentials(t *testing.T) {
	auth := &stubAuthenticator{pc: testPartner()}
	gate := PartnerGate(PartnerGateConfig{Auth: auth, Enabled: true})

	tests := []struct {
		name    string
		prepare func(r *http.Request)
	}{
		{"no headers at all", func(r *http.Request) {
			r.Header.Del("Authorization")
			r.Header.Del("X-API-Secret")
		}},
		{"bearer without secret", func(r *http.Request) {
			r.Header.Del("X-API-Secret")
		}},
		{"secret without bearer", func(r *http.Request) {
			r.Header.Del("Authorization")
		}},
		{"basic scheme is not accepted", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic cGs6c2VjcmV0")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newPartnerRequest()
			tt.prepare(r)
			rec := httptest.NewRecorder()
			gate(okHandler(nil)).ServeHTTP(rec, r)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, CodeUnauthorized, decodeEnvelope(t, rec).Error.Code)
		})
	}
}

func TestPartnerGate_AuthenticationOutcomes(t *testing.T) {
	t.Run("revoked key renders 403", func(t *testing.T) {
		auth := &stubAuthenticator{err: apperrors.Forbidden("API key has been revoked")}
		gate := PartnerGate(PartnerGateConfig{Auth: auth, Enabled: true})

		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, newPartnerRequest())

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, CodeForbidden, decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("whitelisted IP passes", func(t *testing.T) {
		pc := testPartner()
		pc.AllowedIPs = []string{"198.51.100.4"}
		gate := PartnerGate(PartnerGateConfig{Auth: &stubAuthenticator{pc: pc}, Enabled: true})

		r := newPartnerRequest()
		r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.2")
		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-whitelisted IP renders 403", func(t *testing.T) {
		pc := testPartner()
		pc.AllowedIPs = []string{"198.51.100.4"}
		gate := PartnerGate(PartnerGateConfig{Auth: &stubAuthenticator{pc: pc}, Enabled: true})

		r := newPartnerRequest()
		r.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, CodeInsufficientPermissions, decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("expired key renders 401", func(t *testing.T) {
		auth := &stubAuthenticator{err: apperrors.Unauthorized("API key has expired")}
		gate := PartnerGate(PartnerGateConfig{Auth: auth, Enabled: true})

		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, newPartnerRequest())

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, CodeUnauthorized, decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("bad secret renders 401", func(t *testing.T) {
		auth := &stubAuthenticator{err: apperrors.Unauthorized("invalid API credentials")}
		gate := PartnerGate(PartnerGateConfig{Auth: auth, Enabled: true})

		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, newPartnerRequest())

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("backend failure renders opaque 500", func(t *testing.T) {
		auth := &stubAuthenticator{err: assertAnError{}}
		gate := PartnerGate(PartnerGateConfig{Auth: auth, Enabled: true})

		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, newPartnerRequest())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "boom")
	})
}

func TestPartnerGate_AttachesPartnerAndIdempotencyKey(t *testing.T) {
	auth := &stubAuthenticator{pc: testPartner()}
	gate := PartnerGate(PartnerGateConfig{Auth: auth, Enabled: true})

	var seen *model.PartnerContext
	r := newPartnerRequest()
	r.Header.Set("X-Idempotency-Key", "idem-42")
	rec := httptest.NewRecorder()
	gate(okHandler(&seen)).ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "key-1", seen.KeyID)
	assert.Equal(t, "idem-42", seen.IdempotencyKey)
	assert.Equal(t, "pk_test_abc", auth.gotKey)
	assert.Equal(t, "s3cret", auth.gotSecret)
}

func TestPartnerGate_RateLimiting(t *testing.T) {
	t.Run("allowed request carries X-RateLimit headers", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		limiter := mocks.NewMockRateLimiter(ctrl)
		reset := time.Now().Add(30 * time.Second).Truncate(time.Second)
		limiter.EXPECT().Allow(gomock.Any(), "key-1", 60).Return(&model.RateLimitResult{
			Allowed: true, Limit: 60, Remaining: 41, ResetAt: reset,
		}, nil)

		gate := PartnerGate(PartnerGateConfig{Auth: &stubAuthenticator{pc: testPartner()}, Limiter: limiter, Enabled: true})
		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, newPartnerRequest())

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "41", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("exhausted budget renders 429 with headers", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		limiter := mocks.NewMockRateLimiter(ctrl)
		limiter.EXPECT().Allow(gomock.Any(), "key-1", 60).Return(&model.RateLimitResult{
			Allowed: false, Limit: 60, Remaining: 0, ResetAt: time.Now().Add(12 * time.Second),
		}, nil)

		gate := PartnerGate(PartnerGateConfig{Auth: &stubAuthenticator{pc: testPartner()}, Limiter: limiter, Enabled: true})
		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, newPartnerRequest())

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, CodeRateLimitExceeded, decodeEnvelope(t, rec).Error.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("limiter outage fails open", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		limiter := mocks.NewMockRateLimiter(ctrl)
		limiter.EXPECT().Allow(gomock.Any(), "key-1", 60).Return(nil, assertAnError{})

		gate := PartnerGate(PartnerGateConfig{Auth: &stubAuthenticator{pc: testPartner()}, Limiter: limiter, Enabled: true})
		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, newPartnerRequest())

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("zero per-key limit skips the limiter", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		limiter := mocks.NewMockRateLimiter(ctrl) // no expectations: must not be called

		pc := testPartner()
		pc.RateLimitPerMinute = 0
		gate := PartnerGate(PartnerGateConfig{Auth: &stubAuthenticator{pc: pc}, Limiter: limiter, Enabled: true})
		rec := httptest.NewRecorder()
		gate(okHandler(nil)).ServeHTTP(rec, newPartnerRequest())

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
