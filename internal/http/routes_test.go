package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/dialcoach/partner-api/internal/domain/auth"
	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/mocks"
	"github.com/dialcoach/partner-api/internal/service"
)

// stubSessionAuth serves a fixed session for one session id.
type stubSessionAuth struct {
	sessionID string
	session   *domainauth.Session
}

func (s *stubSessionAuth) BeginLogin(context.Context, string) (*service.BeginLoginResult, error) {
	return nil, assertAnError{}
}

func (s *stubSessionAuth) CompleteLogin(context.Context, service.CompleteLoginInput) (*service.CompleteLoginResult, error) {
	return nil, assertAnError{}
}

func (s *stubSessionAuth) GetSession(_ context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID != s.sessionID || s.session == nil {
		return nil, assertAnError{}
	}
	return s.session, nil
}

func (s *stubSessionAuth) Logout(context.Context, string) error { return nil }

func adminSession() *domainauth.Session {
	return &domainauth.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Email:     "ops@dialcoach.test",
		Role:      domainauth.RoleAdmin,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockCompanyRepository, *captureRecorder) {
	t.Helper()
	ctrl := gomock.NewController(t)
	companyRepo := mocks.NewMockCompanyRepository(ctrl)
	companies, err := service.NewCompanyService(service.CompanyServiceOptions{Repo: companyRepo})
	require.NoError(t, err)

	recorder := &captureRecorder{}
	router := NewRouter(RouterServices{
		PartnerAuth:       &stubAuthenticator{pc: testPartner()},
		RequestLogs:       recorder,
		Companies:         companies,
		Auth:              &stubSessionAuth{sessionID: "sess-1", session: adminSession()},
		PartnerAPIEnabled: true,
	})
	return router, companyRepo, recorder
}

func TestRouter_PartnerFlow(t *testing.T) {
	t.Run("authenticated company read succeeds and is logged", func(t *testing.T) {
		router, repo, recorder := newTestRouter(t)
		repo.EXPECT().GetByID(gomock.Any(), "company-1").Return(&model.Company{ID: "company-1", Name: "Globex"}, nil)

		r := httptest.NewRequest(http.MethodGet, "/api/partner/v1/companies/company-1", nil)
		r.Header.Set("Authorization", "Bearer pk_test_abc")
		r.Header.Set("X-API-Secret", "s3cret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, recorder.entries, 1)
		require.NotNil(t, recorder.entries[0].PartnerKeyID)
		assert.Equal(t, "key-1", *recorder.entries[0].PartnerKeyID)
	})

	t.Run("request without credentials is rejected and logged with null key", func(t *testing.T) {
		router, _, recorder := newTestRouter(t)

		r := httptest.NewRequest(http.MethodGet, "/api/partner/v1/companies/company-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Len(t, recorder.entries, 1)
		assert.Nil(t, recorder.entries[0].PartnerKeyID)
	})

	t.Run("health endpoints skip the gate", func(t *testing.T) {
		router, _, recorder := newTestRouter(t)

		for _, path := range []string{"/healthz", "/api/partner/v1/health"} {
			r := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, r)
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
		assert.Empty(t, recorder.entries)
	})
}

func TestRouter_AdminGuard(t *testing.T) {
	t.Run("admin route without session is unauthorized", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		keyRepo := mocks.NewMockPartnerKeyRepository(ctrl)
		keys, err := service.NewPartnerKeyService(service.PartnerKeyServiceOptions{Repo: keyRepo})
		require.NoError(t, err)

		router := NewRouter(RouterServices{
			PartnerAuth:       &stubAuthenticator{pc: testPartner()},
			Keys:              keys,
			Auth:              &stubSessionAuth{},
			PartnerAPIEnabled: true,
		})

		r := httptest.NewRequest(http.MethodGet, "/api/admin/keys", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("admin session lists keys", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		keyRepo := mocks.NewMockPartnerKeyRepository(ctrl)
		keyRepo.EXPECT().List(gomock.Any()).Return([]model.PartnerKey{{ID: "id-1", PartnerName: "Acme CRM"}}, nil)
		keys, err := service.NewPartnerKeyService(service.PartnerKeyServiceOptions{Repo: keyRepo})
		require.NoError(t, err)

		router := NewRouter(RouterServices{
			PartnerAuth:       &stubAuthenticator{pc: testPartner()},
			Keys:              keys,
			Auth:              &stubSessionAuth{sessionID: "sess-1", session: adminSession()},
			PartnerAPIEnabled: true,
		})

		r := httptest.NewRequest(http.MethodGet, "/api/admin/keys", nil)
		r.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Acme CRM")
	})

	t.Run("non-admin role is forbidden", func(t *testing.T) {
		session := adminSession()
		session.Role = domainauth.RoleUser

		ctrl := gomock.NewController(t)
		keyRepo := mocks.NewMockPartnerKeyRepository(ctrl)
		keys, err := service.NewPartnerKeyService(service.PartnerKeyServiceOptions{Repo: keyRepo})
		require.NoError(t, err)

		router := NewRouter(RouterServices{
			PartnerAuth:       &stubAuthenticator{pc: testPartner()},
			Keys:              keys,
			Auth:              &stubSessionAuth{sessionID: "sess-1", session: session},
			PartnerAPIEnabled: true,
		})

		r := httptest.NewRequest(http.MethodGet, "/api/admin/keys", nil)
		r.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, CodeInsufficientPermissions, decodeEnvelope(t, rec).Error.Code)
	})
}

func TestRouter_KillSwitch(t *testing.T) {
	router := NewRouter(RouterServices{
		PartnerAuth:       &stubAuthenticator{pc: testPartner()},
		PartnerAPIEnabled: false,
	})

	r := httptest.NewRequest(http.MethodPost, "/api/partner/v1/calls/analyze", strings.NewReader(`{}`))
	r.Header.Set("Authorization", "Bearer pk_test_abc")
	r.Header.Set("X-API-Secret", "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeServiceUnavailable, decodeEnvelope(t, rec).Error.Code)
}
