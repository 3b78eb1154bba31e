package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
	"github.com/dialcoach/partner-api/internal/mocks"
	"go.uber.org/mock/gomock"
)

const (
	testCompanyID = "6f1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"
	testAgentID   = "0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f0"
)

type rejectingCallbackValidator struct {
	err error
}

func (v rejectingCallbackValidator) ValidateCallback(string, *string) error { return v.err }

type callServiceDeps struct {
	calls     *mocks.MockCallRepository
	companies *mocks.MockCompanyRepository
	jobs      *mocks.MockJobRepository
}

func newTestCallService(t *testing.T, ctrl *gomock.Controller, callbacks CallbackValidator) (*CallService, callServiceDeps) {
	t.Helper()
	deps := callServiceDeps{
		calls:     mocks.NewMockCallRepository(ctrl),
		companies: mocks.NewMockCompanyRepository(ctrl),
		jobs:      mocks.NewMockJobRepository(ctrl),
	}
	jobs, _ := newTestJobService(t, deps.jobs)
	svc := MustNewCallService(CallServiceOptions{
		Calls:     deps.calls,
		Companies: deps.companies,
		Jobs:      jobs,
		Callbacks: callbacks,
	})
	return svc, deps
}

func TestNewCallService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	calls := mocks.NewMockCallRepository(ctrl)
	companies := mocks.NewMockCompanyRepository(ctrl)
	jobs, _ := newTestJobService(t, mocks.NewMockJobRepository(ctrl))

	t.Run("success", func(t *testing.T) {
		svc, err := NewCallService(CallServiceOptions{Calls: calls, Companies: companies, Jobs: jobs})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("missing call repo", func(t *testing.T) {
		_, err := NewCallService(CallServiceOptions{Companies: companies, Jobs: jobs})
		assert.Error(t, err)
	})

	t.Run("missing company repo", func(t *testing.T) {
		_, err := NewCallService(CallServiceOptions{Calls: calls, Jobs: jobs})
		assert.Error(t, err)
	})

	t.Run("missing job service", func(t *testing.T) {
		_, err := NewCallService(CallServiceOptions{Calls: calls, Companies: companies})
		assert.Error(t, err)
	})
}

func TestCallService_Analyze(t *testing.T) {
	newRequest := func() *model.AnalyzeCallRequest {
		return &model.AnalyzeCallRequest{
			CompanyID:  testCompanyID,
			AgentID:    testAgentID,
			CallType:   "discovery",
			Transcript: strPtr("Rep: Hi, thanks for taking the time today..."),
		}
	}

	t.Run("persists the call and enqueues an analysis job", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, deps := newTestCallService(t, ctrl, nil)

		deps.companies.EXPECT().GetAgent(gomock.Any(), testCompanyID, testAgentID).
			Return(&model.Agent{ID: testAgentID, CompanyID: testCompanyID}, nil)
		deps.calls.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *model.AnalyzeCallRequest) (*model.Call, error) {
				return &model.Call{
					ID:        "call-1",
					CompanyID: req.CompanyID,
					AgentID:   req.AgentID,
					Status:    model.CallStatusPending,
				}, nil
			})
		deps.jobs.EXPECT().Create(gomock.Any(), "key-1", gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, req *model.CreateJobRequest) (*model.Job, error) {
				assert.Equal(t, model.JobTypeCallAnalysis, req.Type)
				require.NotNil(t, req.CompanyID)
				assert.Equal(t, testCompanyID, *req.CompanyID)

				var payload struct {
					CallID    string `json:"call_id"`
					CompanyID string `json:"company_id"`
					AgentID   string `json:"agent_id"`
				}
				require.NoError(t, json.Unmarshal(req.Payload, &payload))
				assert.Equal(t, "call-1", payload.CallID)
				assert.Equal(t, testCompanyID, payload.CompanyID)
				assert.Equal(t, testAgentID, payload.AgentID)

				return &model.Job{ID: "job-1", Type: req.Type, Status: model.JobStatusPending}, nil
			})

		accepted, err := svc.Analyze(context.Background(), "key-1", newRequest())
		require.NoError(t, err)
		assert.Equal(t, "call-1", accepted.Call.ID)
		assert.Equal(t, "job-1", accepted.JobID)
		assert.False(t, accepted.Replayed)
	})

	t.Run("idempotency key replays the existing job", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, deps := newTestCallService(t, ctrl, nil)

		deps.companies.EXPECT().GetAgent(gomock.Any(), testCompanyID, testAgentID).
			Return(&model.Agent{ID: testAgentID}, nil)
		deps.calls.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(&model.Call{ID: "call-1", CompanyID: testCompanyID, AgentID: testAgentID}, nil)
		deps.jobs.EXPECT().FindByIdempotencyKey(gomock.Any(), "key-1", "idem-1").
			Return(&model.Job{ID: "job-existing"}, nil)

		req := newRequest()
		req.IdempotencyKey = strPtr("idem-1")

		accepted, err := svc.Analyze(context.Background(), "key-1", req)
		require.NoError(t, err)
		assert.Equal(t, "job-existing", accepted.JobID)
		assert.True(t, accepted.Replayed)
	})

	t.Run("agent not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, deps := newTestCallService(t, ctrl, nil)

		deps.companies.EXPECT().GetAgent(gomock.Any(), testCompanyID, testAgentID).
			Return(nil, data.ErrAgentNotFound)

		_, err := svc.Analyze(context.Background(), "key-1", newRequest())
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("audio and transcript both set", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, _ := newTestCallService(t, ctrl, nil)

		req := newRequest()
		req.AudioURL = strPtr("https://cdn.example.com/call.mp3")

		_, err := svc.Analyze(context.Background(), "key-1", req)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("callback validation failure stops acceptance", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, _ := newTestCallService(t, ctrl, rejectingCallbackValidator{
			err: apperrors.ValidationField("webhook_url", "URL must use https"),
		})

		req := newRequest()
		req.WebhookURL = strPtr("http://partner.example.com/hooks")

		_, err := svc.Analyze(context.Background(), "key-1", req)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestCallService_GetCall(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, deps := newTestCallService(t, ctrl, nil)
		deps.calls.EXPECT().GetByID(gomock.Any(), "call-1").
			Return(&model.Call{ID: "call-1", Status: model.CallStatusAnalyzed}, nil)

		call, err := svc.GetCall(context.Background(), "call-1")
		require.NoError(t, err)
		assert.Equal(t, model.CallStatusAnalyzed, call.Status)
	})

	t.Run("not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, deps := newTestCallService(t, ctrl, nil)
		deps.calls.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrCallNotFound)

		_, err := svc.GetCall(context.Background(), "missing")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestCallService_RequestSimulation(t *testing.T) {
	t.Run("enqueues a simulation job", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, deps := newTestCallService(t, ctrl, nil)

		deps.companies.EXPECT().GetByID(gomock.Any(), testCompanyID).
			Return(&model.Company{ID: testCompanyID}, nil)
		deps.jobs.EXPECT().Create(gomock.Any(), "key-1", gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, req *model.CreateJobRequest) (*model.Job, error) {
				assert.Equal(t, model.JobTypeSimulation, req.Type)

				var payload struct {
					CompanyID string          `json:"company_id"`
					AgentID   *string         `json:"agent_id"`
					Scenario  json.RawMessage `json:"scenario"`
				}
				require.NoError(t, json.Unmarshal(req.Payload, &payload))
				assert.Equal(t, testCompanyID, payload.CompanyID)
				require.NotNil(t, payload.AgentID)
				assert.Equal(t, testAgentID, *payload.AgentID)
				assert.JSONEq(t, `{"difficulty":"hard"}`, string(payload.Scenario))

				return &model.Job{ID: "job-1", Type: req.Type, Status: model.JobStatusPending}, nil
			})

		accepted, err := svc.RequestSimulation(context.Background(), "key-1", &model.SimulationRequest{
			CompanyID: testCompanyID,
			AgentID:   strPtr(testAgentID),
			Scenario:  json.RawMessage(`{"difficulty":"hard"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, "job-1", accepted.JobID)
		assert.False(t, accepted.Replayed)
	})

	t.Run("company not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, deps := newTestCallService(t, ctrl, nil)
		deps.companies.EXPECT().GetByID(gomock.Any(), testCompanyID).
			Return(nil, data.ErrCompanyNotFound)

		_, err := svc.RequestSimulation(context.Background(), "key-1", &model.SimulationRequest{
			CompanyID: testCompanyID,
		})
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("invalid scenario JSON", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, _ := newTestCallService(t, ctrl, nil)

		_, err := svc.RequestSimulation(context.Background(), "key-1", &model.SimulationRequest{
			CompanyID: testCompanyID,
			Scenario:  json.RawMessage(`{bad json`),
		})
		assert.True(t, apperrors.IsValidation(err))
	})
}
