package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/domain/model"
	domainwebhook "github.com/dialcoach/partner-api/internal/domain/webhook"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
	"github.com/dialcoach/partner-api/internal/mocks"
	"go.uber.org/mock/gomock"
)

func testWebhookRunnerConfig() config.WebhookRunnerConfig {
	return config.WebhookRunnerConfig{
		Interval:        5 * time.Second,
		BatchSize:       20,
		DeliveryTimeout: 10 * time.Second,
		MaxAttempts:     5,
		RetryBaseDelay:  30 * time.Second,
		RetryMaxDelay:   time.Hour,
	}
}

func strPtr(s string) *string { return &s }

func TestNewWebhookService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("success", func(t *testing.T) {
		svc, err := NewWebhookService(WebhookServiceOptions{
			Deliveries: mocks.NewMockWebhookDeliveryRepository(ctrl),
			Config:     testWebhookRunnerConfig(),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("missing repo", func(t *testing.T) {
		svc, err := NewWebhookService(WebhookServiceOptions{Config: testWebhookRunnerConfig()})
		require.Error(t, err)
		assert.Nil(t, svc)
	})
}

func TestWebhookService_ValidateCallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := MustNewWebhookService(WebhookServiceOptions{
		Deliveries: mocks.NewMockWebhookDeliveryRepository(ctrl),
		Config:     testWebhookRunnerConfig(),
	})

	t.Run("empty URL is allowed", func(t *testing.T) {
		assert.NoError(t, svc.ValidateCallback("", nil))
	})

	t.Run("valid https URL", func(t *testing.T) {
		assert.NoError(t, svc.ValidateCallback("https://partner.example.com/hooks", nil))
	})

	t.Run("http URL rejected by default", func(t *testing.T) {
		err := svc.ValidateCallback("http://partner.example.com/hooks", nil)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("http URL accepted when insecure URLs are allowed", func(t *testing.T) {
		cfg := testWebhookRunnerConfig()
		cfg.AllowInsecureURLs = true
		insecure := MustNewWebhookService(WebhookServiceOptions{
			Deliveries: mocks.NewMockWebhookDeliveryRepository(ctrl),
			Config:     cfg,
		})
		assert.NoError(t, insecure.ValidateCallback("http://localhost:9999/hooks", nil))
	})

	t.Run("valid transform", func(t *testing.T) {
		assert.NoError(t, svc.ValidateCallback("https://partner.example.com/hooks", strPtr("{id: id, state: status}")))
	})

	t.Run("invalid transform", func(t *testing.T) {
		err := svc.ValidateCallback("https://partner.example.com/hooks", strPtr("][not-jmespath"))
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "transform")
	})
}

func TestWebhookService_PublishJobEvent(t *testing.T) {
	newJob := func() *model.Job {
		return &model.Job{
			ID:           "job-1",
			PartnerKeyID: "key-1",
			Type:         model.JobTypeCallAnalysis,
			Status:       model.JobStatusCompleted,
			Result:       json.RawMessage(`{"score":87}`),
			WebhookURL:   strPtr("https://partner.example.com/hooks"),
			CreatedAt:    time.Now().UTC(),
		}
	}

	t.Run("enqueues an envelope with a fresh event id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockWebhookDeliveryRepository(ctrl)
		var enqueued *model.WebhookDelivery
		repo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d *model.WebhookDelivery) (*model.WebhookDelivery, error) {
				enqueued = d
				created := *d
				created.ID = "delivery-1"
				return &created, nil
			})

		svc := MustNewWebhookService(WebhookServiceOptions{
			Deliveries: repo,
			Config:     testWebhookRunnerConfig(),
		})

		job := newJob()
		require.NoError(t, svc.PublishJobEvent(context.Background(), job, model.WebhookEventJobCompleted))

		require.NotNil(t, enqueued)
		assert.Equal(t, "job-1", enqueued.JobID)
		assert.Equal(t, "key-1", enqueued.PartnerKeyID)
		assert.Equal(t, model.WebhookEventJobCompleted, enqueued.EventType)
		assert.Equal(t, "https://partner.example.com/hooks", enqueued.URL)
		assert.Equal(t, 5, enqueued.MaxAttempts)

		_, err := uuid.Parse(enqueued.EventID)
		assert.NoError(t, err, "event id is a uuid")

		var envelope model.WebhookEnvelope
		require.NoError(t, json.Unmarshal(enqueued.Payload, &envelope))
		assert.Equal(t, model.WebhookEventJobCompleted, envelope.EventType)
		assert.Equal(t, enqueued.EventID, envelope.EventID)
		assert.WithinDuration(t, time.Now(), envelope.Timestamp, time.Minute)

		var view model.JobStatusResponse
		require.NoError(t, json.Unmarshal(envelope.Data, &view))
		assert.Equal(t, "job-1", view.ID)
		assert.Equal(t, model.JobStatusCompleted, view.Status)
		assert.JSONEq(t, `{"score":87}`, string(view.Result))
	})

	t.Run("max attempts falls back to the default", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockWebhookDeliveryRepository(ctrl)
		repo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d *model.WebhookDelivery) (*model.WebhookDelivery, error) {
				assert.Equal(t, domainwebhook.DefaultMaxAttempts, d.MaxAttempts)
				return d, nil
			})

		cfg := testWebhookRunnerConfig()
		cfg.MaxAttempts = 0
		svc := MustNewWebhookService(WebhookServiceOptions{Deliveries: repo, Config: cfg})

		require.NoError(t, svc.PublishJobEvent(context.Background(), newJob(), model.WebhookEventJobCompleted))
	})

	t.Run("transform reshapes the payload", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockWebhookDeliveryRepository(ctrl)
		var enqueued *model.WebhookDelivery
		repo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d *model.WebhookDelivery) (*model.WebhookDelivery, error) {
				enqueued = d
				return d, nil
			})

		svc := MustNewWebhookService(WebhookServiceOptions{
			Deliveries: repo,
			Config:     testWebhookRunnerConfig(),
		})

		job := newJob()
		job.WebhookTransform = strPtr("{job: id, state: status}")
		require.NoError(t, svc.PublishJobEvent(context.Background(), job, model.WebhookEventJobCompleted))

		var envelope model.WebhookEnvelope
		require.NoError(t, json.Unmarshal(enqueued.Payload, &envelope))
		assert.JSONEq(t, `{"job":"job-1","state":"completed"}`, string(envelope.Data))
	})

	t.Run("failing transform falls back to the untransformed view", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockWebhookDeliveryRepository(ctrl)
		var enqueued *model.WebhookDelivery
		repo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d *model.WebhookDelivery) (*model.WebhookDelivery, error) {
				enqueued = d
				return d, nil
			})

		svc := MustNewWebhookService(WebhookServiceOptions{
			Deliveries: repo,
			Config:     testWebhookRunnerConfig(),
		})

		job := newJob()
		// Matches nothing in the job view, so Search yields nil.
		job.WebhookTransform = strPtr("does_not_exist.nested")
		require.NoError(t, svc.PublishJobEvent(context.Background(), job, model.WebhookEventJobCompleted))

		var envelope model.WebhookEnvelope
		require.NoError(t, json.Unmarshal(enqueued.Payload, &envelope))

		var view model.JobStatusResponse
		require.NoError(t, json.Unmarshal(envelope.Data, &view))
		assert.Equal(t, "job-1", view.ID)
	})

	t.Run("nil job", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := MustNewWebhookService(WebhookServiceOptions{
			Deliveries: mocks.NewMockWebhookDeliveryRepository(ctrl),
			Config:     testWebhookRunnerConfig(),
		})

		assert.Error(t, svc.PublishJobEvent(context.Background(), nil, model.WebhookEventJobCompleted))
	})

	t.Run("job without webhook url", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := MustNewWebhookService(WebhookServiceOptions{
			Deliveries: mocks.NewMockWebhookDeliveryRepository(ctrl),
			Config:     testWebhookRunnerConfig(),
		})

		job := newJob()
		job.WebhookURL = nil
		assert.Error(t, svc.PublishJobEvent(context.Background(), job, model.WebhookEventJobCompleted))
	})
}

func TestWebhookService_DeliveryAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockWebhookDeliveryRepository(ctrl)
	repo.EXPECT().AttemptsForDelivery(gomock.Any(), "delivery-1").Return([]model.WebhookAttempt{
		{ID: "attempt-1", DeliveryID: "delivery-1"},
	}, nil)

	svc := MustNewWebhookService(WebhookServiceOptions{
		Deliveries: repo,
		Config:     testWebhookRunnerConfig(),
	})

	attempts, err := svc.DeliveryAttempts(context.Background(), "delivery-1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "attempt-1", attempts[0].ID)
}
