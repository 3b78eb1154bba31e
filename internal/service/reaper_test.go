package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockReaperRepo is a simple mock implementation for testing.
type mockReaperRepo struct {
	failStalePendingJobsCalled int
	failStalePendingJobsCount  int64
	failStalePendingJobsError  error

	deleteOldJobsCalled   int
	deleteOldJobsCount    int64
	deleteOldJobsError    error
	deleteOldJobsStatuses []model.JobStatus
}

func (m *mockReaperRepo) FailStalePendingJobs(
	ctx context.Context,
	maxAge time.Duration,
	batchSize int,
) (int64, error) {
	m.failStalePendingJobsCalled++
	if m.failStalePendingJobsError != nil {
		return 0, m.failStalePendingJobsError
	}
	// Return count on first call, then 0 to simulate batch exhaustion
	if m.failStalePendingJobsCalled == 1 {
		return m.failStalePendingJobsCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) DeleteOldJobs(
	ctx context.Context,
	params core.DeleteOldJobsParams,
) (int64, error) {
	m.deleteOldJobsCalled++
	m.deleteOldJobsStatuses = append(m.deleteOldJobsStatuses, params.Status)
	if m.deleteOldJobsError != nil {
		return 0, m.deleteOldJobsError
	}
	// Return count on odd calls (1st, 3rd, 5th...), then 0 on even calls to simulate batch exhaustion
	// This allows multiple cleanup operations (completed, failed) to each get their batch
	if m.deleteOldJobsCalled%2 == 1 {
		return m.deleteOldJobsCount, nil
	}
	return 0, nil
}

// mockWebhookPurgeRepo implements core.WebhookDeliveryRepository; only
// PurgeOldAttempts matters to the reaper.
type mockWebhookPurgeRepo struct {
	purgeCalled int
	purgeCutoff time.Time
	purgeCount  int64
	purgeError  error
}

func (m *mockWebhookPurgeRepo) Enqueue(context.Context, *model.WebhookDelivery) (*model.WebhookDelivery, error) {
	return nil, errors.New("not implemented")
}

func (m *mockWebhookPurgeRepo) ClaimDue(context.Context, int) ([]model.WebhookDelivery, error) {
	return nil, errors.New("not implemented")
}

func (m *mockWebhookPurgeRepo) MarkDelivered(context.Context, string, int) error {
	return errors.New("not implemented")
}

func (m *mockWebhookPurgeRepo) Reschedule(context.Context, string, *int, time.Time) error {
	return errors.New("not implemented")
}

func (m *mockWebhookPurgeRepo) MarkFailed(context.Context, string, *int) error {
	return errors.New("not implemented")
}

func (m *mockWebhookPurgeRepo) RecordAttempt(context.Context, *model.WebhookAttempt) error {
	return errors.New("not implemented")
}

func (m *mockWebhookPurgeRepo) GetByID(context.Context, string) (*model.WebhookDelivery, error) {
	return nil, errors.New("not implemented")
}

func (m *mockWebhookPurgeRepo) AttemptsForDelivery(context.Context, string) ([]model.WebhookAttempt, error) {
	return nil, errors.New("not implemented")
}

func (m *mockWebhookPurgeRepo) PurgeOldAttempts(ctx context.Context, cutoff time.Time) (int64, error) {
	m.purgeCalled++
	m.purgeCutoff = cutoff
	if m.purgeError != nil {
		return 0, m.purgeError
	}
	return m.purgeCount, nil
}

// mockRequestLogPurgeRepo implements core.RequestLogRepository; only
// PurgeOlderThan matters to the reaper.
type mockRequestLogPurgeRepo struct {
	purgeCalled int
	purgeCutoff time.Time
	purgeCount  int64
	purgeError  error
}

func (m *mockRequestLogPurgeRepo) Insert(context.Context, *model.RequestLogEntry) error {
	return errors.New("not implemented")
}

func (m *mockRequestLogPurgeRepo) RecentForKey(context.Context, string, int) ([]model.RequestLogEntry, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRequestLogPurgeRepo) Search(context.Context, *model.RequestLogQuery) ([]model.RequestLogEntry, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRequestLogPurgeRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.purgeCalled++
	m.purgeCutoff = cutoff
	if m.purgeError != nil {
		return 0, m.purgeError
	}
	return m.purgeCount, nil
}

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:              5 * time.Minute,
		PendingMaxAge:         1 * time.Hour,
		CompletedMaxAge:       7 * 24 * time.Hour,
		FailedMaxAge:          7 * 24 * time.Hour,
		WebhookAttemptsMaxAge: 30 * 24 * time.Hour,
		BatchSize:             1000,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		repo := &mockReaperRepo{}

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: testReaperConfig(),
			Logger: slog.Default(),
		})

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{
			Repo:   nil,
			Config: testReaperConfig(),
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ReaperRepository is required")
	})
}

func TestReaperService_runCleanup(t *testing.T) {
	t.Run("runs all cleanup steps", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStalePendingJobsCount: 3,
			deleteOldJobsCount:        5,
		}
		webhooks := &mockWebhookPurgeRepo{purgeCount: 7}
		requestLogs := &mockRequestLogPurgeRepo{purgeCount: 11}

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:             repo,
			Config:           testReaperConfig(),
			Webhooks:         webhooks,
			RequestLogs:      requestLogs,
			RequestLogMaxAge: 14 * 24 * time.Hour,
		})
		require.NoError(t, err)

		err = svc.runCleanup(context.Background())
		require.NoError(t, err)

		// Stale pending: one batch with rows, one empty batch.
		assert.Equal(t, 2, repo.failStalePendingJobsCalled)
		// Completed and failed deletion each take two batches.
		assert.Equal(t, 4, repo.deleteOldJobsCalled)
		assert.Contains(t, repo.deleteOldJobsStatuses, model.JobStatusCompleted)
		assert.Contains(t, repo.deleteOldJobsStatuses, model.JobStatusFailed)
		// Purges are single-shot.
		assert.Equal(t, 1, webhooks.purgeCalled)
		assert.Equal(t, 1, requestLogs.purgeCalled)

		// Cutoffs derive from retention config.
		assert.WithinDuration(t, time.Now().Add(-30*24*time.Hour), webhooks.purgeCutoff, time.Minute)
		assert.WithinDuration(t, time.Now().Add(-14*24*time.Hour), requestLogs.purgeCutoff, time.Minute)
	})

	t.Run("skips purges when optional repos are absent", func(t *testing.T) {
		repo := &mockReaperRepo{}

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: testReaperConfig(),
		})
		require.NoError(t, err)

		err = svc.runCleanup(context.Background())
		require.NoError(t, err)
	})

	t.Run("skips request log purge without retention", func(t *testing.T) {
		repo := &mockReaperRepo{}
		requestLogs := &mockRequestLogPurgeRepo{}

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:        repo,
			Config:      testReaperConfig(),
			RequestLogs: requestLogs,
			// RequestLogMaxAge left zero
		})
		require.NoError(t, err)

		err = svc.runCleanup(context.Background())
		require.NoError(t, err)
		assert.Zero(t, requestLogs.purgeCalled)
	})

	t.Run("continues after step failure and reports joined error", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStalePendingJobsError: errors.New("pending boom"),
			deleteOldJobsCount:        5,
		}
		webhooks := &mockWebhookPurgeRepo{purgeError: errors.New("webhook boom")}
		requestLogs := &mockRequestLogPurgeRepo{purgeCount: 2}

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:             repo,
			Config:           testReaperConfig(),
			Webhooks:         webhooks,
			RequestLogs:      requestLogs,
			RequestLogMaxAge: time.Hour,
		})
		require.NoError(t, err)

		err = svc.runCleanup(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fail stale pending jobs")
		assert.Contains(t, err.Error(), "purge old webhook attempts")

		// Later steps still ran.
		assert.Equal(t, 4, repo.deleteOldJobsCalled)
		assert.Equal(t, 1, requestLogs.purgeCalled)
	})

	t.Run("returns context.Canceled when all steps were cancelled", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStalePendingJobsError: context.Canceled,
			deleteOldJobsError:        context.Canceled,
		}

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: testReaperConfig(),
		})
		require.NoError(t, err)

		err = svc.runCleanup(context.Background())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestReaperService_Run_GracefulShutdown(t *testing.T) {
	repo := &mockReaperRepo{}

	cfg := testReaperConfig()
	cfg.Interval = time.Minute

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: cfg,
		Logger: slog.Default(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()

	// Give the loop a moment to pass the startup jitter
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "graceful shutdown should not be treated as failure")
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after context cancellation")
	}
}
