package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/testutil"
)

// createTestJob inserts a job row so deliveries have a valid job_id.
func createTestJob(t *testing.T, db *sql.DB, partnerKeyID string) *model.Job {
	t.Helper()

	repo := NewJobRepo(db, JobRepoConfig{})
	job, err := repo.Create(context.Background(), partnerKeyID, &model.CreateJobRequest{
		Type:    model.JobTypeCallAnalysis,
		Payload: json.RawMessage(`{"recording_url": "https://recordings.example.com/hook.wav"}`),
	})
	require.NoError(t, err)
	return job
}

func enqueueTestDelivery(t *testing.T, repo *WebhookRepo, job *model.Job) *model.WebhookDelivery {
	t.Helper()

	d, err := repo.Enqueue(context.Background(), &model.WebhookDelivery{
		JobID:        job.ID,
		PartnerKeyID: job.PartnerKeyID,
		EventType:    model.WebhookEventJobCompleted,
		EventID:      uuid.NewString(),
		URL:          "https://partner.example.com/hooks/jobs",
		Payload:      json.RawMessage(`{"event_type": "job.completed", "data": {"job_id": "` + job.ID + `"}}`),
		MaxAttempts:  5,
	})
	require.NoError(t, err)
	return d
}

func TestWebhookRepo_EnqueueAndClaim(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewFixedTimeProvider(testutil.TestTime())
		repo := NewWebhookRepo(db, WebhookRepoConfig{TimeProvider: clock})
		key := createTestPartnerKey(t, db)
		job := createTestJob(t, db, key.ID)

		d := enqueueTestDelivery(t, repo, job)
		assert.Equal(t, model.DeliveryStatusPending, d.Status)
		assert.Zero(t, d.AttemptCount)
		require.NotNil(t, d.NextAttemptAt)

		claimed, err := repo.ClaimDue(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, d.ID, claimed[0].ID)
		assert.Equal(t, 1, claimed[0].AttemptCount)
		assert.Nil(t, claimed[0].NextAttemptAt)

		// A claimed delivery is off the due list until rescheduled.
		claimed, err = repo.ClaimDue(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})
}

func TestWebhookRepo_RescheduleMakesDueAgain(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewFixedTimeProvider(testutil.TestTime())
		repo := NewWebhookRepo(db, WebhookRepoConfig{TimeProvider: clock})
		key := createTestPartnerKey(t, db)
		job := createTestJob(t, db, key.ID)
		d := enqueueTestDelivery(t, repo, job)

		claimed, err := repo.ClaimDue(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		status := 503
		next := clock.Now().Add(30 * time.Second)
		require.NoError(t, repo.Reschedule(context.Background(), d.ID, &status, next))

		// Not due yet.
		claimed, err = repo.ClaimDue(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)

		clock.AddTime(31 * time.Second)

		claimed, err = repo.ClaimDue(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, 2, claimed[0].AttemptCount)
		require.NotNil(t, claimed[0].LastStatusCode)
		assert.Equal(t, 503, *claimed[0].LastStatusCode)
	})
}

func TestWebhookRepo_MarkDelivered(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewWebhookRepo(db, WebhookRepoConfig{})
		key := createTestPartnerKey(t, db)
		job := createTestJob(t, db, key.ID)
		d := enqueueTestDelivery(t, repo, job)

		require.NoError(t, repo.MarkDelivered(context.Background(), d.ID, 200))

		got, err := repo.GetByID(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, model.DeliveryStatusDelivered, got.Status)
		require.NotNil(t, got.LastStatusCode)
		assert.Equal(t, 200, *got.LastStatusCode)
		assert.Nil(t, got.NextAttemptAt)

		// Delivered rows never come back from the due scan.
		claimed, err := repo.ClaimDue(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})
}

func TestWebhookRepo_MarkFailed(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewWebhookRepo(db, WebhookRepoConfig{})
		key := createTestPartnerKey(t, db)
		job := createTestJob(t, db, key.ID)
		d := enqueueTestDelivery(t, repo, job)

		status := 410
		require.NoError(t, repo.MarkFailed(context.Background(), d.ID, &status))

		got, err := repo.GetByID(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, model.DeliveryStatusFailed, got.Status)
		require.NotNil(t, got.LastStatusCode)
		assert.Equal(t, 410, *got.LastStatusCode)
	})
}

func TestWebhookRepo_GetMissing(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewWebhookRepo(db, WebhookRepoConfig{})

		_, err := repo.GetByID(context.Background(), uuid.NewString())
		require.ErrorIs(t, err, ErrDeliveryNotFound)
	})
}

func TestWebhookRepo_AttemptHistory(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewWebhookRepo(db, WebhookRepoConfig{})
		key := createTestPartnerKey(t, db)
		job := createTestJob(t, db, key.ID)
		d := enqueueTestDelivery(t, repo, job)

		timeoutErr := "context deadline exceeded"
		require.NoError(t, repo.RecordAttempt(context.Background(), &model.WebhookAttempt{
			DeliveryID:    d.ID,
			AttemptNumber: 1,
			DurationMS:    10000,
			Error:         &timeoutErr,
		}))

		okStatus := 200
		okBody := "ok"
		require.NoError(t, repo.RecordAttempt(context.Background(), &model.WebhookAttempt{
			DeliveryID:    d.ID,
			AttemptNumber: 2,
			StatusCode:    &okStatus,
			ResponseBody:  &okBody,
			DurationMS:    120,
		}))

		attempts, err := repo.AttemptsForDelivery(context.Background(), d.ID)
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		assert.Equal(t, 1, attempts[0].AttemptNumber)
		require.NotNil(t, attempts[0].Error)
		assert.Equal(t, timeoutErr, *attempts[0].Error)
		assert.Equal(t, 2, attempts[1].AttemptNumber)
		require.NotNil(t, attempts[1].StatusCode)
		assert.Equal(t, 200, *attempts[1].StatusCode)
	})
}

func TestWebhookRepo_PurgeOldAttempts(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewWebhookRepo(db, WebhookRepoConfig{})
		key := createTestPartnerKey(t, db)
		job := createTestJob(t, db, key.ID)
		d := enqueueTestDelivery(t, repo, job)

		require.NoError(t, repo.RecordAttempt(context.Background(), &model.WebhookAttempt{
			DeliveryID:    d.ID,
			AttemptNumber: 1,
			DurationMS:    50,
		}))

		// Attempts for in-flight deliveries are kept regardless of age.
		purged, err := repo.PurgeOldAttempts(context.Background(), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Zero(t, purged)

		require.NoError(t, repo.MarkDelivered(context.Background(), d.ID, 200))

		// Nothing is old enough yet.
		purged, err = repo.PurgeOldAttempts(context.Background(), time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, purged)

		purged, err = repo.PurgeOldAttempts(context.Background(), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, purged)

		attempts, err := repo.AttemptsForDelivery(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Empty(t, attempts)
	})
}
