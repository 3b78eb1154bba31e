package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/testutil"
)

// backdateJobCreated rewrites created_at so reaper cutoffs can be tested
// without sleeping.
func backdateJobCreated(t *testing.T, db *sql.DB, jobID string, age time.Duration) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		UPDATE jobs SET created_at = now() - make_interval(secs => $2) WHERE id = $1
	`, jobID, age.Seconds())
	require.NoError(t, err)
}

func backdateJobCompleted(t *testing.T, db *sql.DB, jobID string, age time.Duration) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		UPDATE jobs SET completed_at = now() - make_interval(secs => $2), updated_at = now() - make_interval(secs => $2) WHERE id = $1
	`, jobID, age.Seconds())
	require.NoError(t, err)
}

func TestJobRepo_FailStalePendingJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, JobRepoConfig{})
		key := createTestPartnerKey(t, db)

		stale, err := repo.Create(context.Background(), key.ID, &model.CreateJobRequest{
			Type:    model.JobTypeCallAnalysis,
			Payload: json.RawMessage(`{"recording_url": "https://recordings.example.com/stale.wav"}`),
		})
		require.NoError(t, err)
		backdateJobCreated(t, db, stale.ID, 2*time.Hour)

		fresh, err := repo.Create(context.Background(), key.ID, &model.CreateJobRequest{
			Type:    model.JobTypeCallAnalysis,
			Payload: json.RawMessage(`{"recording_url": "https://recordings.example.com/fresh.wav"}`),
		})
		require.NoError(t, err)

		failed, err := repo.FailStalePendingJobs(context.Background(), time.Hour, 100)
		require.NoError(t, err)
		assert.EqualValues(t, 1, failed)

		got, err := repo.GetByID(context.Background(), stale.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		require.NotNil(t, got.LastError)
		assert.Contains(t, *got.LastError, "timed out")

		got, err = repo.GetByID(context.Background(), fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
	})
}

func TestJobRepo_FailStalePendingJobs_BatchLimit(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, JobRepoConfig{})
		key := createTestPartnerKey(t, db)

		for i := 0; i < 3; i++ {
			job, err := repo.Create(context.Background(), key.ID, &model.CreateJobRequest{
				Type:    model.JobTypeSimulation,
				Payload: json.RawMessage(`{"scenario_id": "batch"}`),
			})
			require.NoError(t, err)
			backdateJobCreated(t, db, job.ID, 2*time.Hour)
		}

		failed, err := repo.FailStalePendingJobs(context.Background(), time.Hour, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 2, failed)

		failed, err = repo.FailStalePendingJobs(context.Background(), time.Hour, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 1, failed)
	})
}

func TestJobRepo_DeleteOldJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, JobRepoConfig{})
		key := createTestPartnerKey(t, db)

		old, err := repo.Create(context.Background(), key.ID, &model.CreateJobRequest{
			Type:    model.JobTypeCallAnalysis,
			Payload: json.RawMessage(`{"recording_url": "https://recordings.example.com/old.wav"}`),
		})
		require.NoError(t, err)
		_, err = repo.ReserveNext(context.Background(), model.JobTypeCallAnalysis, 30)
		require.NoError(t, err)
		_, applied, err := repo.Complete(context.Background(), old.ID, nil)
		require.NoError(t, err)
		require.True(t, applied)
		backdateJobCompleted(t, db, old.ID, 48*time.Hour)

		recent, err := repo.Create(context.Background(), key.ID, &model.CreateJobRequest{
			Type:    model.JobTypeCallAnalysis,
			Payload: json.RawMessage(`{"recording_url": "https://recordings.example.com/recent.wav"}`),
		})
		require.NoError(t, err)
		_, err = repo.ReserveNext(context.Background(), model.JobTypeCallAnalysis, 30)
		require.NoError(t, err)
		_, applied, err = repo.Complete(context.Background(), recent.ID, nil)
		require.NoError(t, err)
		require.True(t, applied)

		deleted, err := repo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
			Status:    model.JobStatusCompleted,
			MaxAge:    24 * time.Hour,
			BatchSize: 100,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		_, err = repo.GetByID(context.Background(), old.ID)
		require.ErrorIs(t, err, ErrJobNotFound)

		_, err = repo.GetByID(context.Background(), recent.ID)
		require.NoError(t, err)
	})
}

func TestJobRepo_DeleteOldJobs_RejectsInvalidStatus(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, JobRepoConfig{})

		_, err := repo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
			Status:    model.JobStatus("archived"),
			MaxAge:    time.Hour,
			BatchSize: 10,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid job status")
	})
}
