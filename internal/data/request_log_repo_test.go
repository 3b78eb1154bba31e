package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/testutil"
)

func insertTestLog(t *testing.T, repo *RequestLogRepo, entry model.RequestLogEntry) {
	t.Helper()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = testutil.TestTime()
	}
	require.NoError(t, repo.Insert(context.Background(), &entry))
}

func TestRequestLogRepo_InsertAndRecentForKey(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewRequestLogRepo(db, nil)
		key := createTestPartnerKey(t, db)
		other := createTestPartnerKey(t, db)

		base := testutil.TestTime()
		for i := 0; i < 3; i++ {
			insertTestLog(t, repo, model.RequestLogEntry{
				PartnerKeyID: &key.ID,
				Method:       "POST",
				Path:         "/v1/jobs",
				Status:       202,
				DurationMS:   int64(10 + i),
				IP:           "203.0.113.10",
				UserAgent:    "partner-sdk/1.2",
				CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			})
		}
		insertTestLog(t, repo, model.RequestLogEntry{
			PartnerKeyID: &other.ID,
			Method:       "GET",
			Path:         "/v1/jobs/abc",
			Status:       200,
			IP:           "203.0.113.11",
			CreatedAt:    base,
		})

		entries, err := repo.RecentForKey(context.Background(), key.ID, 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)

		// Newest first.
		assert.EqualValues(t, 12, entries[0].DurationMS)
		assert.EqualValues(t, 10, entries[2].DurationMS)
		for _, e := range entries {
			require.NotNil(t, e.PartnerKeyID)
			assert.Equal(t, key.ID, *e.PartnerKeyID)
		}

		entries, err = repo.RecentForKey(context.Background(), key.ID, 2)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestRequestLogRepo_SearchFilters(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewRequestLogRepo(db, nil)
		key := createTestPartnerKey(t, db)

		base := testutil.TestTime()
		rows := []model.RequestLogEntry{
			{PartnerKeyID: &key.ID, Method: "POST", Path: "/v1/jobs", Status: 202, CreatedAt: base},
			{PartnerKeyID: &key.ID, Method: "GET", Path: "/v1/jobs/abc", Status: 200, CreatedAt: base.Add(time.Minute)},
			{PartnerKeyID: &key.ID, Method: "POST", Path: "/v1/jobs", Status: 429, CreatedAt: base.Add(2 * time.Minute)},
			{PartnerKeyID: &key.ID, Method: "GET", Path: "/v1/companies/xyz/access", Status: 403, CreatedAt: base.Add(3 * time.Minute)},
		}
		for _, row := range rows {
			insertTestLog(t, repo, row)
		}

		// Method filter is case-insensitive on input.
		found, err := repo.Search(context.Background(), &model.RequestLogQuery{Method: "post"})
		require.NoError(t, err)
		assert.Len(t, found, 2)

		found, err = repo.Search(context.Background(), &model.RequestLogQuery{PathPrefix: "/v1/jobs"})
		require.NoError(t, err)
		assert.Len(t, found, 3)

		found, err = repo.Search(context.Background(), &model.RequestLogQuery{MinStatus: 400})
		require.NoError(t, err)
		require.Len(t, found, 2)
		// Newest first.
		assert.Equal(t, 403, found[0].Status)
		assert.Equal(t, 429, found[1].Status)

		since := base.Add(90 * time.Second)
		found, err = repo.Search(context.Background(), &model.RequestLogQuery{Since: &since})
		require.NoError(t, err)
		assert.Len(t, found, 2)

		found, err = repo.Search(context.Background(), &model.RequestLogQuery{
			PartnerKeyID: key.ID,
			Method:       "POST",
			MinStatus:    400,
		})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, 429, found[0].Status)

		found, err = repo.Search(context.Background(), &model.RequestLogQuery{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, found, 1)

		// A nil query lists everything within the default limit.
		found, err = repo.Search(context.Background(), nil)
		require.NoError(t, err)
		assert.Len(t, found, 4)
	})
}

func TestRequestLogRepo_PurgeOlderThan(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewRequestLogRepo(db, nil)
		key := createTestPartnerKey(t, db)

		base := testutil.TestTime()
		insertTestLog(t, repo, model.RequestLogEntry{
			PartnerKeyID: &key.ID, Method: "POST", Path: "/v1/jobs", Status: 202, CreatedAt: base,
		})
		insertTestLog(t, repo, model.RequestLogEntry{
			PartnerKeyID: &key.ID, Method: "POST", Path: "/v1/jobs", Status: 202, CreatedAt: base.Add(time.Hour),
		})

		purged, err := repo.PurgeOlderThan(context.Background(), base.Add(30*time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 1, purged)

		remaining, err := repo.RecentForKey(context.Background(), key.ID, 10)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.WithinDuration(t, base.Add(time.Hour), remaining[0].CreatedAt, time.Second)
	})
}
