package webhookrunner

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	domainwebhook "github.com/dialcoach/partner-api/internal/domain/webhook"
	"github.com/dialcoach/partner-api/internal/testutil"
)

// flakyReceiver answers 503 until the configured attempt, then 200. It keeps
// the X-Webhook-Attempt header of every POST it sees.
type flakyReceiver struct {
	mu        sync.Mutex
	succeedOn int
	attempts  []string
	bodies    [][]byte
	sigs      []string
}

func (f *flakyReceiver) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body := make([]byte, 4096)
		n, _ := req.Body.Read(body)

		f.mu.Lock()
		f.attempts = append(f.attempts, req.Header.Get("X-Webhook-Attempt"))
		f.bodies = append(f.bodies, body[:n])
		f.sigs = append(f.sigs, req.Header.Get("X-Partner-Signature"))
		n = len(f.attempts)
		f.mu.Unlock()

		if f.succeedOn > 0 && n >= f.succeedOn {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

func (f *flakyReceiver) posts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func (f *flakyReceiver) attemptHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.attempts...)
}

// seedDelivery creates the partner key, job, and pending delivery rows a live
// runner needs, all through the production repositories.
func seedDelivery(t *testing.T, db *sql.DB, url string, maxAttempts int) (*data.WebhookRepo, *data.PartnerKeyRepo, *model.WebhookDelivery) {
	t.Helper()

	keyRepo := data.NewPartnerKeyRepo(db, data.PartnerKeyRepoConfig{})
	key, err := keyRepo.Create(context.Background(), &model.PartnerKey{
		PartnerName:   "Acme Dialer",
		KeyID:         uuid.NewString(),
		SecretHash:    "bcrypt-hash",
		WebhookSecret: "whsec_integration",
		Environment:   model.EnvironmentTest,
		IsActive:      true,
	})
	require.NoError(t, err)

	jobRepo := data.NewJobRepo(db, data.JobRepoConfig{})
	job, err := jobRepo.Create(context.Background(), key.ID, &model.CreateJobRequest{
		Type:    model.JobTypeCallAnalysis,
		Payload: json.RawMessage(`{"recording_url": "https://recordings.example.com/run.wav"}`),
	})
	require.NoError(t, err)

	webhookRepo := data.NewWebhookRepo(db, data.WebhookRepoConfig{})
	delivery, err := webhookRepo.Enqueue(context.Background(), &model.WebhookDelivery{
		JobID:        job.ID,
		PartnerKeyID: key.ID,
		EventType:    model.WebhookEventJobCompleted,
		EventID:      uuid.NewString(),
		URL:          url,
		Payload:      json.RawMessage(`{"event_type": "job.completed", "data": {"job_id": "` + job.ID + `"}}`),
		MaxAttempts:  maxAttempts,
	})
	require.NoError(t, err)

	return webhookRepo, keyRepo, delivery
}

// integrationConfig keeps the backoff tiny so rescheduled deliveries come due
// within the test instead of thirty seconds later.
func integrationConfig(maxAttempts int) config.WebhookRunnerConfig {
	return config.WebhookRunnerConfig{
		Interval:        time.Second,
		BatchSize:       10,
		DeliveryTimeout: 5 * time.Second,
		MaxAttempts:     maxAttempts,
		RetryBaseDelay:  time.Millisecond,
		RetryMaxDelay:   2 * time.Millisecond,
	}
}

// runUntil drives the delivery loop until the delivery leaves pending or the
// deadline lapses. Between passes it waits out the millisecond backoff.
func runUntil(t *testing.T, r *Runner, repo *data.WebhookRepo, deliveryID string) *model.WebhookDelivery {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, r.deliverDue(context.Background()))

		d, err := repo.GetByID(context.Background(), deliveryID)
		require.NoError(t, err)
		if d.Status != model.DeliveryStatusPending {
			return d
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("delivery never reached a terminal status")
	return nil
}

func TestRunner_Integration_RetriesUntilDelivered(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		receiver := &flakyReceiver{succeedOn: 5}
		srv := httptest.NewServer(receiver.handler())
		defer srv.Close()

		webhookRepo, keyRepo, delivery := seedDelivery(t, db, srv.URL, 5)

		r, err := NewRunner(RunnerOptions{
			Config:     integrationConfig(5),
			Deliveries: webhookRepo,
			Keys:       keyRepo,
		})
		require.NoError(t, err)

		final := runUntil(t, r, webhookRepo, delivery.ID)

		assert.Equal(t, model.DeliveryStatusDelivered, final.Status)
		assert.Equal(t, 5, final.AttemptCount)
		require.NotNil(t, final.LastStatusCode)
		assert.Equal(t, http.StatusOK, *final.LastStatusCode)

		// Every attempt went over the wire exactly once, numbered from one.
		assert.Equal(t, []string{"1", "2", "3", "4", "5"}, receiver.attemptHeaders())

		// Each send is signed with the partner's webhook secret.
		for i, sig := range receiver.sigs {
			assert.True(t, domainwebhook.Verify("whsec_integration", receiver.bodies[i], sig))
		}

		// The attempt history matches what the receiver saw.
		attempts, err := webhookRepo.AttemptsForDelivery(context.Background(), delivery.ID)
		require.NoError(t, err)
		require.Len(t, attempts, 5)
		for i, a := range attempts {
			assert.Equal(t, i+1, a.AttemptNumber)
			require.NotNil(t, a.StatusCode)
		}
		assert.Equal(t, http.StatusServiceUnavailable, *attempts[0].StatusCode)
		assert.Equal(t, http.StatusOK, *attempts[4].StatusCode)
	})
}

func TestRunner_Integration_ExhaustedBudgetFails(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		receiver := &flakyReceiver{} // never succeeds
		srv := httptest.NewServer(receiver.handler())
		defer srv.Close()

		webhookRepo, keyRepo, delivery := seedDelivery(t, db, srv.URL, 3)

		r, err := NewRunner(RunnerOptions{
			Config:     integrationConfig(3),
			Deliveries: webhookRepo,
			Keys:       keyRepo,
		})
		require.NoError(t, err)

		final := runUntil(t, r, webhookRepo, delivery.ID)

		assert.Equal(t, model.DeliveryStatusFailed, final.Status)
		assert.Equal(t, 3, final.AttemptCount)
		assert.Equal(t, 3, receiver.posts())

		// A failed delivery stays off the due scan.
		require.NoError(t, r.deliverDue(context.Background()))
		assert.Equal(t, 3, receiver.posts())

		attempts, err := webhookRepo.AttemptsForDelivery(context.Background(), delivery.ID)
		require.NoError(t, err)
		require.Len(t, attempts, 3)
		assert.Equal(t, []string{"1", "2", "3"}, receiver.attemptHeaders())
	})
}
