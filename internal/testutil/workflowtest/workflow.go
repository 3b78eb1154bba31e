// Package workflowtest provides end-to-end harness utilities for exercising
// the partner job lifecycle against a real database: mint a credential,
// enqueue a job, reserve and finish it as a runner would, and observe the
// webhook deliveries that fall out.
package workflowtest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/data/testhelpers"
	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/service"
	"github.com/dialcoach/partner-api/internal/testutil"
)

// Options configures a workflow harness.
type Options struct {
	JobLease            time.Duration
	MaxDeliveryAttempts int

	// Clock, when set, drives the job queue's view of time so tests can
	// step past lease and retry deadlines without sleeping.
	Clock data.TimeProvider
}

// DefaultWorkflowOptions returns the options most lifecycle tests want.
func DefaultWorkflowOptions() Options {
	return Options{
		JobLease:            30 * time.Second,
		MaxDeliveryAttempts: 5,
	}
}

// ReceivedWebhook is one callback captured by the harness receiver.
type ReceivedWebhook struct {
	Method    string
	Path      string
	Body      []byte
	Signature string
	EventType string
}

// Harness wires the job, key, company, and webhook services over a shared
// test database plus an httptest callback receiver.
type Harness struct {
	t  testutil.TestingTB
	db *sql.DB

	Jobs      *service.JobService
	Keys      *service.PartnerKeyService
	Companies *service.CompanyService
	Webhooks  *service.WebhookService

	webhookRepo *data.WebhookRepo

	receiver *httptest.Server

	mu       sync.Mutex
	received []ReceivedWebhook
}

// NewHarness builds a harness over the given database. Callers own the
// database lifecycle; the harness owns its receiver and job listeners.
func NewHarness(t testutil.TestingTB, db *sql.DB, opts Options) *Harness {
	t.Helper()

	if opts.JobLease <= 0 {
		opts.JobLease = 30 * time.Second
	}
	if opts.MaxDeliveryAttempts <= 0 {
		opts.MaxDeliveryAttempts = 5
	}

	h := &Harness{t: t, db: db}
	h.receiver = httptest.NewServer(http.HandlerFunc(h.captureWebhook))

	h.webhookRepo = data.NewWebhookRepo(db, data.WebhookRepoConfig{})

	webhooks, err := service.NewWebhookService(service.WebhookServiceOptions{
		Deliveries: h.webhookRepo,
		Config: config.WebhookRunnerConfig{
			MaxAttempts:    opts.MaxDeliveryAttempts,
			RetryBaseDelay: time.Second,
		},
	})
	if err != nil {
		h.receiver.Close()
		t.Fatal("build webhook service:", err)
	}
	h.Webhooks = webhooks

	jobRepo := data.NewJobRepo(db, data.JobRepoConfig{})
	if opts.Clock != nil {
		jobRepo = testhelpers.NewJobRepoWithTimeProvider(db, data.JobRepoConfig{}, opts.Clock)
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:           jobRepo,
		DefaultLease:   opts.JobLease,
		EventPublisher: webhooks,
	})
	if err != nil {
		h.receiver.Close()
		t.Fatal("build job service:", err)
	}
	h.Jobs = jobs

	keys, err := service.NewPartnerKeyService(service.PartnerKeyServiceOptions{
		Repo: data.NewPartnerKeyRepo(db, data.PartnerKeyRepoConfig{}),
	})
	if err != nil {
		h.receiver.Close()
		t.Fatal("build key service:", err)
	}
	h.Keys = keys

	companies, err := service.NewCompanyService(service.CompanyServiceOptions{
		Repo: data.NewCompanyRepo(db, nil),
	})
	if err != nil {
		h.receiver.Close()
		t.Fatal("build company service:", err)
	}
	h.Companies = companies

	return h
}

// Close shuts down the receiver and any job listeners.
func (h *Harness) Close() {
	h.Jobs.StopAllListeners()
	h.receiver.Close()
}

// WebhookURL returns the harness callback receiver URL.
func (h *Harness) WebhookURL() string {
	return h.receiver.URL
}

// Received returns a snapshot of the callbacks captured so far.
func (h *Harness) Received() []ReceivedWebhook {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ReceivedWebhook, len(h.received))
	copy(out, h.received)
	return out
}

func (h *Harness) captureWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.received = append(h.received, ReceivedWebhook{
		Method:    r.Method,
		Path:      r.URL.Path,
		Body:      body,
		Signature: r.Header.Get("X-Partner-Signature"),
		EventType: r.Header.Get("X-Webhook-Event"),
	})
	h.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

// CreateCompany creates a company with the given name.
func (h *Harness) CreateCompany(ctx context.Context, name string) *model.Company {
	h.t.Helper()
	company, err := h.Companies.Create(ctx, &model.CreateCompanyRequest{Name: name})
	if err != nil {
		h.t.Fatal("create company:", err)
	}
	return company
}

// MintKey mints a test-environment partner credential, optionally bound to a company.
func (h *Harness) MintKey(ctx context.Context, partnerName string, companyID *string) *model.MintedKey {
	h.t.Helper()
	minted, err := h.Keys.Mint(ctx, &model.MintKeyRequest{
		PartnerName: partnerName,
		Environment: model.EnvironmentTest,
		CompanyID:   companyID,
	})
	if err != nil {
		h.t.Fatal("mint partner key:", err)
	}
	return minted
}

// Enqueue creates a job for the given partner key.
func (h *Harness) Enqueue(ctx context.Context, partnerKeyID string, req *model.CreateJobRequest) *model.Job {
	h.t.Helper()
	job, _, err := h.Jobs.Create(ctx, partnerKeyID, req)
	if err != nil {
		h.t.Fatal("enqueue job:", err)
	}
	return job
}

// EnqueueReplayed creates a job and reports whether it was an idempotent replay.
func (h *Harness) EnqueueReplayed(ctx context.Context, partnerKeyID string, req *model.CreateJobRequest) (*model.Job, bool) {
	h.t.Helper()
	job, replayed, err := h.Jobs.Create(ctx, partnerKeyID, req)
	if err != nil {
		h.t.Fatal("enqueue job:", err)
	}
	return job, replayed
}

// ReserveNext reserves the next due job of the given type, the way a runner does.
func (h *Harness) ReserveNext(ctx context.Context, jobType model.JobType) *model.Job {
	h.t.Helper()
	job, err := h.Jobs.ReserveNext(ctx, jobType, 0)
	if err != nil {
		h.t.Fatal("reserve job:", err)
	}
	return job
}

// Complete marks a reserved job successful with the given result document.
func (h *Harness) Complete(ctx context.Context, jobID, result string) {
	h.t.Helper()
	ok, err := h.Jobs.Complete(ctx, jobID, json.RawMessage(result))
	if err != nil {
		h.t.Fatal("complete job:", err)
	}
	if !ok {
		h.t.Fatalf("job %s was not running, cannot complete", jobID)
	}
}

// Fail marks a reserved job failed with the given error message.
func (h *Harness) Fail(ctx context.Context, jobID, errMsg string) {
	h.t.Helper()
	ok, err := h.Jobs.Fail(ctx, jobID, errMsg)
	if err != nil {
		h.t.Fatal("fail job:", err)
	}
	if !ok {
		h.t.Fatalf("job %s was not running, cannot fail", jobID)
	}
}

// ClaimDueDeliveries claims webhook deliveries that are due for sending.
func (h *Harness) ClaimDueDeliveries(ctx context.Context, limit int) []model.WebhookDelivery {
	h.t.Helper()
	deliveries, err := h.webhookRepo.ClaimDue(ctx, limit)
	if err != nil {
		h.t.Fatal("claim due deliveries:", err)
	}
	return deliveries
}

// MarkDelivered records a delivery as sent with the given status code.
func (h *Harness) MarkDelivered(ctx context.Context, deliveryID string, statusCode int) {
	h.t.Helper()
	if err := h.webhookRepo.MarkDelivered(ctx, deliveryID, statusCode); err != nil {
		h.t.Fatal("mark delivered:", err)
	}
}

// PostDelivery sends a claimed delivery payload to the harness receiver, the
// way the webhook runner would, and records the delivery outcome.
func (h *Harness) PostDelivery(ctx context.Context, d *model.WebhookDelivery) {
	h.t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		h.t.Fatal("build delivery request:", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", string(d.EventType))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatal("post delivery:", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			h.t.Logf("warning: close delivery response body: %v", cerr)
		}
	}()

	h.MarkDelivered(ctx, d.ID, resp.StatusCode)
}
