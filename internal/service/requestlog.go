package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dialcoach/partner-api/config"
	"github.com/dialcoach/partner-api/internal/core"
	"github.com/dialcoach/partner-api/internal/domain/model"
	"github.com/dialcoach/partner-api/internal/observability/metrics"
	"github.com/dialcoach/partner-api/internal/observability/statsd"
)

// RequestLogServiceOptions groups dependencies for RequestLogService.
type RequestLogServiceOptions struct {
	Repo    core.RequestLogRepository // Required: request log repository
	Config  config.RequestLogConfig   // Required: buffer configuration
	Logger  *slog.Logger              // Optional: structured logger
	Metrics statsd.Sink               // Optional: metrics sink (StatsD-compatible)
}

// RequestLogService persists one audit row per inbound partner request.
// Recording is strictly off the request path: entries go through a bounded
// buffer drained by a single writer goroutine, and when the buffer is full the
// entry is dropped rather than blocking or failing the response.
type RequestLogService struct {
	repo    core.RequestLogRepository
	config  config.RequestLogConfig
	logger  *slog.Logger
	metrics statsd.Sink

	entries chan model.RequestLogEntry
	done    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// NewRequestLogService constructs a RequestLogService and starts its writer.
func NewRequestLogService(opts RequestLogServiceOptions) (*RequestLogService, error) {
	if opts.Repo == nil {
		return nil, errors.New("RequestLogRepository is required")
	}

	bufferSize := opts.Config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "request_log_service")
	}

	s := &RequestLogService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
		entries: make(chan model.RequestLogEntry, bufferSize),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}

	go s.writeLoop()

	return s, nil
}

// MustNewRequestLogService constructs a new RequestLogService and panics on error.
func MustNewRequestLogService(opts RequestLogServiceOptions) *RequestLogService {
	svc, err := NewRequestLogService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create RequestLogService: %v", err))
	}
	return svc
}

// Record buffers one request log entry. Never blocks; returns false when the
// entry was dropped because the buffer was full or the service is closed.
func (s *RequestLogService) Record(entry model.RequestLogEntry) bool {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	select {
	case <-s.closed:
		return false
	default:
	}

	select {
	case s.entries <- entry:
		return true
	default:
		if s.logger != nil {
			s.logger.Warn("request log buffer full, dropping entry",
				"method", entry.Method,
				"path", entry.Path,
			)
		}
		if s.metrics != nil {
			s.metrics.Count("request_log.dropped", 1, nil)
		}
		return false
	}
}

// Recent returns the newest log rows for one partner key.
func (s *RequestLogService) Recent(ctx context.Context, partnerKeyID string, limit int) ([]model.RequestLogEntry, error) {
	if partnerKeyID == "" {
		return nil, errors.New("partner key id is required")
	}
	entries, err := s.repo.RecentForKey(ctx, partnerKeyID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent request logs: %w", err)
	}
	return entries, nil
}

// Search runs the filtered admin listing.
func (s *RequestLogService) Search(ctx context.Context, q *model.RequestLogQuery) ([]model.RequestLogEntry, error) {
	entries, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search request logs: %w", err)
	}
	return entries, nil
}

// Close stops accepting entries and drains the buffer, bounded by the
// configured flush timeout. Safe to call more than once.
func (s *RequestLogService) Close() {
	s.closeOnce.Do(func() {
		// entries is never closed: Record may still be mid-send on another
		// goroutine. The writer observes closed, drains, and exits.
		close(s.closed)

		timeout := s.config.FlushTimeout
		if timeout <= 0 {
			timeout = time.Second
		}
		select {
		case <-s.done:
		case <-time.After(timeout):
			if s.logger != nil {
				s.logger.Warn("request log flush timed out", "timeout", timeout)
			}
		}
	})
}

func (s *RequestLogService) writeLoop() {
	defer close(s.done)

	for {
		select {
		case entry := <-s.entries:
			s.writeEntry(entry)
		case <-s.closed:
			// Flush whatever is already buffered, then stop.
			for {
				select {
				case entry := <-s.entries:
					s.writeEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *RequestLogService) writeEntry(entry model.RequestLogEntry) {
	// Per-entry timeout so one slow insert cannot wedge the drain.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := s.repo.Insert(ctx, &entry)
	cancel()

	if err != nil {
		// Audit logging must never surface to callers; operational log only.
		if s.logger != nil {
			s.logger.Warn("insert request log failed",
				"method", entry.Method,
				"path", entry.Path,
				"error", err,
			)
		}
		s.emitWriteMetric(metrics.ResultError)
		return
	}
	s.emitWriteMetric(metrics.ResultSuccess)
}

func (s *RequestLogService) emitWriteMetric(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Count("request_log.write", 1, map[string]string{"result": result})
}
