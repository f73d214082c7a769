package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/internal/metrics"
	"github.com/Lumenline/optimizer-dashboard/internal/optimizer"
	"github.com/Lumenline/optimizer-dashboard/internal/publisher"
	"github.com/Lumenline/optimizer-dashboard/internal/store"
	"github.com/Lumenline/optimizer-dashboard/pkg/cache"
	"github.com/Lumenline/optimizer-dashboard/pkg/eventbus"
	"github.com/Lumenline/optimizer-dashboard/pkg/model"
)

// Service owns the run ledger: it records optimizer results arriving over
// any channel (webhook, queue, poll), serves reads, and fans status changes
// out to NATS and the in-process bus feeding the live websocket feed.
type Service struct {
	logger    *zap.Logger
	store     store.Store
	publisher *publisher.Publisher
	bus       *eventbus.Bus[model.RunStatusEvent]
	client    *optimizer.Client // nil when no optimizer API is configured

	// seen short-circuits duplicate terminal postings without a DB trip.
	seen *cache.Cache[model.RunStatus]
}

// NewService wires the run service. client may be nil.
func NewService(
	logger *zap.Logger,
	st store.Store,
	pub *publisher.Publisher,
	bus *eventbus.Bus[model.RunStatusEvent],
	client *optimizer.Client,
) *Service {
	return &Service{
		logger:    logger,
		store:     st,
		publisher: pub,
		bus:       bus,
		client:    client,
		seen:      cache.New[model.RunStatus](10 * time.Minute),
	}
}

// RecordResult ingests one optimizer result posting. source names the
// channel it arrived on ("webhook", "queue", "poll") for diagnostics and
// events. Recording is idempotent by run id.
func (s *Service) RecordResult(ctx context.Context, posting *model.ResultPosting, source string) error {
	if err := posting.Validate(); err != nil {
		return err
	}

	status := model.NormalizeRunStatus(posting.Status)
	if prev, ok := s.seen.Get(posting.RunID); ok && prev == status && status.IsTerminal() {
		s.logger.Debug("runs.duplicate_posting_skipped",
			zap.String("run_id", posting.RunID),
			zap.String("status", string(status)))
		return nil
	}

	run := model.OptimizationRun{
		ID:              posting.RunID,
		ProjectID:       posting.ProjectID,
		Status:          status,
		QueriesAnalyzed: posting.QueriesAnalyzed,
		SavingsUSD:      posting.SavingsUSD,
		Error:           posting.Error,
		Dimensions:      posting.Dimensions,
		StartedAt:       posting.StartedAt,
		CompletedAt:     posting.CompletedAt,
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	if err := s.store.UpsertRun(ctx, run); err != nil {
		metrics.IncError("runs", "upsert_failed")
		return fmt.Errorf("record run %s: %w", posting.RunID, err)
	}
	s.seen.Put(posting.RunID, status)

	evt := model.RunStatusEvent{
		RunID:     posting.RunID,
		ProjectID: posting.ProjectID,
		Status:    status,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRunStatus(ctx, evt); err != nil {
			s.logger.Warn("runs.publish_failed",
				zap.String("run_id", posting.RunID),
				zap.Error(err))
		}
	}
	if s.bus != nil {
		s.bus.Publish(evt)
	}

	s.logger.Info("runs.result_recorded",
		zap.String("run_id", posting.RunID),
		zap.String("status", string(status)),
		zap.String("source", source))
	return nil
}

// Trigger asks the external optimizer to start a run and seeds the ledger
// with the queued row.
func (s *Service) Trigger(ctx context.Context, projectID, triggeredBy string) (*model.OptimizationRun, error) {
	if s.client == nil {
		return nil, fmt.Errorf("optimizer API is not configured (set OPTIMIZER_BASE_URL)")
	}

	resp, err := s.client.TriggerRun(ctx, optimizer.TriggerRequest{
		ProjectID:   projectID,
		TriggeredBy: triggeredBy,
	})
	if err != nil {
		metrics.IncError("runs", "trigger_failed")
		return nil, err
	}

	runID := resp.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	startedAt := resp.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	run := model.OptimizationRun{
		ID:          runID,
		ProjectID:   projectID,
		Status:      model.NormalizeRunStatus(resp.Status),
		TriggeredBy: triggeredBy,
		StartedAt:   startedAt,
	}
	if run.Status == "" {
		run.Status = model.RunStatusQueued
	}
	if err := s.store.UpsertRun(ctx, run); err != nil {
		s.logger.Warn("runs.trigger_ledger_write_failed",
			zap.String("run_id", runID),
			zap.Error(err))
	}
	return &run, nil
}

// List pages the ledger.
func (s *Service) List(ctx context.Context, f store.RunFilter) ([]model.OptimizationRun, error) {
	return s.store.ListRuns(ctx, f)
}

// Get fetches one run; nil means not found.
func (s *Service) Get(ctx context.Context, runID string) (*model.OptimizationRun, error) {
	return s.store.GetRun(ctx, runID)
}
