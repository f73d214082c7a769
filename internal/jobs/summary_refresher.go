package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/internal/analytics"
	"github.com/Lumenline/optimizer-dashboard/internal/publisher"
	"github.com/Lumenline/optimizer-dashboard/internal/store"
)

// SummaryCacheKey is where the refreshed summary lands in Redis; the
// summary handler reads the same key.
const SummaryCacheKey = "metrics:summary"

// SummaryRefresher periodically recomputes the dashboard summary from
// BigQuery, caches it in Redis and emits a NATS event indicating summary
// recalculation completion.
type SummaryRefresher struct {
	logger    *zap.Logger
	analytics *analytics.Client
	store     store.Store
	publisher *publisher.Publisher
	interval  time.Duration
	cacheTTL  time.Duration
	stopCh    chan struct{}
}

// NewSummaryRefresher constructs a background job that runs periodically.
func NewSummaryRefresher(
	logger *zap.Logger,
	ac *analytics.Client,
	st store.Store,
	pub *publisher.Publisher,
	interval, cacheTTL time.Duration,
) *SummaryRefresher {
	return &SummaryRefresher{
		logger:    logger,
		analytics: ac,
		store:     st,
		publisher: pub,
		interval:  interval,
		cacheTTL:  cacheTTL,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the summary refresh loop.
func (r *SummaryRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("summary_refresher.started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("summary_refresher.stopped (manual stop)")
			return
		case <-ctx.Done():
			r.logger.Info("summary_refresher.stopped (context canceled)")
			return
		}
	}
}

// Stop gracefully halts the refresher.
func (r *SummaryRefresher) Stop() {
	close(r.stopCh)
}

// runOnce executes one refresh cycle.
func (r *SummaryRefresher) runOnce(ctx context.Context) {
	start := time.Now()
	r.logger.Info("summary_refresher.running")

	summary, err := r.analytics.Summary(ctx)
	if err != nil {
		r.logger.Error("summary_refresher.query_failed", zap.Error(err))
		return
	}

	if err := r.store.SetJSON(ctx, SummaryCacheKey, summary, r.cacheTTL); err != nil {
		r.logger.Warn("summary_refresher.cache_write_failed", zap.Error(err))
	}

	// Emit event for downstream consumers (UI pushes, alerting)
	event := map[string]any{
		"event":             "evt.metrics.summary.refreshed.v1",
		"timestamp":         time.Now().UTC(),
		"duration_ms":       time.Since(start).Milliseconds(),
		"total_runs":        summary.TotalRuns,
		"total_savings_usd": summary.TotalSavingsUSD,
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, "evt.metrics.summary.refreshed.v1", event); err != nil {
			r.logger.Warn("summary_refresher.nats_publish_failed", zap.Error(err))
		}
	}

	r.logger.Info("summary_refresher.success",
		zap.Duration("duration", time.Since(start)))
}
