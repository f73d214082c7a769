package runs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/internal/optimizer"
	"github.com/Lumenline/optimizer-dashboard/internal/store"
)

// Poller is the webhook fallback: runs that sit in QUEUED/RUNNING past the
// stale threshold get their status re-fetched from the optimizer API
// directly. Deployments with reliable webhooks rarely see it do anything.
type Poller struct {
	logger   *zap.Logger
	service  *Service
	store    store.Store
	client   *optimizer.Client
	interval time.Duration
	stopCh   chan struct{}
}

// NewPoller builds the stale-run poller. client must be non-nil.
func NewPoller(logger *zap.Logger, svc *Service, st store.Store, client *optimizer.Client, interval time.Duration) *Poller {
	return &Poller{
		logger:   logger,
		service:  svc,
		store:    st,
		client:   client,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the poll loop until Stop or context cancellation.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("runs.poller_started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-p.stopCh:
			p.logger.Info("runs.poller_stopped")
			return
		case <-ctx.Done():
			p.logger.Info("runs.poller_stopped (context canceled)")
			return
		}
	}
}

// Stop halts the poll loop.
func (p *Poller) Stop() {
	close(p.stopCh)
}

func (p *Poller) pollOnce(ctx context.Context) {
	// A run is stale after two poll intervals without an update.
	ids, err := p.store.StaleRunIDs(ctx, 2*p.interval)
	if err != nil {
		p.logger.Warn("runs.stale_scan_failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	p.logger.Info("runs.polling_stale", zap.Int("count", len(ids)))
	for _, id := range ids {
		posting, err := p.client.RunStatus(ctx, id)
		if err != nil {
			p.logger.Warn("runs.poll_status_failed",
				zap.String("run_id", id),
				zap.Error(err))
			continue
		}
		if posting.RunID == "" {
			posting.RunID = id
		}
		if err := p.service.RecordResult(ctx, posting, "poll"); err != nil {
			p.logger.Warn("runs.poll_record_failed",
				zap.String("run_id", id),
				zap.Error(err))
		}
	}
}
