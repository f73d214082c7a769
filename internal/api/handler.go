package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/internal/analytics"
	"github.com/Lumenline/optimizer-dashboard/internal/gcpcred"
	"github.com/Lumenline/optimizer-dashboard/internal/jobs"
	"github.com/Lumenline/optimizer-dashboard/internal/metrics"
	"github.com/Lumenline/optimizer-dashboard/internal/runs"
	"github.com/Lumenline/optimizer-dashboard/internal/store"
	"github.com/Lumenline/optimizer-dashboard/pkg/model"
	"github.com/Lumenline/optimizer-dashboard/pkg/utils"
)

// Handler serves the dashboard's JSON API.
type Handler struct {
	Logger      *zap.Logger
	Runs        *runs.Service
	Analytics   *analytics.Client // nil when credential resolution failed
	Store       store.Store
	Resolution  *gcpcred.Resolution
	ResFailure  *gcpcred.Failure
	SummaryTTL  time.Duration
	DefaultDays int
}

// failureBody renders a resolution failure for the response body. The full
// ordered remediation list ships verbatim: truncating it defeats the point
// of the resolver's diagnostics.
func failureBody(f *gcpcred.Failure) fiber.Map {
	return fiber.Map{
		"error":       "analytics credentials unavailable",
		"kind":        f.Kind,
		"message":     f.Message,
		"details":     f.Details,
		"remediation": f.Remediation,
	}
}

// requireAnalytics guards endpoints that need the BigQuery client.
func (h *Handler) requireAnalytics(c *fiber.Ctx) (*analytics.Client, error) {
	if h.Analytics != nil {
		return h.Analytics, nil
	}
	f := h.ResFailure
	if f == nil {
		f = &gcpcred.Failure{
			Kind:        gcpcred.KindMissing,
			Message:     "analytics store client was not initialized",
			Remediation: []string{"Check service startup logs for the BigQuery client error."},
		}
	}
	return nil, c.Status(fiber.StatusServiceUnavailable).JSON(failureBody(f))
}

// GetCredentials reports credential resolution diagnostics.
// GET /api/v1/credentials
func (h *Handler) GetCredentials(c *fiber.Ctx) error {
	if h.Resolution != nil {
		return c.JSON(fiber.Map{
			"status":     "resolved",
			"provenance": h.Resolution.Source,
			"project_id": h.Resolution.ProjectID,
			"principal":  utils.MaskEmail(h.Resolution.Credential.ClientEmail),
		})
	}
	if h.ResFailure != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(failureBody(h.ResFailure))
	}
	// No explicit credential; running on ambient/platform identity.
	return c.JSON(fiber.Map{
		"status":     "ambient",
		"provenance": "application-default credentials",
	})
}

// ListRuns pages the run ledger.
// GET /api/v1/runs?project=&status=&limit=&offset=
func (h *Handler) ListRuns(c *fiber.Ctx) error {
	f := store.RunFilter{
		ProjectID: c.Query("project"),
		Status:    model.RunStatus(c.Query("status")),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}
	items, err := h.Runs.List(c.UserContext(), f)
	if err != nil {
		h.Logger.Error("api.list_runs_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list runs"})
	}
	return c.JSON(fiber.Map{
		"items":  items,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// GetRun returns one ledger row.
// GET /api/v1/runs/:id
func (h *Handler) GetRun(c *fiber.Ctx) error {
	run, err := h.Runs.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		h.Logger.Error("api.get_run_failed", zap.String("run_id", c.Params("id")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load run"})
	}
	if run == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}
	return c.JSON(run)
}

// TriggerRun asks the external optimizer to start a run.
// POST /api/v1/runs/trigger
func (h *Handler) TriggerRun(c *fiber.Ctx) error {
	var req struct {
		ProjectID   string `json:"project_id"`
		TriggeredBy string `json:"triggered_by"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if req.ProjectID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "project_id is required"})
	}

	run, err := h.Runs.Trigger(c.UserContext(), req.ProjectID, req.TriggeredBy)
	if err != nil {
		h.Logger.Error("api.trigger_failed", zap.String("project_id", req.ProjectID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(run)
}

// GetSummary serves the headline numbers, Redis-cached.
// GET /api/v1/metrics/summary
func (h *Handler) GetSummary(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var cached model.MetricsSummary
	if err := h.Store.GetJSON(ctx, jobs.SummaryCacheKey, &cached); err == nil {
		metrics.IncSummaryCache("hit")
		return c.JSON(cached)
	}
	metrics.IncSummaryCache("miss")

	ac, err := h.requireAnalytics(c)
	if ac == nil {
		return err
	}
	summary, err := ac.Summary(ctx)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "summary query failed"})
	}
	if err := h.Store.SetJSON(ctx, jobs.SummaryCacheKey, summary, h.SummaryTTL); err != nil {
		h.Logger.Warn("api.summary_cache_write_failed", zap.Error(err))
	}
	return c.JSON(summary)
}

// GetRunMetrics serves the per-query metric rows for a run.
// GET /api/v1/metrics/runs/:id?limit=&offset=
func (h *Handler) GetRunMetrics(c *fiber.Ctx) error {
	ac, err := h.requireAnalytics(c)
	if ac == nil {
		return err
	}
	items, err := ac.RunMetrics(c.UserContext(), c.Params("id"),
		c.QueryInt("limit", 100), c.QueryInt("offset", 0))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "run metrics query failed"})
	}
	return c.JSON(fiber.Map{"items": items})
}

// GetTimeseries serves the daily savings series.
// GET /api/v1/metrics/timeseries?days=N
func (h *Handler) GetTimeseries(c *fiber.Ctx) error {
	ac, err := h.requireAnalytics(c)
	if ac == nil {
		return err
	}
	days := c.QueryInt("days", h.DefaultDays)
	points, err := ac.Timeseries(c.UserContext(), days)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "timeseries query failed"})
	}
	return c.JSON(fiber.Map{"days": days, "points": points})
}
