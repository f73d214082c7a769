package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lumenline/optimizer-dashboard/internal/live"
	"github.com/Lumenline/optimizer-dashboard/internal/store"
)

func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store,
	handler *Handler,
	webhookHandler *WebhookHandler,
	hub *live.Hub,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if nc == nil || !nc.IsConnected() {
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
			checks["nats"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		if handler.Analytics == nil {
			checks["analytics"] = "no credential"
		} else {
			checks["analytics"] = "ok"
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	// API routes
	v1 := app.Group("/api/v1")
	v1.Get("/credentials", handler.GetCredentials)
	v1.Get("/runs", handler.ListRuns)
	v1.Get("/runs/:id", handler.GetRun)
	v1.Post("/runs/trigger", handler.TriggerRun)
	v1.Get("/metrics/summary", handler.GetSummary)
	v1.Get("/metrics/runs/:id", handler.GetRunMetrics)
	v1.Get("/metrics/timeseries", handler.GetTimeseries)

	// Webhook route
	app.Post("/webhooks/optimizer/results", webhookHandler.HandleResultPosting)

	// Live feed
	if hub != nil {
		app.Use("/ws/live", live.UpgradeRequired)
		app.Get("/ws/live", hub.Handler())
	}
}
