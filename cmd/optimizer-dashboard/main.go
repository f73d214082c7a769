package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/Lumenline/optimizer-dashboard/internal/amqp"
	"github.com/Lumenline/optimizer-dashboard/internal/analytics"
	"github.com/Lumenline/optimizer-dashboard/internal/api"
	"github.com/Lumenline/optimizer-dashboard/internal/gcpcred"
	"github.com/Lumenline/optimizer-dashboard/internal/jobs"
	"github.com/Lumenline/optimizer-dashboard/internal/live"
	"github.com/Lumenline/optimizer-dashboard/internal/metrics"
	"github.com/Lumenline/optimizer-dashboard/internal/optimizer"
	"github.com/Lumenline/optimizer-dashboard/internal/publisher"
	"github.com/Lumenline/optimizer-dashboard/internal/rate"
	"github.com/Lumenline/optimizer-dashboard/internal/runs"
	"github.com/Lumenline/optimizer-dashboard/internal/store"
	"github.com/Lumenline/optimizer-dashboard/pkg/config"
	"github.com/Lumenline/optimizer-dashboard/pkg/eventbus"
	"github.com/Lumenline/optimizer-dashboard/pkg/logger"
	"github.com/Lumenline/optimizer-dashboard/pkg/model"
	"github.com/Lumenline/optimizer-dashboard/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [optimizer-dashboard]...")
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- Credential resolution (memoized for the process lifetime) ---
	resolution, resFailure := gcpcred.ResolveCredentials(logger.L())
	if resolution != nil {
		metrics.IncResolution("success")
	} else {
		metrics.IncResolution(string(resFailure.Kind))
		if resFailure.Kind == gcpcred.KindMissing && cfg.AllowAmbient {
			// Nothing configured at all: fall through to ambient identity.
			logg.Info("no explicit GCP credential configured; relying on ambient credentials")
			resFailure = nil
		} else {
			logg.Warnw("credential resolution failed; analytics endpoints will answer 503",
				"kind", resFailure.Kind,
				"message", resFailure.Message)
		}
	}

	// --- BigQuery analytics client ---
	var analyticsClient *analytics.Client
	if resolution != nil || resFailure == nil {
		ac, err := analytics.NewClient(ctx, resolution, analytics.Options{
			ProjectID:    cfg.BQProjectID,
			Dataset:      cfg.BQDataset,
			Timeout:      cfg.BQQueryTimeout,
			AllowAmbient: cfg.AllowAmbient,
		}, logger.L())
		if err != nil {
			logg.Warnw("failed to init BigQuery client; analytics endpoints will answer 503", "error", err)
		} else {
			analyticsClient = ac
		}
	}

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logger.L())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(nc, "evt.run", "OPTIMIZER_DASHBOARD")
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: 5,
		Burst:             10,
		Cooldown:          1 * time.Second,
	})

	// --- External optimizer client (optional) ---
	var optClient *optimizer.Client
	if cfg.OptimizerBaseURL != "" {
		optClient = optimizer.NewClient(logger.L(), rateMgr, cfg.OptimizerBaseURL, cfg.OptimizerAPIKey)
	} else {
		logg.Warn("OPTIMIZER_BASE_URL not configured; run triggering and poll fallback disabled")
	}

	// --- In-process event bus (feeds the websocket live hub) ---
	bus := eventbus.New[model.RunStatusEvent](64)
	defer bus.Close()

	// --- Run service ---
	runSvc := runs.NewService(logger.L(), st, pub, bus, optClient)

	// --- Poller (fallback for webhooks) ---
	var poller *runs.Poller
	if optClient != nil {
		poller = runs.NewPoller(logger.L(), runSvc, st, optClient, cfg.RunPollInterval)
		go poller.Start(ctx)
	}

	// --- AMQP consumer (optional ingestion path) ---
	var consumer *amqp.Consumer
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewConsumer(cfg.AMQPURL, cfg.AMQPResultsQueue, runSvc, logger.L())
		if err != nil {
			logg.Fatalw("failed to init AMQP consumer", "error", err)
		}
		if err := consumer.Start(ctx); err != nil {
			logg.Fatalw("failed to start AMQP consumer", "error", err)
		}
	}

	// --- Summary refresher ---
	var refresher *jobs.SummaryRefresher
	if analyticsClient != nil {
		refresher = jobs.NewSummaryRefresher(logger.L(), analyticsClient, st, pub,
			cfg.SummaryRefreshInterval, cfg.SummaryCacheTTL)
		go refresher.Start(ctx)
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := &api.Handler{
		Logger:      logger.L(),
		Runs:        runSvc,
		Analytics:   analyticsClient,
		Store:       st,
		Resolution:  resolution,
		ResFailure:  resFailure,
		SummaryTTL:  cfg.SummaryCacheTTL,
		DefaultDays: cfg.TimeseriesDefaultDays,
	}
	webhookHandler := api.NewWebhookHandler(logger.L(), runSvc,
		cfg.WebhookSecret, cfg.WebhookSignatureHeader)
	hub := live.NewHub(logger.L(), bus)

	api.RegisterRoutes(app, nc, st, handler, webhookHandler, hub)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	// --- Main process stays alive until interrupted ---
	logg.Infow("[optimizer-dashboard] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"dataset", cfg.BQDataset,
		"explicit_credential", resolution != nil)

	<-ctx.Done()
	logg.Info("shutting down [optimizer-dashboard]...")

	if poller != nil {
		poller.Stop()
	}
	if refresher != nil {
		refresher.Stop()
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logg.Warnw("amqp.close_failed", "error", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if analyticsClient != nil {
		if err := analyticsClient.Close(); err != nil {
			logg.Warnw("bq.close_failed", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
