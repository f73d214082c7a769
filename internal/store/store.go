package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/pkg/model"
)

// Store defines the contract for caching and persisting run data.
type Store interface {
	UpsertRun(ctx context.Context, run model.OptimizationRun) error
	GetRun(ctx context.Context, runID string) (*model.OptimizationRun, error)
	ListRuns(ctx context.Context, f RunFilter) ([]model.OptimizationRun, error)
	StaleRunIDs(ctx context.Context, olderThan time.Duration) ([]string, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// RunFilter narrows and pages a ledger listing.
type RunFilter struct {
	ProjectID string
	Status    model.RunStatus
	Limit     int
	Offset    int
}

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

// UpsertRun inserts or updates a ledger row keyed by run id. Re-posting the
// same run is idempotent; status only moves forward out of terminal states
// when the incoming row is newer.
func (s *HybridStore) UpsertRun(ctx context.Context, run model.OptimizationRun) error {
	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO optimizer.run (
			run_id, project_id, status, triggered_by,
			queries_analyzed, savings_usd, error, dimensions,
			started_at, completed_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (run_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			queries_analyzed = EXCLUDED.queries_analyzed,
			savings_usd = EXCLUDED.savings_usd,
			error = EXCLUDED.error,
			dimensions = COALESCE(EXCLUDED.dimensions, optimizer.run.dimensions),
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
		WHERE optimizer.run.status NOT IN ('SUCCEEDED', 'FAILED', 'CANCELED')
		   OR EXCLUDED.status IN ('SUCCEEDED', 'FAILED', 'CANCELED');
	`, run.ID, run.ProjectID, run.Status, run.TriggeredBy,
		run.QueriesAnalyzed, run.SavingsUSD, run.Error, run.Dimensions,
		run.StartedAt, run.CompletedAt)
	if err != nil {
		s.logger.Error("store.pg.upsert_run_failed",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}
	return err
}

func (s *HybridStore) GetRun(ctx context.Context, runID string) (*model.OptimizationRun, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	row := s.PG.QueryRow(ctx, `
		SELECT run_id, project_id, status, triggered_by,
		       queries_analyzed, savings_usd, error, dimensions,
		       started_at, completed_at, updated_at
		FROM optimizer.run
		WHERE run_id = $1;
	`, runID)

	var run model.OptimizationRun
	if err := row.Scan(&run.ID, &run.ProjectID, &run.Status, &run.TriggeredBy,
		&run.QueriesAnalyzed, &run.SavingsUSD, &run.Error, &run.Dimensions,
		&run.StartedAt, &run.CompletedAt, &run.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetRun scan failed: %w", err)
	}
	return &run, nil
}

func (s *HybridStore) ListRuns(ctx context.Context, f RunFilter) ([]model.OptimizationRun, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.PG.Query(ctx, `
		SELECT run_id, project_id, status, triggered_by,
		       queries_analyzed, savings_usd, error, dimensions,
		       started_at, completed_at, updated_at
		FROM optimizer.run
		WHERE ($1 = '' OR project_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4;
	`, f.ProjectID, string(f.Status), limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.OptimizationRun
	for rows.Next() {
		var run model.OptimizationRun
		if err := rows.Scan(&run.ID, &run.ProjectID, &run.Status, &run.TriggeredBy,
			&run.QueriesAnalyzed, &run.SavingsUSD, &run.Error, &run.Dimensions,
			&run.StartedAt, &run.CompletedAt, &run.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, run)
	}
	return results, rows.Err()
}

// StaleRunIDs lists non-terminal runs that have not been updated for
// olderThan; the poll fallback re-checks these against the optimizer.
func (s *HybridStore) StaleRunIDs(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if s.PG == nil {
		return nil, nil
	}
	rows, err := s.PG.Query(ctx, `
		SELECT run_id
		FROM optimizer.run
		WHERE status IN ('QUEUED', 'RUNNING')
		  AND updated_at < NOW() - $1::interval
		ORDER BY updated_at ASC
		LIMIT 100;
	`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return err
		}
	}
	if s.PG != nil {
		s.PG.Close()
	}
	return nil
}
