package analytics

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/Lumenline/optimizer-dashboard/internal/metrics"
	"github.com/Lumenline/optimizer-dashboard/pkg/model"
)

const (
	runMetricsTable = "run_metrics"
	dailyTable      = "daily_savings"
)

// RunMetrics returns the per-query metric rows recorded for one run.
func (c *Client) RunMetrics(ctx context.Context, runID string, limit, offset int) ([]model.RunMetric, error) {
	spec := NewQuery(runMetricsTable,
		"run_id", "query_hash", "target_table", "recommendation",
		"bytes_processed_before", "bytes_processed_after",
		"slot_millis_before", "slot_millis_after",
		"cost_before_usd", "cost_after_usd", "savings_usd",
		"dataset", "labels", "recorded_at").
		Where("run_id", runID).
		OrderBy("savings_usd", true).
		Page(limit, offset)

	rows, err := c.run(ctx, "run_metrics", spec)
	if err != nil {
		return nil, err
	}

	out := make([]model.RunMetric, 0, len(rows))
	for _, r := range rows {
		m := model.RunMetric{
			RunID:                asString(r[0]),
			QueryHash:            asString(r[1]),
			TargetTable:          asString(r[2]),
			Recommendation:       asString(r[3]),
			BytesProcessedBefore: asInt64(r[4]),
			BytesProcessedAfter:  asInt64(r[5]),
			SlotMillisBefore:     asInt64(r[6]),
			SlotMillisAfter:      asInt64(r[7]),
			CostBeforeUSD:        asDecimal(r[8]),
			CostAfterUSD:         asDecimal(r[9]),
			SavingsUSD:           asDecimal(r[10]),
			Dataset:              asString(r[11]),
			Labels:               asString(r[12]),
			RecordedAt:           asTime(r[13]),
		}
		out = append(out, m)
	}
	return out, nil
}

// Summary aggregates the headline dashboard numbers.
func (c *Client) Summary(ctx context.Context) (*model.MetricsSummary, error) {
	sql := fmt.Sprintf(`
		SELECT
			COUNT(DISTINCT run_id),
			COUNT(*),
			COALESCE(SUM(savings_usd), 0),
			COALESCE(SAFE_DIVIDE(SUM(savings_usd), NULLIF(SUM(cost_before_usd), 0)) * 100, 0),
			MAX(recorded_at)
		FROM %s`, c.table(runMetricsTable))

	rows, err := c.query(ctx, "summary", sql, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &model.MetricsSummary{RefreshedAt: time.Now().UTC()}, nil
	}

	r := rows[0]
	s := &model.MetricsSummary{
		TotalRuns:        asInt64(r[0]),
		QueriesOptimized: asInt64(r[1]),
		TotalSavingsUSD:  asDecimal(r[2]),
		AvgSavingsPct:    asFloat64(r[3]),
		RefreshedAt:      time.Now().UTC(),
	}
	if t := asTime(r[4]); !t.IsZero() {
		s.LastRunAt = &t
	}
	return s, nil
}

// Timeseries returns the daily savings series for the trailing days window.
func (c *Client) Timeseries(ctx context.Context, days int) ([]model.SavingsPoint, error) {
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}
	since := civil.DateOf(time.Now().UTC().AddDate(0, 0, -days))
	spec := NewQuery(dailyTable, "day", "runs", "savings_usd").
		WhereOp("day", ">=", since).
		OrderBy("day", false)

	rows, err := c.run(ctx, "timeseries", spec)
	if err != nil {
		return nil, err
	}

	out := make([]model.SavingsPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.SavingsPoint{
			Date:       asTime(r[0]),
			Runs:       asInt64(r[1]),
			SavingsUSD: asDecimal(r[2]),
		})
	}
	return out, nil
}

// Dimension extracts a labels-column dimension (e.g. "team", "pipeline")
// without fully unmarshalling the JSON.
func Dimension(labels, key string) string {
	return gjson.Get(labels, key).String()
}

func (c *Client) run(ctx context.Context, name string, spec *QuerySpec) ([][]bigquery.Value, error) {
	sql, params, err := spec.Build(c.table(spec.table))
	if err != nil {
		return nil, err
	}
	return c.query(ctx, name, sql, params)
}

func (c *Client) query(ctx context.Context, name, sql string, params []bigquery.QueryParameter) ([][]bigquery.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := c.bq.Query(sql)
	q.Parameters = params

	start := time.Now()
	it, err := q.Read(ctx)
	if err != nil {
		metrics.IncError("analytics", "query_failed")
		c.logger.Error("bq.query_failed",
			zap.String("query", name),
			zap.Error(err))
		return nil, fmt.Errorf("bigquery %s: %w", name, err)
	}

	var rows [][]bigquery.Value
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			metrics.IncError("analytics", "iterate_failed")
			return nil, fmt.Errorf("bigquery %s iterate: %w", name, err)
		}
		rows = append(rows, row)
	}

	metrics.ObserveDuration(metrics.BQQueryDuration, start, name)
	c.logger.Debug("bq.query_success",
		zap.String("query", name),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)))
	return rows, nil
}

// Value conversion helpers. BigQuery hands back float64, int64, string,
// time.Time or *big.Rat depending on column type; readers normalize.

func asString(v bigquery.Value) string {
	s, _ := v.(string)
	return s
}

func asInt64(v bigquery.Value) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat64(v bigquery.Value) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case *big.Rat:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

func asDecimal(v bigquery.Value) decimal.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case int64:
		return decimal.NewFromInt(n)
	case *big.Rat:
		num := decimal.NewFromBigInt(n.Num(), 0)
		den := decimal.NewFromBigInt(n.Denom(), 0)
		return num.Div(den)
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func asTime(v bigquery.Value) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case civil.Date:
		return t.In(time.UTC)
	case civil.DateTime:
		return t.In(time.UTC)
	default:
		return time.Time{}
	}
}
