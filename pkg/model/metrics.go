package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunMetric is one optimized query's before/after numbers for a run, read
// from the analytics store.
type RunMetric struct {
	RunID                string          `json:"run_id"`
	QueryHash            string          `json:"query_hash"`
	TargetTable          string          `json:"target_table,omitempty"`
	Recommendation       string          `json:"recommendation"`
	BytesProcessedBefore int64           `json:"bytes_processed_before"`
	BytesProcessedAfter  int64           `json:"bytes_processed_after"`
	SlotMillisBefore     int64           `json:"slot_millis_before"`
	SlotMillisAfter      int64           `json:"slot_millis_after"`
	CostBeforeUSD        decimal.Decimal `json:"cost_before_usd"`
	CostAfterUSD         decimal.Decimal `json:"cost_after_usd"`
	SavingsUSD           decimal.Decimal `json:"savings_usd"`
	Dataset              string          `json:"dataset,omitempty"`
	Labels               string          `json:"labels,omitempty"` // raw JSON column, dimensions extracted lazily
	RecordedAt           time.Time       `json:"recorded_at"`
}

// MetricsSummary is the dashboard's headline card.
type MetricsSummary struct {
	TotalRuns        int64           `json:"total_runs"`
	QueriesOptimized int64           `json:"queries_optimized"`
	TotalSavingsUSD  decimal.Decimal `json:"total_savings_usd"`
	AvgSavingsPct    float64         `json:"avg_savings_pct"`
	LastRunAt        *time.Time      `json:"last_run_at,omitempty"`
	RefreshedAt      time.Time       `json:"refreshed_at"`
}

// SavingsPoint is one day of the savings timeseries.
type SavingsPoint struct {
	Date       time.Time       `json:"date"`
	Runs       int64           `json:"runs"`
	SavingsUSD decimal.Decimal `json:"savings_usd"`
}
