package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus is the lifecycle state of an optimizer run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCanceled  RunStatus = "CANCELED"
)

// NormalizeRunStatus maps the optimizer's raw status strings onto the
// canonical set. Unknown statuses pass through upper-cased so nothing is
// silently dropped.
func NormalizeRunStatus(raw string) RunStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "QUEUED", "PENDING", "SCHEDULED":
		return RunStatusQueued
	case "RUNNING", "IN_PROGRESS", "STARTED":
		return RunStatusRunning
	case "SUCCEEDED", "SUCCESS", "COMPLETED", "DONE":
		return RunStatusSucceeded
	case "FAILED", "ERROR":
		return RunStatusFailed
	case "CANCELED", "CANCELLED", "ABORTED":
		return RunStatusCanceled
	default:
		return RunStatus(strings.ToUpper(strings.TrimSpace(raw)))
	}
}

// IsTerminal reports whether the status can no longer change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// OptimizationRun is one optimizer execution as recorded in the ledger.
type OptimizationRun struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"project_id"`
	Status          RunStatus       `json:"status"`
	TriggeredBy     string          `json:"triggered_by,omitempty"`
	QueriesAnalyzed int             `json:"queries_analyzed"`
	SavingsUSD      decimal.Decimal `json:"savings_usd"`
	Error           string          `json:"error,omitempty"`
	Dimensions      json.RawMessage `json:"dimensions,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ResultPosting is the body the optimizer posts to the results webhook (and
// the message it puts on the AMQP results queue).
type ResultPosting struct {
	RunID           string          `json:"run_id"`
	ProjectID       string          `json:"project_id"`
	Status          string          `json:"status"`
	QueriesAnalyzed int             `json:"queries_analyzed"`
	SavingsUSD      decimal.Decimal `json:"savings_usd"`
	Error           string          `json:"error,omitempty"`
	Dimensions      json.RawMessage `json:"dimensions,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// Validate checks the fields without which a posting cannot be recorded.
func (p *ResultPosting) Validate() error {
	if strings.TrimSpace(p.RunID) == "" {
		return ErrFieldRequired("run_id")
	}
	if strings.TrimSpace(p.Status) == "" {
		return ErrFieldRequired("status")
	}
	return nil
}

// ErrFieldRequired is a tiny error type for request validation.
type ErrFieldRequired string

func (e ErrFieldRequired) Error() string { return string(e) + " is required" }
