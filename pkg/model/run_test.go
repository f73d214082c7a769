package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRunStatus(t *testing.T) {
	cases := map[string]RunStatus{
		"queued":      RunStatusQueued,
		"PENDING":     RunStatusQueued,
		"running":     RunStatusRunning,
		"in_progress": RunStatusRunning,
		"completed":   RunStatusSucceeded,
		"SUCCESS":     RunStatusSucceeded,
		"error":       RunStatusFailed,
		"cancelled":   RunStatusCanceled,
		" aborted ":   RunStatusCanceled,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeRunStatus(raw), raw)
	}

	// Unknown statuses pass through upper-cased.
	assert.Equal(t, RunStatus("PAUSED"), NormalizeRunStatus("paused"))
}

func TestRunStatusIsTerminal(t *testing.T) {
	assert.True(t, RunStatusSucceeded.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
	assert.True(t, RunStatusCanceled.IsTerminal())
	assert.False(t, RunStatusQueued.IsTerminal())
	assert.False(t, RunStatusRunning.IsTerminal())
}

func TestResultPostingValidate(t *testing.T) {
	p := ResultPosting{RunID: "r", Status: "running"}
	assert.NoError(t, p.Validate())

	assert.EqualError(t, (&ResultPosting{Status: "x"}).Validate(), "run_id is required")
	assert.EqualError(t, (&ResultPosting{RunID: "r"}).Validate(), "status is required")
	assert.Error(t, (&ResultPosting{RunID: "  ", Status: "x"}).Validate())
}
