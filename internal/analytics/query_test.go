package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuerySpec_Build(t *testing.T) {
	sql, params, err := NewQuery("run_metrics", "run_id", "savings_usd").
		Where("run_id", "run-1").
		OrderBy("recorded_at", true).
		Page(100, 20).
		Build("`p1.ds.run_metrics`")
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT run_id, savings_usd FROM `p1.ds.run_metrics` WHERE run_id = @p0 ORDER BY recorded_at DESC LIMIT @limit OFFSET @offset",
		sql)
	require.Len(t, params, 3)
	assert.Equal(t, "p0", params[0].Name)
	assert.Equal(t, "run-1", params[0].Value)
	assert.Equal(t, int64(100), params[1].Value)
	assert.Equal(t, int64(20), params[2].Value)
}

func TestQuerySpec_MultipleFilters(t *testing.T) {
	sql, params, err := NewQuery("daily_savings", "day", "savings_usd").
		WhereOp("day", ">=", "2026-08-01").
		WhereOp("day", "<", "2026-08-24").
		Build("t")
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE day >= @p0 AND day < @p1")
	assert.Len(t, params, 2)
}

func TestQuerySpec_NoPageNoLimitClause(t *testing.T) {
	sql, params, err := NewQuery("run_metrics", "run_id").Build("t")
	require.NoError(t, err)
	assert.NotContains(t, sql, "LIMIT")
	assert.Empty(t, params)
}

func TestQuerySpec_LimitClamped(t *testing.T) {
	sql, params, err := NewQuery("run_metrics", "run_id").Page(9999, -5).Build("t")
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT @limit OFFSET @offset")
	assert.Equal(t, int64(500), params[0].Value)
	assert.Equal(t, int64(0), params[1].Value)
}

func TestQuerySpec_RejectsBadIdentifiers(t *testing.T) {
	_, _, err := NewQuery("run_metrics", "run_id; DROP TABLE x").Build("t")
	require.Error(t, err)

	_, _, err = NewQuery("run_metrics", "run_id").Where("1=1 OR col", "x").Build("t")
	require.Error(t, err)

	_, _, err = NewQuery("bad-table", "run_id").Build("t")
	require.Error(t, err)
}

func TestQuerySpec_RejectsBadOperator(t *testing.T) {
	_, _, err := NewQuery("run_metrics", "run_id").WhereOp("run_id", "LIKE", "%x%").Build("t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported operator")
}
