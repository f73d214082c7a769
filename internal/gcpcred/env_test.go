package gcpcred

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_PriorityOrder(t *testing.T) {
	env := MapEnv{
		"GCP_SERVICE_ACCOUNT":      "first",
		"GCP_SERVICE_ACCOUNT_JSON": "second",
	}
	v, from, ok := lookup(env, []string{"GCP_SERVICE_ACCOUNT", "GCP_SERVICE_ACCOUNT_JSON"})
	require.True(t, ok)
	assert.Equal(t, "first", v)
	assert.Equal(t, "GCP_SERVICE_ACCOUNT", from)
}

func TestLookup_SkipsBlankValues(t *testing.T) {
	env := MapEnv{
		"GCP_SERVICE_ACCOUNT":      "   ",
		"GCP_SERVICE_ACCOUNT_JSON": "value",
	}
	v, from, ok := lookup(env, []string{"GCP_SERVICE_ACCOUNT", "GCP_SERVICE_ACCOUNT_JSON"})
	require.True(t, ok)
	assert.Equal(t, "value", v)
	assert.Equal(t, "GCP_SERVICE_ACCOUNT_JSON", from)
}

func TestLookup_Miss(t *testing.T) {
	_, _, ok := lookup(MapEnv{}, []string{"GCP_SERVICE_ACCOUNT"})
	assert.False(t, ok)
}

func TestLookupSplit_PartStyles(t *testing.T) {
	cases := []struct {
		name string
		env  MapEnv
	}{
		{"PART suffix", MapEnv{"BLOB_PART1": "abc", "BLOB_PART2": "def"}},
		{"PART underscore suffix", MapEnv{"BLOB_PART_1": "abc", "BLOB_PART_2": "def"}},
		{"bare digit suffix", MapEnv{"BLOB_1": "abc", "BLOB_2": "def"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, from, ok := lookup(tc.env, []string{"BLOB"})
			require.True(t, ok)
			assert.Equal(t, "abcdef", v)
			assert.Contains(t, from, "split parts")
		})
	}
}

func TestLookupSplit_NumericOrderNotLexical(t *testing.T) {
	env := MapEnv{
		"BLOB_PART2":  "b",
		"BLOB_PART10": "c",
		"BLOB_PART1":  "a",
	}
	v, _, ok := lookup(env, []string{"BLOB"})
	require.True(t, ok)
	assert.Equal(t, "abc", v, "parts sort by numeric index, not string order")
}

func TestLookupSplit_ZeroPaddedIndexAcceptedAsIs(t *testing.T) {
	env := MapEnv{
		"BLOB_PART01": "a",
		"BLOB_PART2":  "b",
	}
	v, _, ok := lookup(env, []string{"BLOB"})
	require.True(t, ok)
	assert.Equal(t, "ab", v)
}

func TestLookupSplit_DirectNameWinsOverParts(t *testing.T) {
	env := MapEnv{
		"BLOB":       "whole",
		"BLOB_PART1": "a",
		"BLOB_PART2": "b",
	}
	v, from, ok := lookup(env, []string{"BLOB"})
	require.True(t, ok)
	assert.Equal(t, "whole", v)
	assert.Equal(t, "BLOB", from)
}

func TestLookupSplit_IgnoresUnrelatedSuffixes(t *testing.T) {
	env := MapEnv{
		"BLOB_BACKUP": "nope",
		"BLOB_PARTX":  "nope",
	}
	_, _, ok := lookup(env, []string{"BLOB"})
	assert.False(t, ok)
}
