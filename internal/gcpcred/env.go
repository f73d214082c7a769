package gcpcred

import (
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Env abstracts process environment access so resolution can be exercised
// in tests against a plain map instead of t.Setenv.
type Env interface {
	// Get returns the raw value for name and whether it was set at all.
	Get(name string) (string, bool)
	// Entries returns every KEY=VALUE pair, used for split-part scans.
	Entries() []string
}

// ProcessEnv reads the real process environment.
type ProcessEnv struct{}

func (ProcessEnv) Get(name string) (string, bool) { return os.LookupEnv(name) }
func (ProcessEnv) Entries() []string              { return os.Environ() }

// MapEnv is a map-backed Env for tests.
type MapEnv map[string]string

func (m MapEnv) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MapEnv) Entries() []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

// splitPartSuffix matches the tail of a split-variable name: "_PART1",
// "_PART_1" or a bare "_1" after the base name.
var splitPartSuffix = regexp.MustCompile(`^_(?:PART_?)?([0-9]+)$`)

// lookup returns the first non-blank value among names, in order, together
// with the variable name that supplied it. If every direct name misses, it
// falls back to split-part reconstruction across the same names.
func lookup(env Env, names []string) (value, from string, ok bool) {
	for _, name := range names {
		if v, set := env.Get(name); set {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed, name, true
			}
		}
	}
	return lookupSplit(env, names)
}

// lookupSplit reassembles a value that a platform's per-variable size limit
// forced into numbered parts (NAME_PART1, NAME_PART_1 or NAME_1). Parts are
// concatenated in ascending numeric order with no separator. Duplicate or
// zero-padded indices are taken as-is; when two variables claim the same
// index the surviving one is whichever the environment iterates last. That
// ordering is undefined and deliberately left so.
func lookupSplit(env Env, names []string) (value, from string, ok bool) {
	for _, name := range names {
		parts := map[int]string{}
		prefix := name + "_"
		for _, entry := range env.Entries() {
			key, val, found := strings.Cut(entry, "=")
			if !found || !strings.HasPrefix(key, prefix) {
				continue
			}
			m := splitPartSuffix.FindStringSubmatch(key[len(name):])
			if m == nil {
				continue
			}
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			parts[idx] = val
		}
		if len(parts) == 0 {
			continue
		}
		indices := make([]int, 0, len(parts))
		for idx := range parts {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		var b strings.Builder
		for _, idx := range indices {
			b.WriteString(parts[idx])
		}
		if assembled := strings.TrimSpace(b.String()); assembled != "" {
			return assembled, name + " (split parts)", true
		}
	}
	return "", "", false
}
