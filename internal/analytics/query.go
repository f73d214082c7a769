package analytics

import (
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/bigquery"
)

// QuerySpec assembles a parameterized SELECT over one metrics table. All
// values travel as query parameters; identifiers (table, columns) come from
// the fixed set this package defines and are checked against identRe as a
// belt-and-braces measure.
type QuerySpec struct {
	table   string
	columns []string
	filters []filter
	orderBy string
	desc    bool
	limit   int
	offset  int
	err     error
}

type filter struct {
	column string
	op     string
	value  any
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewQuery starts a spec for the given table and columns.
func NewQuery(table string, columns ...string) *QuerySpec {
	s := &QuerySpec{table: table, columns: columns}
	s.checkIdent(table)
	for _, c := range columns {
		s.checkIdent(c)
	}
	return s
}

func (s *QuerySpec) checkIdent(name string) {
	if s.err == nil && !identRe.MatchString(name) {
		s.err = fmt.Errorf("invalid identifier %q", name)
	}
}

// Where adds an equality filter.
func (s *QuerySpec) Where(column string, value any) *QuerySpec {
	return s.WhereOp(column, "=", value)
}

// WhereOp adds a filter with one of the supported comparison operators.
func (s *QuerySpec) WhereOp(column, op string, value any) *QuerySpec {
	s.checkIdent(column)
	switch op {
	case "=", "!=", ">", ">=", "<", "<=":
	default:
		if s.err == nil {
			s.err = fmt.Errorf("unsupported operator %q", op)
		}
	}
	s.filters = append(s.filters, filter{column: column, op: op, value: value})
	return s
}

// OrderBy sets the sort column.
func (s *QuerySpec) OrderBy(column string, desc bool) *QuerySpec {
	s.checkIdent(column)
	s.orderBy = column
	s.desc = desc
	return s
}

// Page sets LIMIT/OFFSET. Limit is clamped to [1, 500].
func (s *QuerySpec) Page(limit, offset int) *QuerySpec {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	s.limit = limit
	s.offset = offset
	return s
}

// Build renders the SQL (with the fully qualified table name substituted in
// by the caller) and the bound parameters.
func (s *QuerySpec) Build(qualifiedTable string) (string, []bigquery.QueryParameter, error) {
	if s.err != nil {
		return "", nil, s.err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(s.columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(qualifiedTable)

	var params []bigquery.QueryParameter
	for i, f := range s.filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		name := fmt.Sprintf("p%d", i)
		fmt.Fprintf(&b, "%s %s @%s", f.column, f.op, name)
		params = append(params, bigquery.QueryParameter{Name: name, Value: f.value})
	}

	if s.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.orderBy)
		if s.desc {
			b.WriteString(" DESC")
		}
	}

	if s.limit > 0 {
		params = append(params,
			bigquery.QueryParameter{Name: "limit", Value: int64(s.limit)},
			bigquery.QueryParameter{Name: "offset", Value: int64(s.offset)})
		b.WriteString(" LIMIT @limit OFFSET @offset")
	}

	return b.String(), params, nil
}
