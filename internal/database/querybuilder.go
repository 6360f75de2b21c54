package database

import (
	"fmt"
	"strings"
)

// QueryBuilder accumulates parameterized clauses and a parallel argument
// slice, per spec.md §9's design note: "a small query builder that appends
// parameterized clauses and grows a parallel args list." Every filter
// predicate added through this type uses a placeholder; no caller-supplied
// value is ever concatenated into the SQL text.
type QueryBuilder struct {
	table   string
	columns string
	where   []string
	args    []interface{}
	orderBy string
	limit   int
	offset  int
}

// NewQueryBuilder starts a SELECT against table, projecting columns.
func NewQueryBuilder(table, columns string) *QueryBuilder {
	return &QueryBuilder{table: table, columns: columns}
}

// Where appends a parameterized predicate, e.g. qb.Where("status = ?", "draft").
// The placeholder is rewritten to the Postgres $N form at Build time.
func (q *QueryBuilder) Where(predicate string, args ...interface{}) *QueryBuilder {
	q.where = append(q.where, predicate)
	q.args = append(q.args, args...)
	return q
}

// WhereIf appends the predicate only when cond is true, keeping optional
// filters terse at call sites.
func (q *QueryBuilder) WhereIf(cond bool, predicate string, args ...interface{}) *QueryBuilder {
	if !cond {
		return q
	}
	return q.Where(predicate, args...)
}

// OrderBy sets the ORDER BY clause. Callers must validate sortBy against a
// resource-specific whitelist before calling this (spec.md §4.7 Sorting) —
// QueryBuilder does not whitelist on their behalf, since the whitelist is
// resource-specific.
func (q *QueryBuilder) OrderBy(column, direction string) *QueryBuilder {
	if direction != "asc" && direction != "desc" {
		direction = "asc"
	}
	q.orderBy = fmt.Sprintf("%s %s", column, direction)
	return q
}

// Paginate sets LIMIT/OFFSET, clamped to spec.md §4.7's bounds (limit <= 1000,
// offset >= 0).
func (q *QueryBuilder) Paginate(limit, offset int) *QueryBuilder {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q.limit = limit
	q.offset = offset
	return q
}

// Build renders the final query text (with $1.. placeholders) and its
// argument slice.
func (q *QueryBuilder) Build() (string, []interface{}) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", q.columns, q.table)
	if len(q.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.where, " AND "))
	}
	if q.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.orderBy)
	}
	if q.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", q.limit, q.offset))
	}
	return renumberPlaceholders(sb.String()), q.args
}

// BuildCount renders a COUNT(*) query over the same filter predicates,
// deliberately duplicating the WHERE clause so pagination's companion total
// stays in the same filter-predicate source as the page query itself
// (spec.md §4.7: "this duplication is deliberate to keep filter semantics in
// one source").
func (q *QueryBuilder) BuildCount() (string, []interface{}) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT COUNT(*) FROM %s", q.table)
	if len(q.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.where, " AND "))
	}
	return renumberPlaceholders(sb.String()), q.args
}

// renumberPlaceholders rewrites "?" placeholders in source order into
// Postgres's $1, $2, ... form.
func renumberPlaceholders(query string) string {
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
