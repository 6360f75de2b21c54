package database

import (
	"context"
	"fmt"
	"strings"
)

// expectedTables lists the tables Bootstrap checks for before executing the
// corresponding slice of the DDL document. Kept in the order schema.sql
// creates them so foreign-key dependencies are satisfied.
var expectedTables = []string{
	"user_authentication",
	"user_refresh_tokens",
	"regulatory_sources",
	"regulatory_changes",
	"pattern_data_points",
	"detected_patterns",
	"learning_models",
	"feedback_data",
	"decisions",
	"decision_audit_log",
	"knowledge_entries",
	"qa_sessions",
	"memory_nodes",
	"memory_edges",
	"transactions",
	"fraud_rules",
	"training_courses",
	"training_enrollments",
	"simulator_scenarios",
}

// Bootstrap implements spec.md §4.1's idempotent bootstrap(ddlText): it
// splits the DDL text on top-level statement terminators and executes only
// the statements whose target table is not already present, so re-running
// Bootstrap against an already-provisioned database is a no-op. This is
// intentionally hand-rolled rather than built on golang-migrate/migrate
// (dropped; see DESIGN.md) because the spec's contract is a single raw-DDL
// presence check, not a versioned migration chain.
func (p *Pool) Bootstrap(ctx context.Context, ddlText string) error {
	existing, err := p.existingTables(ctx)
	if err != nil {
		return wrapFailure("inspect existing schema", err)
	}

	statements := splitStatements(ddlText)
	for _, stmt := range statements {
		table := targetTable(stmt)
		if table != "" && existing[table] {
			continue
		}
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return wrapFailure(fmt.Sprintf("execute bootstrap statement for %q", table), err)
		}
		if table != "" {
			existing[table] = true
		}
	}
	return nil
}

func (p *Pool) existingTables(ctx context.Context) (map[string]bool, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = ANY($1)
	`, pqStringArray(expectedTables))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool, len(expectedTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

// splitStatements splits on top-level ';' terminators, ignoring those inside
// single-quoted string literals (e.g. default-value expressions).
func splitStatements(ddl string) []string {
	var stmts []string
	var buf strings.Builder
	inString := false

	for _, r := range ddl {
		buf.WriteRune(r)
		switch r {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				if s := strings.TrimSpace(buf.String()); s != "" && s != ";" {
					stmts = append(stmts, s)
				}
				buf.Reset()
			}
		}
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

// targetTable extracts the table a CREATE TABLE / INSERT INTO statement
// names, so Bootstrap can skip statements whose table already exists.
func targetTable(stmt string) string {
	upper := strings.ToUpper(stmt)
	var marker string
	switch {
	case strings.Contains(upper, "CREATE TABLE"):
		marker = "TABLE"
	case strings.Contains(upper, "INSERT INTO"):
		marker = "INTO"
	default:
		return ""
	}
	idx := strings.Index(upper, marker)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(stmt[idx+len(marker):])
	rest = strings.TrimPrefix(rest, " ")
	rest = strings.TrimPrefix(strings.TrimSpace(rest), "IF NOT EXISTS")
	rest = strings.TrimSpace(rest)
	fields := strings.FieldsFunc(rest, func(r rune) bool {
		return r == ' ' || r == '(' || r == '\n' || r == '\t'
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(fields[0], `"`))
}

// pqStringArray renders a Go []string as a Postgres text[] literal for use
// with = ANY($1) without depending on pq.Array's import in this small helper.
func pqStringArray(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}"
}
