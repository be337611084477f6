package orm

import (
	"fmt"
	"strings"

	"github.com/mickamy/crudmodel/scope"
)

// bindArgs returns the arguments to bind for a fragment. A fragment without
// placeholders binds nothing, and a single []any argument is spread.
func bindArgs(fragment string, args []any) []any {
	if !strings.Contains(fragment, "?") {
		return nil
	}
	if len(args) == 1 {
		if spread, ok := args[0].([]any); ok {
			return spread
		}
	}
	return args
}

// rewrite converts ? placeholders to dialect-specific placeholders.
// For MySQL and SQLite this is a no-op. For PostgreSQL, ? becomes $1, $2, etc.
func rewrite(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	idx := 1
	for i := range len(query) {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

func withFragment(query, fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return query
	}
	return query + " " + fragment
}

func quoteColumns(d Dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func buildSelect(d Dialect, em *entityMeta, fragment string) string {
	return withFragment(fmt.Sprintf("SELECT %s FROM %s", quoteColumns(d, em.columnNames()), d.QuoteIdent(em.table)), fragment)
}

func buildCount(d Dialect, em *entityMeta, fragment string) string {
	return withFragment("SELECT COUNT(*) FROM "+d.QuoteIdent(em.table), fragment)
}

func buildInsert(d Dialect, table string, cols []string) string {
	if len(cols) == 0 {
		return "INSERT INTO " + d.QuoteIdent(table) + " " + d.DefaultValues()
	}
	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(table),
		quoteColumns(d, cols),
		strings.Join(placeholders, ", "),
	)
}

func buildSet(d Dialect, cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = d.QuoteIdent(c) + " = ?"
	}
	return strings.Join(sets, ", ")
}

// Scoped renders scopes into a fragment and its arguments, ready for
// SelectAll, Count and the other fragment-taking functions.
//
//	frag, args := orm.Scoped(scope.Eq("author_id", 1), scope.OrderBy("id"))
//	n, err := orm.Count[Book](ctx, m, frag, args...)
func Scoped(scopes ...scope.Scope) (string, []any) {
	var f fragmentBuilder
	for _, s := range scopes {
		s.Apply(&f)
	}
	return f.build()
}

type fragmentBuilder struct {
	wheres   []string
	args     []any
	orderBys []string
	limit    *int
	offset   *int
}

var _ scope.Applier = (*fragmentBuilder)(nil)

func (f *fragmentBuilder) ApplyWhere(clause string, args []any) {
	f.wheres = append(f.wheres, clause)
	f.args = append(f.args, args...)
}

func (f *fragmentBuilder) ApplyOrderBy(clause string) { f.orderBys = append(f.orderBys, clause) }
func (f *fragmentBuilder) ApplyLimit(n int)           { f.limit = &n }
func (f *fragmentBuilder) ApplyOffset(n int)          { f.offset = &n }

func (f *fragmentBuilder) build() (string, []any) {
	var parts []string
	if len(f.wheres) > 0 {
		conds := make([]string, len(f.wheres))
		for i, w := range f.wheres {
			if len(f.wheres) > 1 && strings.Contains(strings.ToUpper(w), " OR ") {
				w = "(" + w + ")"
			}
			conds[i] = w
		}
		parts = append(parts, "WHERE "+strings.Join(conds, " AND "))
	}
	if len(f.orderBys) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(f.orderBys, ", "))
	}
	if f.limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *f.limit))
	}
	if f.offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *f.offset))
	}
	return strings.Join(parts, " "), f.args
}
