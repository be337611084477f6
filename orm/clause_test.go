package orm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mickamy/crudmodel/orm"
	"github.com/mickamy/crudmodel/scope"
)

func TestBindArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fragment string
		args     []any
		want     []any
	}{
		{name: "no placeholders", fragment: "ORDER BY id", args: []any{1}, want: nil},
		{name: "empty", fragment: "", args: nil, want: nil},
		{name: "variadic", fragment: "WHERE a = ? AND b = ?", args: []any{1, "x"}, want: []any{1, "x"}},
		{name: "spread slice", fragment: "WHERE a = ? AND b = ?", args: []any{[]any{1, "x"}}, want: []any{1, "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, orm.BindArgs(tt.fragment, tt.args))
		})
	}
}

func TestRewrite(t *testing.T) {
	t.Parallel()

	const query = "SELECT * FROM books WHERE author_id = ? AND title = ?"
	assert.Equal(t, query, orm.Rewrite(orm.MySQL, query))
	assert.Equal(t, query, orm.Rewrite(orm.SQLite, query))
	assert.Equal(t, "SELECT * FROM books WHERE author_id = $1 AND title = $2", orm.Rewrite(orm.PostgreSQL, query))
}

func TestScoped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		scopes   []scope.Scope
		wantFrag string
		wantArgs []any
	}{
		{
			name:     "none",
			wantFrag: "",
		},
		{
			name:     "single where",
			scopes:   []scope.Scope{scope.Eq("author_id", 7)},
			wantFrag: "WHERE author_id = ?",
			wantArgs: []any{7},
		},
		{
			name: "where order limit offset",
			scopes: []scope.Scope{
				scope.Where("title LIKE ?", "D%"),
				scope.IsNull("editor_id"),
				scope.OrderBy("id DESC"),
				scope.Limit(10),
				scope.Offset(20),
			},
			wantFrag: "WHERE title LIKE ? AND editor_id IS NULL ORDER BY id DESC LIMIT 10 OFFSET 20",
			wantArgs: []any{"D%"},
		},
		{
			name: "or is grouped",
			scopes: []scope.Scope{
				scope.Where("a = ? OR b = ?", 1, 2),
				scope.Eq("c", 3),
			},
			wantFrag: "WHERE (a = ? OR b = ?) AND c = ?",
			wantArgs: []any{1, 2, 3},
		},
		{
			name:     "lone or is left alone",
			scopes:   []scope.Scope{scope.Where("a = ? OR b = ?", 1, 2)},
			wantFrag: "WHERE a = ? OR b = ?",
			wantArgs: []any{1, 2},
		},
		{
			name:     "in",
			scopes:   []scope.Scope{scope.In("id", []int64{1, 2, 3})},
			wantFrag: "WHERE id IN (?, ?, ?)",
			wantArgs: []any{int64(1), int64(2), int64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			frag, args := orm.Scoped(tt.scopes...)
			assert.Equal(t, tt.wantFrag, frag)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
