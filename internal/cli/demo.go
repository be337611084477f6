package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mickamy/crudmodel/orm"
)

// Author and Book are the demo entities.
type Author struct {
	ID   int64
	Name string
}

type Book struct {
	ID     int64
	Title  string
	Author *Author `db:"author_id,fk"`
}

func newDemoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Create authors and books tables and run every CRUD operation against them",
		Long: `demo creates two tables on the selected connection (an in-memory SQLite
database unless configured otherwise), fills them and walks through insert,
select with foreign key hydration, update, count, exists and delete.
Existing rows in those tables are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, m, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll(h, m)
			return runDemo(cmd.Context(), m, cmd.OutOrStdout())
		},
	}
}

func demoSchema(m *orm.Model) ([]string, error) {
	d := m.Handler().DB().Dialect()
	authors, err := m.Registry().TableName(Author{})
	if err != nil {
		return nil, err
	}
	books, err := m.Registry().TableName(Book{})
	if err != nil {
		return nil, err
	}

	var id, text string
	switch d {
	case orm.MySQL:
		id, text = "BIGINT AUTO_INCREMENT PRIMARY KEY", "VARCHAR(255)"
	case orm.PostgreSQL:
		id, text = "BIGSERIAL PRIMARY KEY", "VARCHAR(255)"
	default:
		id, text = "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	}
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id %s, name %s NOT NULL)", d.QuoteIdent(authors), id, text),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id %s, title %s NOT NULL, author_id BIGINT NULL)", d.QuoteIdent(books), id, text),
	}, nil
}

func runDemo(ctx context.Context, m *orm.Model, w io.Writer) error {
	if err := m.Register(Author{}, Book{}); err != nil {
		return err
	}
	ddl, err := demoSchema(m)
	if err != nil {
		return err
	}
	for _, stmt := range ddl {
		if _, err := m.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	if err := orm.Truncate[Book](ctx, m); err != nil {
		return err
	}
	if err := orm.Truncate[Author](ctx, m); err != nil {
		return err
	}

	authors := make(map[string]*Author)
	for _, name := range []string{"Ursula K. Le Guin", "Stanisław Lem"} {
		e, err := m.Entity("Author")
		if err != nil {
			return err
		}
		au := e.(*Author) //nolint:forcetypeassert // registered above
		au.Name = name
		if err := m.Insert(ctx, au); err != nil {
			return err
		}
		authors[name] = au
		log.Debug().Int64("id", au.ID).Str("name", name).Msg("Inserted author")
	}

	for _, b := range []Book{
		{Title: "The Dispossessed", Author: authors["Ursula K. Le Guin"]},
		{Title: "The Lathe of Heaven", Author: authors["Ursula K. Le Guin"]},
		{Title: "Solaris", Author: authors["Stanisław Lem"]},
		{Title: "His Master's Voice", Author: authors["Stanisław Lem"]},
	} {
		if err := m.Insert(ctx, &b); err != nil {
			return err
		}
	}

	solaris, err := orm.Select[Book](ctx, m, "WHERE title = ?", "Solaris")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "select: %q by %s\n", solaris.Title, solaris.Author.Name)

	solaris.Title = "Solaris (1961)"
	if err := m.Update(ctx, solaris); err != nil {
		return err
	}

	n, err := orm.Count[Book](ctx, m, "WHERE author_id = ?", authors["Ursula K. Le Guin"].ID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "count: %d books by Le Guin\n", n)

	books, err := orm.SelectAll[Book](ctx, m, "ORDER BY id")
	if err != nil {
		return err
	}
	renderBooks(w, books)

	removed, err := orm.DeleteWhere[Book](ctx, m, "WHERE title = ?", "His Master's Voice")
	if err != nil {
		return err
	}
	ok, err := orm.Exists[Book](ctx, m, "WHERE title = ?", "His Master's Voice")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "delete: removed %d, still exists: %t\n", removed, ok)

	if err := orm.Truncate[Book](ctx, m); err != nil {
		return err
	}
	n, err = orm.Count[Book](ctx, m, "")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "truncate: %d books left, %d statements cached\n", n, m.Statements().Len())
	return nil
}

func renderBooks(w io.Writer, books []*Book) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "Author"})
	for _, b := range books {
		author := "NULL"
		if b.Author != nil {
			author = b.Author.Name
		}
		t.AppendRow(table.Row{b.ID, b.Title, author})
	}
	t.Render()
}
