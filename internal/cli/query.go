package cli

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newQueryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query SQL [ARGS...]",
		Short: "Run a query through the statement cache and print the result",
		Example: `  crudmodel query "SELECT * FROM books WHERE author_id = ?" 1
  crudmodel -c reports query "SELECT COUNT(*) FROM orders"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, m, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll(h, m)

			params := make([]any, len(args)-1)
			for i, v := range args[1:] {
				params[i] = v
			}
			rows, err := m.Query(cmd.Context(), args[0], params...)
			if err != nil {
				return err
			}
			return renderRows(cmd.OutOrStdout(), rows)
		},
	}
}

// renderRows prints a result set as a table and closes rows.
func renderRows(w io.Writer, rows *sql.Rows) error {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	n := 0
	for rows.Next() {
		vals := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		row := make(table.Row, len(cols))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if n == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", n)
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
