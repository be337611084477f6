package orm_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mickamy/crudmodel/orm"
)

type Author struct {
	ID   int64  `db:"id,pk"`
	Name string `db:"name"`
}

type Book struct {
	ID     int64
	Title  string
	Author *Author `db:"author_id,fk"`
	Editor *Author `db:"editor_id,fk"`
}

type Chapter struct {
	ID    int64
	Book  *Book `db:"book_id,fk"`
	Title string
}

type Category struct {
	ID     int64
	Name   string
	Parent *Category `db:"parent_id,fk"`
}

type Employee struct {
	ID      int64
	Name    string
	Manager *Employee `db:"manager_id,fk"`
	Mentor  *Employee `db:"mentor_id,fk"`
}

type Tag struct {
	ID int64
}

type Setting struct {
	Key   string `db:"key,pk"`
	Value string
}

type Event struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

type legacyUser struct {
	UserNo int
	Login  string
	Notes  string `db:"-"`
}

func (legacyUser) TableName() string   { return "tbl_user" }
func (*legacyUser) PrimaryKey() string { return "user_no" }

var sqliteSchema = []string{
	`CREATE TABLE authors (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`,
	`CREATE TABLE books (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, author_id INTEGER, editor_id INTEGER)`,
	`CREATE TABLE chapters (id INTEGER PRIMARY KEY AUTOINCREMENT, book_id INTEGER, title TEXT NOT NULL)`,
	`CREATE TABLE categories (id INTEGER PRIMARY KEY, name TEXT NOT NULL, parent_id INTEGER)`,
	`CREATE TABLE employees (id INTEGER PRIMARY KEY, name TEXT NOT NULL, manager_id INTEGER, mentor_id INTEGER)`,
	`CREATE TABLE tags (id INTEGER PRIMARY KEY AUTOINCREMENT)`,
	`CREATE TABLE settings ("key" TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	`CREATE TABLE events (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, created_at DATETIME, updated_at DATETIME)`,
}

// errorLog collects errors passed to the Model's ErrorHandler.
type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) HandleError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *errorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

// newSQLiteModel returns a Model over a fresh in-memory SQLite database
// holding sqliteSchema.
func newSQLiteModel(t *testing.T, opts ...orm.ModelOption) (*orm.Model, *errorLog) {
	t.Helper()
	ctx := t.Context()

	h, err := orm.NewConnectionHandler(ctx, map[string]orm.ConnConfig{
		"main": {Driver: "sqlite"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	log := &errorLog{}
	m := orm.NewModel(h, log, opts...)
	t.Cleanup(func() { _ = m.Close() })

	for _, stmt := range sqliteSchema {
		_, err := m.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	return m, log
}
