package orm

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	"github.com/rs/zerolog/log"
)

// DefaultMaxDepth bounds how many levels of foreign keys are hydrated.
const DefaultMaxDepth = 8

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithRegistry makes the Model share an existing entity registry. A shared
// registry keeps its own table naming and WithTableNaming has no effect.
func WithRegistry(r *Registry) ModelOption {
	return func(m *Model) { m.registry = r }
}

// WithTableNaming sets how table names are derived from type names for the
// registry the Model creates.
func WithTableNaming(fn TableNaming) ModelOption {
	return func(m *Model) { m.naming = fn }
}

// WithMaxDepth bounds foreign key hydration. Zero disables it.
func WithMaxDepth(n int) ModelOption {
	return func(m *Model) { m.maxDepth = n }
}

// Model runs CRUD statements for entities over the connection held by a
// ConnectionHandler. Every statement is prepared once per SQL text and
// reused. Database errors are returned and also passed to the ErrorHandler.
type Model struct {
	conn      *ConnectionHandler
	errs      ErrorHandler
	registry  *Registry
	naming    TableNaming
	stmts     *StatementCache
	maxDepth  int
	relations bool
}

// NewModel returns a Model using conn. A nil handler logs errors through
// the global zerolog logger.
func NewModel(conn *ConnectionHandler, h ErrorHandler, opts ...ModelOption) *Model {
	if h == nil {
		h = LogErrorHandler{Logger: log.Logger}
	}
	m := &Model{
		conn:      conn,
		errs:      h,
		stmts:     NewStatementCache(),
		maxDepth:  DefaultMaxDepth,
		relations: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = NewRegistry(m.naming)
	}
	return m
}

// Shallow returns a Model sharing m's connection and statement cache that
// leaves foreign key fields as primary-key-only stubs.
func (m *Model) Shallow() *Model {
	m2 := *m
	m2.relations = false
	return &m2
}

// Registry returns the entity registry.
func (m *Model) Registry() *Registry { return m.registry }

// Handler returns the connection handler.
func (m *Model) Handler() *ConnectionHandler { return m.conn }

// Statements returns the prepared statement cache.
func (m *Model) Statements() *StatementCache { return m.stmts }

// Register adds entity types to the registry, see Registry.Register.
func (m *Model) Register(entities ...any) error {
	return m.registry.Register(entities...)
}

// Entity returns a new zero entity registered under name.
func (m *Model) Entity(name string) (any, error) {
	e, err := m.registry.New(name)
	if err != nil {
		return nil, m.report(err)
	}
	return e, nil
}

// SetConnection switches the handler to the connection configured under
// key. Cached statements belong to the old connection and are dropped.
func (m *Model) SetConnection(ctx context.Context, key string) error {
	if err := m.stmts.Reset(); err != nil {
		log.Debug().Err(err).Msg("Closing statements of previous connection")
	}
	if err := m.conn.Connect(ctx, key); err != nil {
		return m.report(err)
	}
	return nil
}

// Close closes every cached statement. The connection stays open.
func (m *Model) Close() error {
	return m.stmts.Reset()
}

// Query prepares (once) and runs a custom query. Arguments are bound only
// when the query has placeholders. The caller closes the rows.
func (m *Model) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return m.query(ctx, "query", nil, query, bindArgs(query, args))
}

// Exec prepares (once) and runs a custom statement.
func (m *Model) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.exec(ctx, "exec", nil, query, bindArgs(query, args))
}

func (m *Model) report(err error) error {
	if err != nil && !errors.Is(err, ErrNotFound) {
		m.errs.HandleError(err)
	}
	return err
}

func (m *Model) fail(op string, em *entityMeta, query string, err error) error {
	me := &ModelError{Op: op, Query: query, Err: err}
	if em != nil {
		me.Entity = em.name()
	}
	return m.report(me)
}

func (m *Model) active() (*DB, error) {
	if m.conn == nil || m.conn.DB() == nil {
		return nil, ErrNotConnected
	}
	return m.conn.DB(), nil
}

func (m *Model) dialect() (Dialect, error) {
	db, err := m.active()
	if err != nil {
		return nil, err
	}
	return db.d, nil
}

// prepare rewrites placeholders for the active dialect and returns the
// cached statement for the resulting SQL text.
func (m *Model) prepare(ctx context.Context, query string) (*DB, *sql.Stmt, string, error) {
	db, err := m.active()
	if err != nil {
		return nil, nil, query, err
	}
	query = rewrite(db.d, query)
	stmt, err := m.stmts.Prepare(ctx, db, query)
	if err != nil {
		return nil, nil, query, err
	}
	return db, stmt, query, nil
}

func (m *Model) query(ctx context.Context, op string, em *entityMeta, query string, args []any) (*sql.Rows, error) {
	db, stmt, query, err := m.prepare(ctx, query)
	if err != nil {
		return nil, m.fail(op, em, query, err)
	}
	db.log(ctx, query, args)
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, m.fail(op, em, query, err)
	}
	return rows, nil
}

func (m *Model) exec(ctx context.Context, op string, em *entityMeta, query string, args []any) (sql.Result, error) {
	db, stmt, query, err := m.prepare(ctx, query)
	if err != nil {
		return nil, m.fail(op, em, query, err)
	}
	db.log(ctx, query, args)
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, m.fail(op, em, query, err)
	}
	return res, nil
}

// fetch runs a SELECT for em and scans up to limit rows (all when zero).
// Rows are closed before returning, so hydration can issue more queries on
// single-connection pools.
func (m *Model) fetch(ctx context.Context, op string, em *entityMeta, fragment string, args []any, limit int) ([]reflect.Value, error) {
	d, err := m.dialect()
	if err != nil {
		return nil, m.fail(op, em, "", err)
	}
	query := buildSelect(d, em, fragment)
	rows, err := m.query(ctx, op, em, query, bindArgs(fragment, args))
	if err != nil {
		return nil, err
	}
	items, err := m.registry.scanEntities(em, rows, limit)
	if err != nil {
		return nil, m.fail(op, em, query, err)
	}
	return items, nil
}

// entityOf validates that entity is a non-nil pointer to a struct and
// returns the struct value with its mapping.
func (m *Model) entityOf(op string, entity any) (reflect.Value, *entityMeta, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, nil, m.fail(op, nil, "", errors.New("entity must be a non-nil pointer to a struct"))
	}
	em, err := m.registry.meta(v.Elem().Type())
	if err != nil {
		return reflect.Value{}, nil, m.fail(op, nil, "", err)
	}
	return v.Elem(), em, nil
}

func metaFor[T any](m *Model, op string) (*entityMeta, error) {
	em, err := m.registry.meta(reflect.TypeFor[T]())
	if err != nil {
		return nil, m.fail(op, nil, "", err)
	}
	return em, nil
}

func typed[T any](items []reflect.Value) []*T {
	out := make([]*T, len(items))
	for i, v := range items {
		out[i] = v.Interface().(*T) //nolint:forcetypeassert // built from reflect.TypeFor[T]
	}
	return out
}
