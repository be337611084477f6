package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/mickamy/crudmodel/scope"
)

// Insert inserts entity and writes the generated primary key back into it.
// The primary key column is left out of the INSERT so the database assigns
// it. Use InsertWithID for explicit keys.
func (m *Model) Insert(ctx context.Context, entity any) error {
	return m.insert(ctx, entity, false)
}

// InsertWithID inserts entity including its primary key column.
func (m *Model) InsertWithID(ctx context.Context, entity any) error {
	return m.insert(ctx, entity, true)
}

func (m *Model) insert(ctx context.Context, entity any, withID bool) error {
	const op = "insert"
	elem, em, err := m.entityOf(op, entity)
	if err != nil {
		return err
	}
	d, err := m.dialect()
	if err != nil {
		return m.fail(op, em, "", err)
	}

	touch(ctx, em, elem, true)
	includesPK := withID || em.pk == nil
	cols, vals, err := m.registry.values(em, elem, includesPK)
	if err != nil {
		return m.fail(op, em, "", err)
	}
	query := buildInsert(d, em.table, cols)

	if !includesPK && d.UseReturning() {
		query += d.ReturningClause(em.pk.name)
		rows, err := m.query(ctx, op, em, query, vals)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return m.fail(op, em, query, err)
			}
			return m.fail(op, em, query, errors.New("INSERT RETURNING returned no rows"))
		}
		var id any
		if err := rows.Scan(&id); err != nil {
			return m.fail(op, em, query, err)
		}
		if err := assign(elem.FieldByIndex(em.pk.index), id); err != nil {
			return m.fail(op, em, query, err)
		}
		return nil
	}

	res, err := m.exec(ctx, op, em, query, vals)
	if err != nil {
		return err
	}
	if includesPK {
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return m.fail(op, em, query, err)
	}
	if err := assign(elem.FieldByIndex(em.pk.index), id); err != nil {
		return m.fail(op, em, query, err)
	}
	return nil
}

// Update writes every non-key column of entity to the row with its primary key.
func (m *Model) Update(ctx context.Context, entity any) error {
	const op = "update"
	elem, em, err := m.entityOf(op, entity)
	if err != nil {
		return err
	}
	pkVal, err := m.pkValue(op, em, elem)
	if err != nil {
		return err
	}
	d, err := m.dialect()
	if err != nil {
		return m.fail(op, em, "", err)
	}

	touch(ctx, em, elem, false)
	allCols, allVals, err := m.registry.values(em, elem, true)
	if err != nil {
		return m.fail(op, em, "", err)
	}
	var setCols []string
	var setVals []any
	for i, c := range allCols {
		if c != em.pk.name {
			setCols = append(setCols, c)
			setVals = append(setVals, allVals[i])
		}
	}
	if len(setCols) == 0 {
		return m.fail(op, em, "", errors.New("no columns to update"))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", d.QuoteIdent(em.table), buildSet(d, setCols), d.QuoteIdent(em.pk.name))
	_, err = m.exec(ctx, op, em, query, append(setVals, pkVal))
	return err
}

// Delete removes the row with entity's primary key.
func (m *Model) Delete(ctx context.Context, entity any) error {
	const op = "delete"
	elem, em, err := m.entityOf(op, entity)
	if err != nil {
		return err
	}
	pkVal, err := m.pkValue(op, em, elem)
	if err != nil {
		return err
	}
	d, err := m.dialect()
	if err != nil {
		return m.fail(op, em, "", err)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", d.QuoteIdent(em.table), d.QuoteIdent(em.pk.name))
	_, err = m.exec(ctx, op, em, query, []any{pkVal})
	return err
}

func (m *Model) pkValue(op string, em *entityMeta, elem reflect.Value) (any, error) {
	if em.pk == nil {
		return nil, m.fail(op, em, "", ErrNoPrimaryKey)
	}
	fv := elem.FieldByIndex(em.pk.index)
	if fv.IsZero() {
		return nil, m.fail(op, em, "", ErrNoPrimaryKey)
	}
	return fv.Interface(), nil
}

// Select returns the first row of T's table matching fragment, with foreign
// keys hydrated. fragment is raw SQL following the table name, usually a
// WHERE clause with ? placeholders. It returns ErrNotFound when no row matches.
//
//	book, err := orm.Select[Book](ctx, m, "WHERE isbn = ?", isbn)
func Select[T any](ctx context.Context, m *Model, fragment string, args ...any) (*T, error) {
	const op = "select"
	em, err := metaFor[T](m, op)
	if err != nil {
		return nil, err
	}
	items, err := m.fetch(ctx, op, em, fragment, args, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	if err := m.hydrate(ctx, em, items); err != nil {
		return nil, err
	}
	return typed[T](items)[0], nil
}

// SelectAll returns every row of T's table matching fragment. An empty
// fragment selects the whole table.
func SelectAll[T any](ctx context.Context, m *Model, fragment string, args ...any) ([]*T, error) {
	const op = "select"
	em, err := metaFor[T](m, op)
	if err != nil {
		return nil, err
	}
	items, err := m.fetch(ctx, op, em, fragment, args, 0)
	if err != nil {
		return nil, err
	}
	if err := m.hydrate(ctx, em, items); err != nil {
		return nil, err
	}
	return typed[T](items), nil
}

// Find is SelectAll with the fragment built from scopes.
func Find[T any](ctx context.Context, m *Model, scopes ...scope.Scope) ([]*T, error) {
	fragment, args := Scoped(scopes...)
	return SelectAll[T](ctx, m, fragment, args...)
}

// ScanRows maps every row of an arbitrary result set, for instance from
// Model.Query, onto T by column name and hydrates foreign keys. Columns that
// match no field are ignored. rows is closed.
func ScanRows[T any](ctx context.Context, m *Model, rows *sql.Rows) ([]*T, error) {
	const op = "scan"
	em, err := metaFor[T](m, op)
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	items, err := m.registry.scanEntities(em, rows, 0)
	if err != nil {
		return nil, m.fail(op, em, "", err)
	}
	if err := m.hydrate(ctx, em, items); err != nil {
		return nil, err
	}
	return typed[T](items), nil
}

// ScanRow is ScanRows for the first row only. It returns ErrNotFound on an
// empty result set.
func ScanRow[T any](ctx context.Context, m *Model, rows *sql.Rows) (*T, error) {
	const op = "scan"
	em, err := metaFor[T](m, op)
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	items, err := m.registry.scanEntities(em, rows, 1)
	if err != nil {
		return nil, m.fail(op, em, "", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	if err := m.hydrate(ctx, em, items); err != nil {
		return nil, err
	}
	return typed[T](items)[0], nil
}

// Count returns the number of rows of T's table matching fragment.
func Count[T any](ctx context.Context, m *Model, fragment string, args ...any) (int64, error) {
	const op = "count"
	em, err := metaFor[T](m, op)
	if err != nil {
		return 0, err
	}
	return m.count(ctx, op, em, fragment, args)
}

// Exists reports whether at least one row of T's table matches fragment.
func Exists[T any](ctx context.Context, m *Model, fragment string, args ...any) (bool, error) {
	const op = "exists"
	em, err := metaFor[T](m, op)
	if err != nil {
		return false, err
	}
	n, err := m.count(ctx, op, em, fragment, args)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *Model) count(ctx context.Context, op string, em *entityMeta, fragment string, args []any) (int64, error) {
	d, err := m.dialect()
	if err != nil {
		return 0, m.fail(op, em, "", err)
	}
	query := buildCount(d, em, fragment)
	rows, err := m.query(ctx, op, em, query, bindArgs(fragment, args))
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, m.fail(op, em, query, err)
		}
		return 0, m.fail(op, em, query, errors.New("COUNT returned no rows"))
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, m.fail(op, em, query, err)
	}
	return n, nil
}

// UpdateWhere sets the given columns on every row of T's table matching
// fragment and returns the number of rows affected. Columns are written in
// sorted order so equal sets share one prepared statement.
func UpdateWhere[T any](ctx context.Context, m *Model, set map[string]any, fragment string, args ...any) (int64, error) {
	const op = "update"
	em, err := metaFor[T](m, op)
	if err != nil {
		return 0, err
	}
	if len(set) == 0 {
		return 0, m.fail(op, em, "", errors.New("no columns to update"))
	}
	d, err := m.dialect()
	if err != nil {
		return 0, m.fail(op, em, "", err)
	}

	cols := slices.Sorted(maps.Keys(set))
	vals := make([]any, 0, len(cols)+len(args))
	for _, c := range cols {
		vals = append(vals, set[c])
	}
	vals = append(vals, bindArgs(fragment, args)...)

	query := withFragment(fmt.Sprintf("UPDATE %s SET %s", d.QuoteIdent(em.table), buildSet(d, cols)), fragment)
	res, err := m.exec(ctx, op, em, query, vals)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, m.fail(op, em, query, err)
	}
	return n, nil
}

// DeleteWhere deletes the rows of T's table matching fragment and returns
// how many were removed. An empty fragment is rejected with ErrUnsafeDelete.
func DeleteWhere[T any](ctx context.Context, m *Model, fragment string, args ...any) (int64, error) {
	const op = "delete"
	em, err := metaFor[T](m, op)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(fragment) == "" {
		return 0, m.fail(op, em, "", ErrUnsafeDelete)
	}
	d, err := m.dialect()
	if err != nil {
		return 0, m.fail(op, em, "", err)
	}
	query := withFragment("DELETE FROM "+d.QuoteIdent(em.table), fragment)
	res, err := m.exec(ctx, op, em, query, bindArgs(fragment, args))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, m.fail(op, em, query, err)
	}
	return n, nil
}

// Truncate removes every row of T's table.
func Truncate[T any](ctx context.Context, m *Model) error {
	const op = "truncate"
	em, err := metaFor[T](m, op)
	if err != nil {
		return err
	}
	d, err := m.dialect()
	if err != nil {
		return m.fail(op, em, "", err)
	}
	_, err = m.exec(ctx, op, em, d.Truncate(em.table), nil)
	return err
}
