package orm

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

type refKey struct {
	typ reflect.Type
	pk  string
}

// loaded is a memoized row and the level its own foreign keys were
// resolved at. A lower level means more of the depth budget was left.
type loaded struct {
	v     reflect.Value
	level int
}

// relationLoader replaces foreign key stubs with the rows they reference.
// Each foreign key column is loaded with one IN query per level. Every row
// it loads is memoized for the duration of one top-level read, so repeated
// references share a pointer and reference cycles stop.
type relationLoader struct {
	m    *Model
	memo map[refKey]*loaded
}

func (m *Model) hydrate(ctx context.Context, em *entityMeta, items []reflect.Value) error {
	if !m.relations || m.maxDepth <= 0 || len(items) == 0 || len(em.fks()) == 0 {
		return nil
	}
	l := &relationLoader{m: m, memo: make(map[refKey]*loaded)}
	if em.pk != nil {
		for _, it := range items {
			pk := it.Elem().FieldByIndex(em.pk.index)
			if !pk.IsZero() {
				l.memo[keyOf(em.typ, pk.Interface())] = &loaded{v: it, level: 1}
			}
		}
	}
	return l.resolve(ctx, em, items, 1)
}

// resolve fills the foreign keys of items, which sit at the given level.
// A memoized row reached again at a shallower level is resolved again with
// the larger budget; levels only decrease, so this terminates.
func (l *relationLoader) resolve(ctx context.Context, em *entityMeta, items []reflect.Value, level int) error {
	if level > l.m.maxDepth || len(items) == 0 {
		return nil
	}
	for _, c := range em.fks() {
		tm, err := l.m.registry.meta(c.target)
		if err != nil {
			return l.m.fail("select", em, "", err)
		}
		if tm.pk == nil {
			return l.m.fail("select", tm, "", ErrNoPrimaryKey)
		}

		var missing []any
		seen := make(map[refKey]bool)
		for _, it := range items {
			fv := it.Elem().FieldByIndex(c.index)
			if fv.IsNil() {
				continue
			}
			pk := fv.Elem().FieldByIndex(tm.pk.index).Interface()
			key := keyOf(c.target, pk)
			if _, ok := l.memo[key]; !ok && !seen[key] {
				seen[key] = true
				missing = append(missing, pk)
			}
		}

		fresh, err := l.load(ctx, tm, missing)
		if err != nil {
			return err
		}
		for _, v := range fresh {
			pk := v.Elem().FieldByIndex(tm.pk.index).Interface()
			l.memo[keyOf(c.target, pk)] = &loaded{v: v, level: level + 1}
		}

		var again []reflect.Value
		for _, it := range items {
			fv := it.Elem().FieldByIndex(c.index)
			if fv.IsNil() {
				continue
			}
			key := keyOf(c.target, fv.Elem().FieldByIndex(tm.pk.index).Interface())
			e, ok := l.memo[key]
			if !ok {
				// dangling reference: keep the stub
				continue
			}
			fv.Set(e.v)
			if e.level > level+1 {
				e.level = level + 1
				again = append(again, e.v)
			}
		}

		if err := l.resolve(ctx, tm, append(fresh, again...), level+1); err != nil {
			return err
		}
	}
	return nil
}

// load fetches the rows of tm whose primary key is in pks.
func (l *relationLoader) load(ctx context.Context, tm *entityMeta, pks []any) ([]reflect.Value, error) {
	if len(pks) == 0 {
		return nil, nil
	}
	d, err := l.m.dialect()
	if err != nil {
		return nil, l.m.fail("select", tm, "", err)
	}
	fragment := "WHERE " + d.QuoteIdent(tm.pk.name) + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(pks)), ", ") + ")"
	return l.m.fetch(ctx, "select", tm, fragment, pks, 0)
}

func keyOf(t reflect.Type, pk any) refKey {
	return refKey{typ: t, pk: fmt.Sprint(pk)}
}
