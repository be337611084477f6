package orm

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
)

var scannerType = reflect.TypeFor[sql.Scanner]()

// scanEntities reads rows into new *T values described by em, by column
// name. Columns without a matching field are discarded. At most limit rows
// are read when limit > 0. rows is always closed.
func (r *Registry) scanEntities(em *entityMeta, rows *sql.Rows, limit int) ([]reflect.Value, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}

	type fkSlot struct {
		c   *column
		raw *any
	}

	var out []reflect.Value
	for rows.Next() {
		ptr := reflect.New(em.typ)
		elem := ptr.Elem()

		dest := make([]any, len(cols))
		var slots []fkSlot
		for i, name := range cols {
			c, ok := em.lookup(name)
			switch {
			case !ok:
				dest[i] = new(any)
			case c.fk:
				raw := new(any)
				dest[i] = raw
				slots = append(slots, fkSlot{c, raw})
			default:
				dest[i] = elem.FieldByIndex(c.index).Addr().Interface()
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err //nolint:wrapcheck // pass through
		}

		for _, s := range slots {
			stub, err := r.stub(s.c.target, *s.raw)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", em.name(), s.c.field, err)
			}
			elem.FieldByIndex(s.c.index).Set(stub)
		}

		out = append(out, ptr)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	return out, nil
}

// stub builds a *target holding only its primary key, or a nil pointer
// when the foreign key column is NULL.
func (r *Registry) stub(target reflect.Type, raw any) (reflect.Value, error) {
	ptrType := reflect.PointerTo(target)
	if raw == nil {
		return reflect.Zero(ptrType), nil
	}
	tm, err := r.meta(target)
	if err != nil {
		return reflect.Value{}, err
	}
	if tm.pk == nil {
		return reflect.Value{}, fmt.Errorf("orm: %s has no primary key to reference", target.Name())
	}
	v := reflect.New(target)
	if err := assign(v.Elem().FieldByIndex(tm.pk.index), raw); err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

// values returns the column names and bind values of an entity in field
// order. Foreign key fields contribute the referenced entity's primary key.
func (r *Registry) values(em *entityMeta, elem reflect.Value, includePK bool) ([]string, []any, error) {
	cols := make([]string, 0, len(em.columns))
	vals := make([]any, 0, len(em.columns))
	for _, c := range em.columns {
		if c.pk && !includePK {
			continue
		}
		fv := elem.FieldByIndex(c.index)
		if !c.fk {
			cols = append(cols, c.name)
			vals = append(vals, fv.Interface())
			continue
		}
		v, err := r.fkValue(c, fv)
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", em.name(), c.field, err)
		}
		cols = append(cols, c.name)
		vals = append(vals, v)
	}
	return cols, vals, nil
}

func (r *Registry) fkValue(c *column, fv reflect.Value) (any, error) {
	if fv.IsNil() {
		return nil, nil
	}
	tm, err := r.meta(c.target)
	if err != nil {
		return nil, err
	}
	if tm.pk == nil {
		return nil, fmt.Errorf("orm: %s has no primary key to reference", c.target.Name())
	}
	return fv.Elem().FieldByIndex(tm.pk.index).Interface(), nil
}

// assign stores a driver value (int64, float64, bool, []byte, string,
// time.Time or nil) into dst, converting between numeric and string forms
// the way keys usually need.
func assign(dst reflect.Value, src any) error {
	if dst.CanAddr() && dst.Addr().Type().Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src) //nolint:forcetypeassert,wrapcheck // checked above
	}
	if src == nil {
		dst.SetZero()
		return nil
	}
	if b, ok := src.([]byte); ok {
		src = string(b)
	}

	sv := reflect.ValueOf(src)
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch {
		case sv.Kind() == reflect.String:
			n, err := strconv.ParseInt(sv.String(), 10, 64)
			if err != nil {
				return fmt.Errorf("orm: cannot assign %q to %s: %w", sv.String(), dst.Type(), err)
			}
			dst.SetInt(n)
			return nil
		case sv.CanInt():
			dst.SetInt(sv.Int())
			return nil
		case sv.CanUint():
			dst.SetInt(int64(sv.Uint())) //nolint:gosec // keys fit
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch {
		case sv.Kind() == reflect.String:
			n, err := strconv.ParseUint(sv.String(), 10, 64)
			if err != nil {
				return fmt.Errorf("orm: cannot assign %q to %s: %w", sv.String(), dst.Type(), err)
			}
			dst.SetUint(n)
			return nil
		case sv.CanInt():
			dst.SetUint(uint64(sv.Int())) //nolint:gosec // keys fit
			return nil
		case sv.CanUint():
			dst.SetUint(sv.Uint())
			return nil
		}
	case reflect.String:
		if sv.Kind() == reflect.String {
			dst.SetString(sv.String())
		} else {
			dst.SetString(fmt.Sprint(src))
		}
		return nil
	default:
	}

	if sv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("orm: cannot assign %T to %s", src, dst.Type())
}
