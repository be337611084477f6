package orm

import (
	"context"
	"reflect"
	"time"
)

// Clock provides the current time. Implementations can return fixed
// times for deterministic testing.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type clockKey struct{}

// WithClock returns a child context carrying the given Clock.
// Insert and Update use this Clock instead of time.Now() when setting
// created_at and updated_at columns.
func WithClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, c)
}

// now returns the current time from the Clock in ctx, or time.Now()
// if no Clock is present.
func now(ctx context.Context) time.Time {
	if c, ok := ctx.Value(clockKey{}).(Clock); ok {
		return c.Now()
	}
	return time.Now()
}

var timeType = reflect.TypeFor[time.Time]()

// timestampKind reports whether a column named name holding type t is
// maintained automatically. Both time.Time and *time.Time qualify.
func timestampKind(name string, t reflect.Type) (created, updated bool) {
	if t != timeType && t != reflect.PointerTo(timeType) {
		return false, false
	}
	return name == "created_at", name == "updated_at"
}

// touch stamps the timestamp columns of elem. A zero created_at is set on
// insert only; updated_at is set on every write.
func touch(ctx context.Context, em *entityMeta, elem reflect.Value, inserting bool) {
	var t time.Time
	for _, c := range em.columns {
		fv := elem.FieldByIndex(c.index)
		switch {
		case c.updated:
		case c.created && inserting && fv.IsZero():
		default:
			continue
		}
		if t.IsZero() {
			t = now(ctx)
		}
		if fv.Kind() == reflect.Pointer {
			ts := t
			fv.Set(reflect.ValueOf(&ts))
		} else {
			fv.Set(reflect.ValueOf(t))
		}
	}
}
