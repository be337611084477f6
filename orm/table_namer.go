package orm

import "reflect"

// TableNamer can be implemented by entity structs to override the
// auto-derived table name.
type TableNamer interface {
	TableName() string
}

// PrimaryKeyer can be implemented by entity structs whose primary key
// column is not "id" and is not marked with a `db:",pk"` tag.
type PrimaryKeyer interface {
	PrimaryKey() string
}

// ResolveTableName returns the table name for type T.
// If T implements TableNamer (value or pointer receiver), that name is used;
// otherwise fallback is returned.
func ResolveTableName[T any](fallback string) string {
	return resolveTableName(reflect.TypeFor[T](), fallback)
}

func resolveTableName(t reflect.Type, fallback string) string {
	if tn, ok := reflect.New(t).Interface().(TableNamer); ok {
		return tn.TableName()
	}
	return fallback
}

func resolvePrimaryKey(t reflect.Type) (string, bool) {
	if pk, ok := reflect.New(t).Interface().(PrimaryKeyer); ok {
		return pk.PrimaryKey(), true
	}
	return "", false
}
