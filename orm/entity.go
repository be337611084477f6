package orm

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/mickamy/crudmodel/internal/naming"
)

// TableNaming derives a table name from an entity's Go type name.
type TableNaming func(typeName string) string

var (
	// PluralTables maps "BlogPost" to "blog_posts". It is the default.
	PluralTables TableNaming = naming.PluralTable

	// LowerTables maps "BlogPost" to "blogpost".
	LowerTables TableNaming = naming.LowerTable
)

// column maps one struct field to one table column.
type column struct {
	name   string
	field  string
	index  []int
	pk     bool
	fk     bool
	target reflect.Type // entity struct referenced by an fk column

	created bool
	updated bool
}

type entityMeta struct {
	typ     reflect.Type
	table   string
	pk      *column
	columns []*column
	byName  map[string]*column
}

func (em *entityMeta) name() string { return em.typ.Name() }

func (em *entityMeta) columnNames() []string {
	names := make([]string, len(em.columns))
	for i, c := range em.columns {
		names[i] = c.name
	}
	return names
}

func (em *entityMeta) fks() []*column {
	var out []*column
	for _, c := range em.columns {
		if c.fk {
			out = append(out, c)
		}
	}
	return out
}

// lookup finds the column for a result set column name. Drivers do not all
// preserve case, so a case-insensitive match is tried second.
func (em *entityMeta) lookup(name string) (*column, bool) {
	if c, ok := em.byName[name]; ok {
		return c, true
	}
	for _, c := range em.columns {
		if strings.EqualFold(c.name, name) {
			return c, true
		}
	}
	return nil, false
}

// Registry holds entity types by name and caches their column mapping.
// It is safe for concurrent use.
type Registry struct {
	naming TableNaming

	mu    sync.RWMutex
	types map[string]reflect.Type
	metas map[reflect.Type]*entityMeta
}

// NewRegistry returns an empty registry. A nil naming uses PluralTables.
func NewRegistry(tableNaming TableNaming) *Registry {
	if tableNaming == nil {
		tableNaming = PluralTables
	}
	return &Registry{
		naming: tableNaming,
		types:  make(map[string]reflect.Type),
		metas:  make(map[reflect.Type]*entityMeta),
	}
}

// Register adds entities under their Go type names. Each argument may be a
// struct value or a pointer to one.
func (r *Registry) Register(entities ...any) error {
	for _, e := range entities {
		t, err := structType(e)
		if err != nil {
			return err
		}
		if err := r.RegisterAs(t.Name(), e); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAs adds an entity under an explicit name.
func (r *Registry) RegisterAs(name string, entity any) error {
	t, err := structType(entity)
	if err != nil {
		return err
	}
	if _, err := r.meta(t); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = t
	return nil
}

// New returns a pointer to a new zero entity registered under name.
func (r *Registry) New(name string) (any, error) {
	r.mu.RLock()
	t, ok := r.types[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return reflect.New(t).Interface(), nil
}

// TableName returns the table an entity maps to.
func (r *Registry) TableName(entity any) (string, error) {
	t, err := structType(entity)
	if err != nil {
		return "", err
	}
	em, err := r.meta(t)
	if err != nil {
		return "", err
	}
	return em.table, nil
}

func (r *Registry) meta(t reflect.Type) (*entityMeta, error) {
	r.mu.RLock()
	em, ok := r.metas[t]
	r.mu.RUnlock()
	if ok {
		return em, nil
	}

	em, err := parseEntity(t, r.naming)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.metas[t]; ok {
		return cached, nil
	}
	r.metas[t] = em
	return em, nil
}

func structType(entity any) (reflect.Type, error) {
	t := reflect.TypeOf(entity)
	if t == nil {
		return nil, errors.New("orm: nil entity")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("orm: entity %s is not a struct", t)
	}
	return t, nil
}

func parseEntity(t reflect.Type, tableNaming TableNaming) (*entityMeta, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("orm: entity %s is not a struct", t)
	}

	em := &entityMeta{
		typ:    t,
		table:  resolveTableName(t, tableNaming(t.Name())),
		byName: make(map[string]*column),
	}

	var tagged []*column
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() || throughPointer(t, f.Index) {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = naming.CamelToSnake(f.Name)
		}
		c := &column{name: name, field: f.Name, index: f.Index}
		c.created, c.updated = timestampKind(name, f.Type)
		for _, opt := range strings.Split(opts, ",") {
			switch strings.TrimSpace(opt) {
			case "pk", "primaryKey":
				c.pk = true
			case "fk":
				c.fk = true
			}
		}

		if c.fk {
			if f.Type.Kind() != reflect.Pointer || f.Type.Elem().Kind() != reflect.Struct {
				return nil, fmt.Errorf("orm: %s.%s: fk field must be a pointer to an entity struct", t.Name(), f.Name)
			}
			c.target = f.Type.Elem()
		}
		if _, dup := em.byName[name]; dup {
			return nil, fmt.Errorf("orm: %s: column %q is mapped twice", t.Name(), name)
		}
		if c.pk {
			tagged = append(tagged, c)
		}

		em.columns = append(em.columns, c)
		em.byName[name] = c
	}

	switch len(tagged) {
	case 0:
		pk, ok := resolvePrimaryKey(t)
		if !ok {
			pk = "id"
		}
		if c, found := em.byName[pk]; found {
			c.pk = true
			em.pk = c
		} else if ok {
			return nil, fmt.Errorf("orm: %s: primary key column %q is not mapped", t.Name(), pk)
		}
	case 1:
		em.pk = tagged[0]
	default:
		return nil, fmt.Errorf("orm: %s: composite primary keys are not supported", t.Name())
	}

	if em.pk != nil && em.pk.fk {
		return nil, fmt.Errorf("orm: %s: primary key cannot be a foreign key", t.Name())
	}
	return em, nil
}

// throughPointer reports whether a promoted field is reached through an
// embedded pointer, which may be nil at runtime.
func throughPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Pointer {
			return true
		}
		t = f.Type
	}
	return false
}
