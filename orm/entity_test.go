package orm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/crudmodel/orm"
)

type plain struct{}

type valueNamer struct{}

func (valueNamer) TableName() string { return "custom_values" }

type ptrNamer struct{}

func (*ptrNamer) TableName() string { return "custom_ptrs" }

func TestResolveTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		resolve  func() string
		expected string
	}{
		{
			name:     "fallback when TableNamer not implemented",
			resolve:  func() string { return orm.ResolveTableName[plain]("fallback") },
			expected: "fallback",
		},
		{
			name:     "value receiver",
			resolve:  func() string { return orm.ResolveTableName[valueNamer]("fallback") },
			expected: "custom_values",
		},
		{
			name:     "pointer receiver",
			resolve:  func() string { return orm.ResolveTableName[ptrNamer]("fallback") },
			expected: "custom_ptrs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.resolve(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

type Timestamps struct {
	CreatedAt string
}

type Note struct {
	Body string
}

type BlogPost struct {
	Timestamps
	ID     int64
	Title  string
	Author *Author `db:"author_id,fk"`
	secret string
}

func TestMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		naming orm.TableNaming
		entity any
		want   orm.Mapping
	}{
		{
			name:   "tagged primary key",
			entity: Author{},
			want:   orm.Mapping{Table: "authors", PK: "id", Columns: []string{"id", "name"}},
		},
		{
			name:   "foreign keys",
			entity: &Book{},
			want: orm.Mapping{
				Table:   "books",
				PK:      "id",
				Columns: []string{"id", "title", "author_id", "editor_id"},
				FKs:     []string{"author_id", "editor_id"},
			},
		},
		{
			name:   "string primary key",
			entity: Setting{},
			want:   orm.Mapping{Table: "settings", PK: "key", Columns: []string{"key", "value"}},
		},
		{
			name:   "TableNamer, PrimaryKeyer and skipped field",
			entity: legacyUser{},
			want:   orm.Mapping{Table: "tbl_user", PK: "user_no", Columns: []string{"user_no", "login"}},
		},
		{
			name:   "embedded struct and unexported field",
			entity: BlogPost{},
			want: orm.Mapping{
				Table:   "blog_posts",
				PK:      "id",
				Columns: []string{"created_at", "id", "title", "author_id"},
				FKs:     []string{"author_id"},
			},
		},
		{
			name:   "lowercase naming",
			naming: orm.LowerTables,
			entity: BlogPost{},
			want: orm.Mapping{
				Table:   "blogpost",
				PK:      "id",
				Columns: []string{"created_at", "id", "title", "author_id"},
				FKs:     []string{"author_id"},
			},
		},
		{
			name:   "no primary key",
			entity: Note{},
			want:   orm.Mapping{Table: "notes", Columns: []string{"body"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := orm.NewRegistry(tt.naming).Mapping(tt.entity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type badFK struct {
	ID       int64
	AuthorID int64 `db:"author_id,fk"`
}

type twoKeys struct {
	A int `db:"a,pk"`
	B int `db:"b,pk"`
}

type dupColumn struct {
	ID   int64
	Name string
	Alt  string `db:"name"`
}

type missingPK struct {
	Name string
}

func (missingPK) PrimaryKey() string { return "code" }

func TestMappingErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		entity any
		msg    string
	}{
		{"fk on scalar field", badFK{}, "fk field must be a pointer"},
		{"composite key", twoKeys{}, "composite primary keys"},
		{"duplicate column", dupColumn{}, "mapped twice"},
		{"PrimaryKeyer names unknown column", missingPK{}, `primary key column "code"`},
		{"not a struct", 42, "not a struct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := orm.NewRegistry(nil).Mapping(tt.entity)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRegistryNew(t *testing.T) {
	t.Parallel()

	r := orm.NewRegistry(nil)
	require.NoError(t, r.Register(Author{}, &Book{}))
	require.NoError(t, r.RegisterAs("Writer", Author{}))

	e, err := r.New("Book")
	require.NoError(t, err)
	assert.IsType(t, &Book{}, e)

	e, err = r.New("Writer")
	require.NoError(t, err)
	assert.IsType(t, &Author{}, e)

	_, err = r.New("Magazine")
	assert.True(t, errors.Is(err, orm.ErrUnknownEntity))

	table, err := r.TableName(&Book{})
	require.NoError(t, err)
	assert.Equal(t, "books", table)
}
