package orm

var (
	BindArgs    = bindArgs
	Rewrite     = rewrite
	MySQLDSN    = mysqlDSN
	PostgresDSN = postgresDSN
	SQLiteDSN   = sqliteDSN
)

// Mapping exposes how the registry maps an entity, for assertions.
type Mapping struct {
	Table   string
	PK      string
	Columns []string
	FKs     []string
}

func (r *Registry) Mapping(entity any) (Mapping, error) {
	t, err := structType(entity)
	if err != nil {
		return Mapping{}, err
	}
	em, err := r.meta(t)
	if err != nil {
		return Mapping{}, err
	}
	mp := Mapping{Table: em.table, Columns: em.columnNames()}
	if em.pk != nil {
		mp.PK = em.pk.name
	}
	for _, c := range em.fks() {
		mp.FKs = append(mp.FKs, c.name)
	}
	return mp, nil
}
