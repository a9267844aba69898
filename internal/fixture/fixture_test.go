package fixture_test

import (
	"context"
	"testing"

	"db-shift/internal/dialect"
	"db-shift/internal/fixture"
	"db-shift/internal/record"
	"db-shift/internal/schema"
	"db-shift/internal/testdb"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var setup = []string{
	`CREATE TABLE tenants (id TEXT PRIMARY KEY, name TEXT NOT NULL, created_at TEXT)`,
	`CREATE TABLE clients (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		email TEXT UNIQUE,
		amount REAL NOT NULL CHECK (amount >= 0),
		created_at TEXT
	)`,
	`CREATE TABLE notes (
		id INTEGER PRIMARY KEY,
		client_id TEXT REFERENCES clients(id),
		parent_id INTEGER REFERENCES notes(id),
		message TEXT
	)`,
}

func column(name, typ string) *schema.ColumnMetadata {
	return &schema.ColumnMetadata{Name: name, Type: typ, Nullable: true}
}

func TestGenerator_Repeatable(t *testing.T) {
	email := column("email", "text")
	email.IsUnique = true
	id := column("id", "uuid")
	id.IsPrimaryKey = true

	a, b := fixture.NewGenerator(42), fixture.NewGenerator(42)
	for i := 0; i < 3; i++ {
		assert.Equal(t, a.Value("clients", email), b.Value("clients", email))
		assert.Equal(t, a.Value("clients", id), b.Value("clients", id))
	}

	v := a.Value("clients", email).(string)
	assert.Contains(t, v, "@")
	assert.True(t, schema.IsUUID(a.Value("clients", id).(string)))
}

func TestGenerator_ValuesFollowTypes(t *testing.T) {
	g := fixture.NewGenerator(1)

	serial := column("id", "integer")
	assert.Equal(t, int64(1), g.Value("notes", serial))
	assert.Equal(t, int64(2), g.Value("notes", serial))

	assert.IsType(t, true, g.Value("t", column("verified", "boolean")))
	assert.IsType(t, float64(0), g.Value("t", column("amount", "numeric(10,2)")))
	assert.IsType(t, []byte{}, g.Value("t", column("payload", "bytea")))
	assert.Contains(t, g.Value("t", column("meta", "jsonb")), `"source":"fixture"`)

	created := g.Value("t", column("created_at", "text")).(string)
	_, ok := record.ParseTime(created)
	assert.True(t, ok, created)
	assert.Len(t, g.Value("t", column("due", "date")), len("2006-01-02"))
}

func TestGenerator_RowReferences(t *testing.T) {
	g := fixture.NewGenerator(7)
	clients := &schema.TableMetadata{Name: "clients", Columns: []*schema.ColumnMetadata{
		{Name: "id", Type: "text", IsPrimaryKey: true},
		{Name: "tenant_id", Type: "text", IsForeignKey: true, References: &schema.Reference{Table: "tenants", Column: "id"}},
		{Name: "referrer_id", Type: "text", Nullable: true, IsForeignKey: true, References: &schema.Reference{Table: "clients", Column: "id"}},
		{Name: "seq", Type: "integer", IsIdentity: true},
	}}

	_, ok := g.Row(clients, nil, 0)
	assert.False(t, ok, "required parent missing")

	row, ok := g.Row(clients, map[string][]any{"tenants": {"t1", "t2"}}, 3)
	require.True(t, ok)
	assert.Equal(t, "t2", row["tenant_id"])
	assert.Nil(t, row["referrer_id"])
	assert.NotContains(t, row, "seq")
}

func TestSeeder_SeedsInDependencyOrder(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t, "seed", setup...)
	d := &dialect.SqliteDialect{}
	catalog, err := schema.Introspect(ctx, db, d, "main")
	require.NoError(t, err)
	tables, err := schema.DependencyOrder(catalog.Tables, nil)
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	rows := 0
	s := &fixture.Seeder{DB: db, Dialect: d, Gen: fixture.NewGenerator(99), Log: logrus.NewEntry(log), OnRow: func() { rows++ }}
	results, err := s.Seed(ctx, tables, 5)
	require.NoError(t, err)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.OK(), "%s: %+v", r.Table, r)
	}
	assert.Equal(t, 15, rows)
	assert.Equal(t, 5, testdb.Count(t, db, "tenants"))
	assert.Equal(t, 5, testdb.Count(t, db, "clients"))
	assert.Equal(t, 5, testdb.Count(t, db, "notes"))

	var orphans int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM clients c LEFT JOIN tenants t ON c.tenant_id = t.id WHERE t.id IS NULL`).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestSeeder_MissingParentIsReported(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t, "orphan", setup...)
	d := &dialect.SqliteDialect{}
	catalog, err := schema.Introspect(ctx, db, d, "main")
	require.NoError(t, err)

	s := &fixture.Seeder{DB: db, Dialect: d, Gen: fixture.NewGenerator(1)}
	results, err := s.Seed(ctx, []*schema.TableMetadata{catalog.Table("clients")}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK())
	assert.Zero(t, results[0].Inserted)
	assert.Equal(t, "no parent rows for a required reference", results[0].Error)
}
