package schema_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"db-shift/internal/dialect"
	"db-shift/internal/schema"
	"db-shift/internal/testdb"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var liveSetup = []string{
	`CREATE TABLE tenants (id TEXT PRIMARY KEY, name TEXT NOT NULL, created_at TEXT)`,
	`CREATE TABLE clients (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		email TEXT UNIQUE,
		amount REAL NOT NULL DEFAULT 0 CHECK (amount >= 0)
	)`,
	`CREATE TABLE audit_logs (id INTEGER PRIMARY KEY, message TEXT)`,
}

func TestIntrospect_SQLite(t *testing.T) {
	db := testdb.Open(t, "live", liveSetup...)

	res, err := schema.Introspect(context.Background(), db, &dialect.SqliteDialect{}, "main")
	require.NoError(t, err)
	require.Len(t, res.Tables, 3)
	assert.Equal(t, []string{"audit_logs", "clients", "tenants"}, names(res.Tables))

	clients := res.Table("clients")
	require.Len(t, clients.Columns, 4)

	id := clients.Column("id")
	assert.Equal(t, "text", id.Type)
	assert.True(t, id.IsPrimaryKey)
	assert.False(t, id.Nullable)

	tenant := clients.Column("tenant_id")
	assert.True(t, tenant.IsForeignKey)
	require.NotNil(t, tenant.References)
	assert.Equal(t, "tenants", tenant.References.Table)
	assert.Equal(t, "id", tenant.References.Column)
	assert.Equal(t, "CASCADE", tenant.References.OnDelete)

	assert.True(t, clients.Column("email").IsUnique)
	assert.True(t, clients.Column("email").Nullable)
	assert.Equal(t, "0", clients.Column("amount").Default)

	assert.Equal(t, []string{"tenants"}, clients.Dependencies())

	_, err = semver.NewVersion(res.CatalogVersion)
	assert.NoError(t, err, "catalog version %q", res.CatalogVersion)
}

func TestIntrospect_ReportsFailingStep(t *testing.T) {
	db := testdb.Open(t, "closed")
	require.NoError(t, db.Close())

	_, err := schema.Introspect(context.Background(), db, &dialect.SqliteDialect{}, "main")
	var ie *schema.IntrospectionError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, schema.StepTables, ie.Step)
}

func TestNormalizeVersion(t *testing.T) {
	cases := map[string]string{
		"15.4 (Debian 15.4-1.pgdg120+1)": "15.4.0",
		"8.0.35-log":                     "8.0.35",
		"3.45.1":                         "3.45.1",
		"unknown":                        "unknown",
	}
	for raw, want := range cases {
		assert.Equal(t, want, schema.NormalizeVersion(raw), raw)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestExtractSchema_FilesThenLive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "002_clients.sql", `
ALTER TABLE tenants ADD COLUMN plan text DEFAULT 'free';
CREATE TABLE clients (id uuid PRIMARY KEY, tenant_id uuid NOT NULL REFERENCES tenants(id));
`)
	writeFile(t, dir, "001_tenants.sql", `CREATE TABLE tenants (id uuid PRIMARY KEY, name text NOT NULL);`)
	writeFile(t, filepath.Join(dir, "nested"), "003_notes.txt", `CREATE TABLE ignored (id int);`)

	db := testdb.Open(t, "live", liveSetup...)
	live := &schema.LiveSource{DB: db, Dialect: &dialect.SqliteDialect{}, Schema: "main"}

	res, err := schema.NewExtractor(nil).ExtractSchema(context.Background(), []string{dir, filepath.Join(dir, "missing")}, live)
	require.NoError(t, err)

	require.Len(t, res.MigrationFiles, 2)
	assert.Equal(t, "001_tenants.sql", filepath.Base(res.MigrationFiles[0]))
	assert.Equal(t, "002_clients.sql", filepath.Base(res.MigrationFiles[1]))

	// file definitions first, then live-only tables
	assert.Equal(t, []string{"tenants", "clients", "audit_logs"}, names(res.Tables))
	tenants := res.Table("tenants")
	assert.Equal(t, "uuid", tenants.Column("id").Type)
	assert.Equal(t, "'free'", tenants.Column("plan").Default)
	assert.Nil(t, res.Table("ignored"))
	assert.NotEmpty(t, res.CatalogVersion)
	assert.False(t, res.ExtractedAt.IsZero())
	assert.Empty(t, res.Warnings)
}

func TestExtractSchema_LiveFailureDegrades(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "001.sql", `CREATE TABLE tenants (id uuid PRIMARY KEY);`)

	db := testdb.Open(t, "closed")
	require.NoError(t, db.Close())
	live := &schema.LiveSource{DB: db, Dialect: &dialect.SqliteDialect{}, Schema: "main"}

	res, err := schema.NewExtractor(nil).ExtractSchema(context.Background(), []string{dir}, live)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenants"}, names(res.Tables))
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "introspection failed at tables")
}

func TestExtractSchema_NoFiles(t *testing.T) {
	_, err := schema.NewExtractor(nil).ExtractSchema(context.Background(), []string{t.TempDir()}, nil)
	assert.ErrorIs(t, err, schema.ErrNoMigrationFiles)
}

func TestSaveAndLoadSchema(t *testing.T) {
	res, err := schema.ParseSQL(clientsScript)
	require.NoError(t, err)
	res.CatalogVersion = "15.4.0"

	for _, name := range []string{"schema.json", "schema.yaml"} {
		path := filepath.Join(t.TempDir(), "out", name)
		require.NoError(t, schema.SaveSchema(res, path))

		loaded, err := schema.LoadSchema(path)
		require.NoError(t, err, name)
		assert.Equal(t, names(res.Tables), names(loaded.Tables), name)
		assert.Equal(t, res.Enum("client_status").Values, loaded.Enum("client_status").Values, name)
		assert.Equal(t, "15.4.0", loaded.CatalogVersion, name)
		assert.Equal(t, "tenants", loaded.Table("clients").Column("tenant_id").References.Table, name)
	}
}

func TestValidateExtractedSchema(t *testing.T) {
	res, err := schema.ParseSQL(`
CREATE TABLE tenants (id uuid PRIMARY KEY);
CREATE TABLE clients (id uuid PRIMARY KEY, tenant_id uuid REFERENCES tenants(id), owner_id uuid REFERENCES owners(id));
`)
	require.NoError(t, err)

	v := schema.ValidateExtractedSchema(res, []string{"tenants", "profiles"}, []string{"client_status"})
	assert.Equal(t, []string{
		`essential table "profiles" not found`,
		`essential enum "client_status" not found`,
	}, v.Warnings)
	assert.Equal(t, []string{`clients.owner_id references unknown table "owners"`}, v.Errors)
	assert.False(t, v.Valid())
}
