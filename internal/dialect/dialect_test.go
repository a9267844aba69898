package dialect_test

import (
	"context"
	"testing"

	"db-shift/internal/dialect"
	"db-shift/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDialect(t *testing.T) {
	assert.Equal(t, "postgres", dialect.GetDialect("postgres").Name())
	assert.Equal(t, "postgres", dialect.GetDialect("pgx").Name())
	assert.Equal(t, "sqlserver", dialect.GetDialect("mssql").Name())
	assert.Equal(t, "oracle", dialect.GetDialect("oracle").Name())
	assert.Equal(t, "sqlite", dialect.GetDialect("sqlite3").Name())
	assert.Equal(t, "mysql", dialect.GetDialect("mysql").Name())
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"public"."clients"`, dialect.GetDialect("postgres").QuoteIdent("public.clients"))
	assert.Equal(t, "`odd``name`", dialect.GetDialect("mysql").QuoteIdent("odd`name"))
	assert.Equal(t, "[dbo].[a]]b]", dialect.GetDialect("sqlserver").QuoteIdent("dbo.a]b"))
	assert.Equal(t, `"say ""hi"""`, dialect.GetDialect("sqlite").QuoteIdent(`say "hi"`))
	assert.Equal(t, "CLIENTS", dialect.GetDialect("oracle").QuoteIdent("CLIENTS"))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", dialect.GeneratePlaceholders(3, dialect.GetDialect("postgres").Placeholder))
	assert.Equal(t, "(@p1, @p2), (@p3, @p4)", dialect.GenerateValueRows(2, 2, dialect.GetDialect("sqlserver").Placeholder))
	assert.Equal(t, "(?, ?)", dialect.GenerateValueRows(2, 1, dialect.GetDialect("mysql").Placeholder))
}

func TestUpsertQuery(t *testing.T) {
	cols := []string{"id", "name", "updated_at"}

	pg := dialect.GetDialect("postgres")
	assert.Equal(t,
		`INSERT INTO "clients" ("id", "name", "updated_at") VALUES ($1, $2, $3), ($4, $5, $6) ON CONFLICT DO NOTHING`,
		pg.UpsertQuery("clients", cols, 2, "id", dialect.ConflictSkip))
	assert.Equal(t,
		`INSERT INTO "clients" ("id", "name", "updated_at") VALUES ($1, $2, $3) ON CONFLICT ("id") DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		pg.UpsertQuery("clients", cols, 1, "id", dialect.ConflictUpdateTimestamp))
	assert.Equal(t,
		`INSERT INTO "tenants" ("id") VALUES ($1) ON CONFLICT DO NOTHING`,
		pg.UpsertQuery("tenants", []string{"id"}, 1, "id", dialect.ConflictUpdateTimestamp),
		"no updated_at column falls back to skip")

	my := dialect.GetDialect("mysql")
	assert.Equal(t,
		"INSERT IGNORE INTO `clients` (`id`, `name`, `updated_at`) VALUES (?, ?, ?)",
		my.UpsertQuery("clients", cols, 1, "id", dialect.ConflictSkip))
	assert.Contains(t,
		my.UpsertQuery("clients", cols, 1, "id", dialect.ConflictUpdateTimestamp),
		"ON DUPLICATE KEY UPDATE updated_at = VALUES(updated_at)")

	ms := dialect.GetDialect("sqlserver").UpsertQuery("clients", cols, 1, "id", dialect.ConflictSkip)
	assert.Contains(t, ms, "MERGE INTO [clients] AS tgt USING (VALUES (@p1, @p2, @p3))")
	assert.NotContains(t, ms, "WHEN MATCHED")

	ora := dialect.GetDialect("oracle").UpsertQuery("CLIENTS", []string{"ID", "NAME"}, 2, "ID", dialect.ConflictSkip)
	assert.Contains(t, ora, "SELECT :1 ID, :2 NAME FROM dual UNION ALL SELECT :3 ID, :4 NAME FROM dual")
}

func TestSqliteUpsertExecutes(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t, "upsert",
		`CREATE TABLE clients (id TEXT PRIMARY KEY, name TEXT, updated_at TEXT)`)
	d := dialect.GetDialect("sqlite")
	cols := []string{"id", "name", "updated_at"}

	_, err := db.ExecContext(ctx, d.UpsertQuery("clients", cols, 2, "id", dialect.ConflictSkip),
		"a", "alice", "2024-01-01", "b", "bob", "2024-01-01")
	require.NoError(t, err)

	res, err := db.ExecContext(ctx, d.UpsertQuery("clients", cols, 1, "id", dialect.ConflictSkip),
		"a", "changed", "2024-02-01")
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Zero(t, n)

	_, err = db.ExecContext(ctx, d.UpsertQuery("clients", cols, 1, "id", dialect.ConflictUpdateTimestamp),
		"b", "changed", "2024-03-01")
	require.NoError(t, err)

	rows, err := db.QueryContext(ctx, dialect.OrderedSelectQuery(d, "clients", []string{"id"}))
	require.NoError(t, err)
	defer rows.Close()
	got, err := dialect.ScanMaps(rows)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0]["name"])
	assert.Equal(t, "bob", got[1]["name"])
	assert.Equal(t, "2024-03-01", got[1]["updated_at"])
}

func TestHelperQueries(t *testing.T) {
	d := dialect.GetDialect("postgres")
	assert.Equal(t, `SELECT COUNT(*) FROM "clients"`, dialect.CountQuery(d, "clients"))
	assert.Equal(t, `SELECT * FROM "clients" WHERE "id" = $1`, dialect.SelectByKeyQuery(d, "clients", "id"))
	assert.Equal(t,
		`SELECT COUNT(*) FROM "clients" c LEFT JOIN "tenants" p ON c."tenant_id" = p."id" WHERE c."tenant_id" IS NOT NULL AND p."id" IS NULL`,
		dialect.OrphanCountQuery(d, "clients", "tenant_id", "tenants", "id"))
	assert.Equal(t,
		`SELECT COUNT(*) FROM (SELECT "email" FROM "clients" WHERE "email" IS NOT NULL GROUP BY "email" HAVING COUNT(*) > 1) dup`,
		dialect.DuplicateGroupsQuery(d, "clients", []string{"email"}, true))
	assert.Equal(t,
		"SELECT TOP 5 [email] FROM [clients] WHERE [email] IS NOT NULL",
		dialect.ColumnSampleQuery(dialect.GetDialect("sqlserver"), "clients", "email", 5))
}

func TestPageQuery(t *testing.T) {
	order := []string{"created_at", "id"}
	assert.Equal(t, `SELECT * FROM "events" ORDER BY "created_at", "id" LIMIT 10 OFFSET 20`,
		dialect.GetDialect("postgres").PageQuery("events", order, 10, 20))
	assert.Equal(t, "SELECT * FROM `events` ORDER BY `created_at`, `id` LIMIT 10 OFFSET 20",
		dialect.GetDialect("mysql").PageQuery("events", order, 10, 20))
	assert.Equal(t, "SELECT * FROM [events] ORDER BY [created_at], [id] OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY",
		dialect.GetDialect("sqlserver").PageQuery("events", order, 10, 20))
	assert.Equal(t, "SELECT * FROM events ORDER BY created_at, id OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY",
		dialect.GetDialect("oracle").PageQuery("events", order, 10, 20))
}

func TestSchemaNameDefaults(t *testing.T) {
	assert.Equal(t, "main", dialect.GetDialect("sqlite").GetSchemaName(""))
	assert.Equal(t, "dbo", dialect.GetDialect("sqlserver").GetSchemaName(""))
	assert.Equal(t, "USER", dialect.GetDialect("oracle").GetSchemaName(""))
	assert.Equal(t, "app", dialect.GetDialect("mysql").GetSchemaName("app"))
}
