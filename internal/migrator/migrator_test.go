package migrator_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"db-shift/internal/audit"
	"db-shift/internal/dialect"
	"db-shift/internal/metrics"
	"db-shift/internal/migrator"
	"db-shift/internal/testdb"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenantsDDL = `CREATE TABLE tenants (id TEXT PRIMARY KEY, name TEXT NOT NULL, created_at TEXT)`
	// source side has no CHECK so it can hold a row the target rejects
	sourceClientsDDL = `CREATE TABLE clients (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		email TEXT,
		amount REAL NOT NULL,
		created_at TEXT
	)`
	targetClientsDDL = `CREATE TABLE clients (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		email TEXT,
		amount REAL NOT NULL CHECK (amount >= 0),
		created_at TEXT
	)`
)

// seedClients inserts one tenant and n clients; the last client's amount is negative.
func seedClients(t *testing.T, db *sql.DB, n int) {
	t.Helper()
	testdb.Exec(t, db, `INSERT INTO tenants (id, name, created_at) VALUES ('t1', 'Acme', '2024-01-01T00:00:00Z')`)
	for i := 1; i <= n; i++ {
		amount := float64(i) * 1.5
		if i == n {
			amount = -5
		}
		_, err := db.Exec(`INSERT INTO clients (id, tenant_id, email, amount, created_at) VALUES (?, 't1', ?, ?, ?)`,
			fmt.Sprintf("c%03d", i), fmt.Sprintf("client%d@example.com", i), amount,
			fmt.Sprintf("2024-01-01T00:%02d:%02dZ", i/60, i%60))
		require.NoError(t, err)
	}
}

type fixture struct {
	source, target *sql.DB
	log            *logrus.Logger
	hook           *test.Hook
	audit          *audit.Recorder
	metrics        *metrics.Recorder
	m              *migrator.Migrator
}

func newFixture(t *testing.T, clients int) *fixture {
	t.Helper()
	f := &fixture{
		source:  testdb.Open(t, "source", tenantsDDL, sourceClientsDDL),
		target:  testdb.Open(t, "target", tenantsDDL, targetClientsDDL),
		audit:   audit.NewRecorder(nil),
		metrics: metrics.New(),
	}
	f.log, f.hook = test.NewNullLogger()
	seedClients(t, f.source, clients)
	f.m = f.migrator()
	return f
}

func (f *fixture) migrator() *migrator.Migrator {
	d := &dialect.SqliteDialect{}
	return migrator.New(migrator.Config{
		Source:  migrator.Endpoint{DB: f.source, Dialect: d, Schema: "main"},
		Target:  migrator.Endpoint{DB: f.target, Dialect: d, Schema: "main"},
		Log:     logrus.NewEntry(f.log),
		Audit:   f.audit,
		Metrics: f.metrics,
	})
}

func resultFor(t *testing.T, results []migrator.TableMigrationResult, table string) migrator.TableMigrationResult {
	t.Helper()
	for _, r := range results {
		if r.Table == table {
			return r
		}
	}
	require.Failf(t, "missing result", "no result for %s", table)
	return migrator.TableMigrationResult{}
}

func TestExportAll(t *testing.T) {
	f := newFixture(t, 12)

	data, err := f.m.ExportAll(context.Background(), migrator.ExportOptions{BatchSize: 5, PreserveTimestamps: true})
	require.NoError(t, err)
	require.Len(t, data["clients"], 12)
	require.Len(t, data["tenants"], 1)
	assert.Equal(t, 13, data.Count())

	first := data["clients"][0]
	assert.Equal(t, "c001", first["id"])
	assert.Equal(t, "2024-01-01T00:00:01Z", first["created_at"])

	only, err := f.m.ExportAll(context.Background(), migrator.ExportOptions{Tables: []string{"TENANTS"}})
	require.NoError(t, err)
	assert.Len(t, only, 1)
	assert.Contains(t, only, "tenants")
}

func TestExportAll_SharedTimestampPagesByKey(t *testing.T) {
	f := newFixture(t, 1)
	testdb.Exec(t, f.source, `CREATE TABLE events (id TEXT PRIMARY KEY, kind TEXT, created_at TEXT)`)
	for i := 9; i >= 1; i-- {
		_, err := f.source.Exec(`INSERT INTO events (id, kind, created_at) VALUES (?, 'tick', '2024-03-01T00:00:00Z')`, fmt.Sprintf("e%d", i))
		require.NoError(t, err)
	}

	data, err := f.m.ExportAll(context.Background(), migrator.ExportOptions{BatchSize: 1, Tables: []string{"events"}})
	require.NoError(t, err)
	require.Len(t, data["events"], 9)
	for i, row := range data["events"] {
		assert.Equal(t, fmt.Sprintf("e%d", i+1), row["id"])
	}
}

func TestExportAll_BinaryValuesSurvive(t *testing.T) {
	f := newFixture(t, 1)
	testdb.Exec(t, f.source, `CREATE TABLE blobs (id TEXT PRIMARY KEY, payload BLOB)`)
	testdb.Exec(t, f.target, `CREATE TABLE blobs (id TEXT PRIMARY KEY, payload BLOB)`)
	raw := []byte{0xff, 0x00, 0xfe, 0x80}
	_, err := f.source.Exec(`INSERT INTO blobs (id, payload) VALUES ('b1', ?)`, raw)
	require.NoError(t, err)

	report, err := f.m.MigrateAll(context.Background(), migrator.ExportOptions{Tables: []string{"blobs"}}, migrator.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.MigratedRecords)

	var got []byte
	require.NoError(t, f.target.QueryRow(`SELECT payload FROM blobs WHERE id = 'b1'`).Scan(&got))
	assert.Equal(t, raw, got)
}

func TestExportAll_MissingID(t *testing.T) {
	f := newFixture(t, 1)
	testdb.Exec(t, f.source,
		`CREATE TABLE settings (name TEXT PRIMARY KEY, value TEXT)`,
		`INSERT INTO settings VALUES ('theme', 'dark')`)

	_, err := f.m.ExportAll(context.Background(), migrator.ExportOptions{})
	assert.ErrorIs(t, err, migrator.ErrMissingID)
}

func TestMigrateAll_CheckViolationStopsImport(t *testing.T) {
	f := newFixture(t, 50)

	report, err := f.m.MigrateAll(context.Background(), migrator.ExportOptions{}, migrator.ImportOptions{BatchSize: 100})
	require.Error(t, err)
	var te *migrator.TableError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "clients", te.Table)

	require.NotNil(t, report)
	assert.Equal(t, migrator.StatusFailed, report.Status)
	clients := resultFor(t, report.Tables, "clients")
	assert.Equal(t, 50, clients.Total)
	assert.Equal(t, 49, clients.Migrated)
	assert.Equal(t, 1, clients.Failed)
	require.Len(t, clients.Errors, 1)
	assert.Contains(t, clients.Errors[0], "row c050")

	assert.Equal(t, 49, testdb.Count(t, f.target, "clients"))
	assert.Equal(t, 1, report.FailedTables())
	assert.False(t, report.EndTime.IsZero())

	var critical int
	for _, e := range f.audit.Entries() {
		if e.Level == audit.LevelCritical {
			critical++
			assert.NotEmpty(t, e.Remediation)
		}
	}
	assert.Equal(t, 1, critical)
	assert.Equal(t, "Migration failed", f.hook.LastEntry().Message)
}

func TestMigrateAll_ContinueOnError(t *testing.T) {
	f := newFixture(t, 50)

	report, err := f.m.MigrateAll(context.Background(), migrator.ExportOptions{}, migrator.ImportOptions{ContinueOnError: true})
	require.NoError(t, err)
	assert.Equal(t, migrator.StatusCompleted, report.Status)
	assert.Equal(t, 51, report.TotalRecords)
	assert.Equal(t, 50, report.MigratedRecords)
	assert.Equal(t, 1, report.FailedRecords)
	assert.NotEmpty(t, report.MigrationID)
}

func TestImportAll_CountsAreConserved(t *testing.T) {
	for _, size := range []int{1, 3, 7, 49, 50, 200} {
		t.Run(fmt.Sprintf("batch_%d", size), func(t *testing.T) {
			f := newFixture(t, 50)
			ctx := context.Background()
			data, err := f.m.ExportAll(ctx, migrator.ExportOptions{})
			require.NoError(t, err)

			results, err := f.m.ImportAll(ctx, data, migrator.ImportOptions{BatchSize: size, ContinueOnError: true})
			require.NoError(t, err)
			for _, r := range results {
				assert.Equal(t, r.Total, r.Migrated+r.Failed, r.Table)
			}
			clients := resultFor(t, results, "clients")
			assert.Equal(t, 49, clients.Migrated)
			assert.Equal(t, 1, clients.Failed)
			assert.Equal(t, 49, testdb.Count(t, f.target, "clients"))
		})
	}
}

func TestImportAll_TableMissingInTarget(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	data, err := f.m.ExportAll(ctx, migrator.ExportOptions{})
	require.NoError(t, err)
	data["notes"] = append(data["notes"], map[string]any{"id": "n1"}, map[string]any{"id": "n2"})

	results, err := f.m.ImportAll(ctx, data, migrator.ImportOptions{ContinueOnError: true})
	require.NoError(t, err)
	notes := resultFor(t, results, "notes")
	assert.Equal(t, 2, notes.Failed)
	assert.Equal(t, []string{"table does not exist in target"}, notes.Errors)
}

func TestImportAll_DryRunWritesNothing(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	data, err := f.m.ExportAll(ctx, migrator.ExportOptions{})
	require.NoError(t, err)

	results, err := f.m.ImportAll(ctx, data, migrator.ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 5, resultFor(t, results, "clients").Migrated)
	assert.Zero(t, testdb.Count(t, f.target, "clients"))
}

func TestImportAll_RerunIsIdempotent(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	data, err := f.m.ExportAll(ctx, migrator.ExportOptions{})
	require.NoError(t, err)
	opts := migrator.ImportOptions{PreserveIDs: true, ContinueOnError: true}

	_, err = f.m.ImportAll(ctx, data, opts)
	require.NoError(t, err)
	_, err = f.m.ImportAll(ctx, data, opts)
	require.NoError(t, err)
	assert.Equal(t, 9, testdb.Count(t, f.target, "clients"))
}

func TestProgressSnapshot(t *testing.T) {
	f := newFixture(t, 20)
	p := migrator.NewProgress()
	assert.Equal(t, migrator.PhaseIdle, p.Snapshot().Phase)

	ctx := migrator.WithProgress(context.Background(), p)
	_, err := f.m.MigrateAll(ctx, migrator.ExportOptions{BatchSize: 6}, migrator.ImportOptions{BatchSize: 4, ContinueOnError: true})
	require.NoError(t, err)

	s := p.Snapshot()
	assert.Equal(t, migrator.PhaseDone, s.Phase)
	assert.Equal(t, 2, s.TotalTables)
	assert.Equal(t, 2, s.CompletedTables)
	assert.EqualValues(t, 21, s.TotalRecords)
	assert.EqualValues(t, 21, s.ProcessedRecords)
	assert.EqualValues(t, 1, s.FailedRecords)

	var nilProgress *migrator.Progress
	assert.Equal(t, migrator.PhaseIdle, nilProgress.Snapshot().Phase)
	assert.Nil(t, migrator.ProgressFrom(context.Background()))
}

func TestValidateMigrationIntegrity(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()
	data, err := f.m.ExportAll(ctx, migrator.ExportOptions{PreserveTimestamps: true})
	require.NoError(t, err)
	_, err = f.m.ImportAll(ctx, data, migrator.ImportOptions{ContinueOnError: true})
	require.NoError(t, err)

	report, err := f.m.ValidateMigrationIntegrity(ctx, data, 0)
	require.NoError(t, err)
	assert.False(t, report.Valid())

	var clients migrator.TableIntegrity
	for _, ti := range report.Tables {
		if ti.Table == "clients" {
			clients = ti
		} else {
			assert.True(t, ti.OK(), ti.Table)
		}
	}
	assert.Equal(t, 8, clients.Expected)
	assert.Equal(t, 7, clients.Actual)
	require.Len(t, clients.Mismatches, 1)
	assert.Equal(t, "c008", clients.Mismatches[0].ID)
	assert.True(t, clients.Mismatches[0].Missing)

	testdb.Exec(t, f.target, `UPDATE clients SET email = 'changed@example.com' WHERE id = 'c002'`)
	report, err = f.m.ValidateMigrationIntegrity(ctx, data, 3)
	require.NoError(t, err)
	for _, ti := range report.Tables {
		if ti.Table != "clients" {
			continue
		}
		assert.Equal(t, 3, ti.Sampled)
		require.Len(t, ti.Mismatches, 1)
		assert.Equal(t, "c002", ti.Mismatches[0].ID)
		require.Len(t, ti.Mismatches[0].Fields, 1)
		assert.Equal(t, "email", ti.Mismatches[0].Fields[0].Field)
	}
}

func TestClean(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	_, err := f.m.MigrateAll(ctx, migrator.ExportOptions{}, migrator.ImportOptions{ContinueOnError: true})
	require.NoError(t, err)
	require.Equal(t, 3, testdb.Count(t, f.target, "clients"))

	n, err := f.m.Clean(ctx, []string{"clients"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, testdb.Count(t, f.target, "clients"))
	assert.Equal(t, 1, testdb.Count(t, f.target, "tenants"))

	n, err = f.m.Clean(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, testdb.Count(t, f.target, "tenants"))
}

func TestSaveAndLoadReport(t *testing.T) {
	f := newFixture(t, 3)
	report, err := f.m.MigrateAll(context.Background(), migrator.ExportOptions{}, migrator.ImportOptions{ContinueOnError: true})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reports", "migration.json")
	require.NoError(t, migrator.SaveReport(report, path))
	loaded, err := migrator.LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.MigrationID, loaded.MigrationID)
	assert.Equal(t, report.Status, loaded.Status)
	assert.Equal(t, report.MigratedRecords, loaded.MigratedRecords)
	assert.Len(t, loaded.Tables, len(report.Tables))

	_, err = migrator.LoadReport(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestIsInternalTable(t *testing.T) {
	assert.True(t, migrator.IsInternalTable("schema_migrations", migrator.DefaultExcludePrefixes))
	assert.True(t, migrator.IsInternalTable("Auth.users", migrator.DefaultExcludePrefixes))
	assert.False(t, migrator.IsInternalTable("clients", migrator.DefaultExcludePrefixes))
}

func TestOrderTables_CycleIsAudited(t *testing.T) {
	db := testdb.Open(t, "cycle",
		`CREATE TABLE a (id TEXT PRIMARY KEY, b_id TEXT REFERENCES b(id))`,
		`CREATE TABLE b (id TEXT PRIMARY KEY, a_id TEXT REFERENCES a(id))`,
		`CREATE TABLE root (id TEXT PRIMARY KEY)`)
	rec := audit.NewRecorder(nil)
	log, hook := test.NewNullLogger()
	m := migrator.New(migrator.Config{
		Source: migrator.Endpoint{DB: db, Dialect: &dialect.SqliteDialect{}, Schema: "main"},
		Log:    logrus.NewEntry(log),
		Audit:  rec,
	})

	tables, err := m.Tables(context.Background(), migrator.Endpoint{DB: db, Dialect: &dialect.SqliteDialect{}, Schema: "main"})
	require.NoError(t, err)
	require.Len(t, tables, 3)
	assert.Equal(t, "root", tables[0].Name)

	require.Len(t, rec.Entries(), 1)
	assert.Equal(t, audit.LevelWarning, rec.Entries()[0].Level)
	assert.Equal(t, "Breaking circular dependency", hook.LastEntry().Message)
}
