package migrator

import (
	"errors"
	"fmt"
	"time"

	"db-shift/internal/record"
)

// ErrMissingID is returned when an exported row has no usable id.
var ErrMissingID = errors.New("row has no id")

// MigrationData holds exported rows keyed by table name.
type MigrationData map[string][]record.Row

// Count returns the number of rows across every table.
func (d MigrationData) Count() int {
	n := 0
	for _, rows := range d {
		n += len(rows)
	}
	return n
}

type MigrationStatus string

const (
	StatusPending    MigrationStatus = "PENDING"
	StatusInProgress MigrationStatus = "IN_PROGRESS"
	StatusCompleted  MigrationStatus = "COMPLETED"
	StatusFailed     MigrationStatus = "FAILED"
	StatusRolledBack MigrationStatus = "ROLLED_BACK"
)

// TableMigrationResult is the outcome of importing one table.
// Migrated + Failed always equals Total.
type TableMigrationResult struct {
	Table     string    `json:"tableName"`
	Total     int       `json:"totalRecords"`
	Migrated  int       `json:"migratedRecords"`
	Failed    int       `json:"failedRecords"`
	Errors    []string  `json:"errors,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// OK reports whether every row made it into the target.
func (r TableMigrationResult) OK() bool { return r.Failed == 0 }

type MigrationReport struct {
	MigrationID     string                 `json:"migrationId"`
	StartTime       time.Time              `json:"startTime"`
	EndTime         time.Time              `json:"endTime"`
	Tables          []TableMigrationResult `json:"tables"`
	TotalRecords    int                    `json:"totalRecords"`
	MigratedRecords int                    `json:"migratedRecords"`
	FailedRecords   int                    `json:"failedRecords"`
	Status          MigrationStatus        `json:"status"`
	Errors          []string               `json:"errors,omitempty"`
	DryRun          bool                   `json:"dryRun,omitempty"`
}

// FailedTables counts tables with at least one failed row.
func (r *MigrationReport) FailedTables() int {
	n := 0
	for _, t := range r.Tables {
		if !t.OK() {
			n++
		}
	}
	return n
}

// Duration is the wall time of the run, zero while it is still running.
func (r *MigrationReport) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

func (r *MigrationReport) tally() {
	r.TotalRecords, r.MigratedRecords, r.FailedRecords = 0, 0, 0
	for _, t := range r.Tables {
		r.TotalRecords += t.Total
		r.MigratedRecords += t.Migrated
		r.FailedRecords += t.Failed
	}
}

// TableError aborts an import when ContinueOnError is false.
type TableError struct {
	Table  string
	Result TableMigrationResult
	Err    error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table %s: %d of %d rows failed: %v", e.Table, e.Result.Failed, e.Result.Total, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// DefaultExcludePrefixes name migration bookkeeping and platform tables.
var DefaultExcludePrefixes = []string{
	"schema_migrations", "supabase_migrations", "auth.", "storage.", "_prisma", "pg_", "sqlite_",
}

// DefaultPriorityTables are imported first among tables that are ready.
var DefaultPriorityTables = []string{"tenants", "users", "profiles", "owners", "clients"}

type ExportOptions struct {
	// Tables restricts the export; empty means every non-internal table.
	Tables             []string
	BatchSize          int
	PreserveTimestamps bool
}

type ImportOptions struct {
	BatchSize       int
	PreserveIDs     bool
	ContinueOnError bool
	DryRun          bool
}

const (
	DefaultExportBatchSize = 1000
	DefaultImportBatchSize = 100
	DefaultIntegritySample = 10
)

func (o ExportOptions) withDefaults() ExportOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultExportBatchSize
	}
	return o
}

func (o ImportOptions) withDefaults() ImportOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultImportBatchSize
	}
	return o
}
