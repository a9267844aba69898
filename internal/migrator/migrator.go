// Package migrator copies table data from a source database to a target
// database in dependency order and reports per-table outcomes.
package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"db-shift/internal/audit"
	"db-shift/internal/dialect"
	"db-shift/internal/metrics"
	"db-shift/internal/schema"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Endpoint is one side of a migration.
type Endpoint struct {
	DB      *sql.DB
	Dialect dialect.Dialect
	Schema  string
}

type Config struct {
	Source          Endpoint
	Target          Endpoint
	PriorityTables  []string
	ExcludePrefixes []string
	Log             *logrus.Entry
	Audit           audit.Sink
	Metrics         *metrics.Recorder
}

type Migrator struct {
	source, target  Endpoint
	priority        []string
	excludePrefixes []string
	log             *logrus.Entry
	audit           audit.Sink
	metrics         *metrics.Recorder
}

func New(cfg Config) *Migrator {
	m := &Migrator{
		source:          cfg.Source,
		target:          cfg.Target,
		priority:        cfg.PriorityTables,
		excludePrefixes: cfg.ExcludePrefixes,
		log:             cfg.Log,
		audit:           audit.OrNop(cfg.Audit),
		metrics:         cfg.Metrics,
	}
	if m.priority == nil {
		m.priority = DefaultPriorityTables
	}
	if m.excludePrefixes == nil {
		m.excludePrefixes = DefaultExcludePrefixes
	}
	if m.log == nil {
		m.log = logrus.NewEntry(logrus.StandardLogger())
	}
	m.log = m.log.WithField("component", "migrator")
	return m
}

// IsInternalTable reports whether name matches one of the excluded prefixes.
func IsInternalTable(name string, prefixes []string) bool {
	lower := strings.ToLower(name)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Tables introspects an endpoint and returns its non-internal tables in
// dependency order. A foreign key cycle is logged and audited; the cycle
// members are still returned, after every other table.
func (m *Migrator) Tables(ctx context.Context, ep Endpoint) ([]*schema.TableMetadata, error) {
	if ep.DB == nil {
		return nil, schema.ErrNoLiveConnection
	}
	catalog, err := schema.Introspect(ctx, ep.DB, ep.Dialect, ep.Schema)
	if err != nil {
		return nil, err
	}
	return OrderTables(catalog.Tables, m.priority, m.excludePrefixes, m.log, m.audit), nil
}

// OrderTables filters internal tables and sorts the rest by dependency.
func OrderTables(tables []*schema.TableMetadata, priority, exclude []string, log *logrus.Entry, sink audit.Sink) []*schema.TableMetadata {
	var kept []*schema.TableMetadata
	for _, t := range tables {
		if !IsInternalTable(t.Name, exclude) {
			kept = append(kept, t)
		}
	}
	ordered, err := schema.DependencyOrder(kept, priority)
	var cyc *schema.CycleError
	if errors.As(err, &cyc) {
		if log != nil {
			log.WithField("tables", cyc.Tables).Warn("Breaking circular dependency")
		}
		audit.Failure(sink, audit.LevelWarning, "order_tables", err,
			map[string]any{"tables": cyc.Tables},
			"Review the foreign keys between these tables; rows referencing later tables rely on deferred constraint checks.")
	}
	return ordered
}

// MigrateAll exports every table from the source and imports it into the
// target. The report is returned even when the import aborts.
func (m *Migrator) MigrateAll(ctx context.Context, exportOpts ExportOptions, importOpts ImportOptions) (*MigrationReport, error) {
	report := &MigrationReport{
		MigrationID: uuid.NewString(),
		StartTime:   time.Now().UTC(),
		Status:      StatusInProgress,
		DryRun:      importOpts.DryRun,
	}
	log := m.log.WithField("migration_id", report.MigrationID)
	audit.Phase(m.audit, "migrate", "Migration started", map[string]any{"migration_id": report.MigrationID})

	finish := func(status MigrationStatus, err error) (*MigrationReport, error) {
		report.Status = status
		report.EndTime = time.Now().UTC()
		report.tally()
		ProgressFrom(ctx).setPhase(PhaseDone)
		fields := map[string]any{
			"migration_id": report.MigrationID,
			"status":       string(status),
			"migrated":     report.MigratedRecords,
			"failed":       report.FailedRecords,
		}
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			audit.Failure(m.audit, audit.LevelCritical, "migrate", err, fields,
				"Inspect the failed tables in the migration report, fix the cause and rerun the migration.")
			log.WithError(err).Error("Migration failed")
			return report, err
		}
		audit.Phase(m.audit, "migrate", "Migration finished", fields)
		log.WithFields(logrus.Fields{"migrated": report.MigratedRecords, "failed": report.FailedRecords}).Info("Migration finished")
		return report, nil
	}

	data, err := m.ExportAll(ctx, exportOpts)
	if err != nil {
		return finish(StatusFailed, fmt.Errorf("export failed: %w", err))
	}
	results, err := m.ImportAll(ctx, data, importOpts)
	report.Tables = results
	if err != nil {
		return finish(StatusFailed, fmt.Errorf("import failed: %w", err))
	}
	return finish(StatusCompleted, nil)
}
