// Package validator checks that a finished migration left the target with
// the same data as the source.
package validator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"db-shift/internal/audit"
	"db-shift/internal/metrics"
	"db-shift/internal/migrator"
	"db-shift/internal/schema"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Source          migrator.Endpoint
	Target          migrator.Endpoint
	PriorityTables  []string
	ExcludePrefixes []string
	Log             *logrus.Entry
	Audit           audit.Sink
	Metrics         *metrics.Recorder
}

// Validator holds connections only; every run returns its own result and metrics.
type Validator struct {
	source, target migrator.Endpoint
	priority       []string
	exclude        []string
	log            *logrus.Entry
	audit          audit.Sink
	metrics        *metrics.Recorder
}

func New(cfg Config) *Validator {
	v := &Validator{
		source:   cfg.Source,
		target:   cfg.Target,
		priority: cfg.PriorityTables,
		exclude:  cfg.ExcludePrefixes,
		log:      cfg.Log,
		audit:    audit.OrNop(cfg.Audit),
		metrics:  cfg.Metrics,
	}
	if v.priority == nil {
		v.priority = migrator.DefaultPriorityTables
	}
	if v.exclude == nil {
		v.exclude = migrator.DefaultExcludePrefixes
	}
	if v.log == nil {
		v.log = logrus.NewEntry(logrus.StandardLogger())
	}
	v.log = v.log.WithField("component", "validator")
	return v
}

// ValidateMigration runs every enabled check on each non-internal source
// table in dependency order. Check failures are reported in the result; an
// error is returned only when the catalogs cannot be read or ctx ends.
func (v *Validator) ValidateMigration(ctx context.Context, opts Options) (*ValidationResult, error) {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	res := &ValidationResult{StartTime: time.Now().UTC()}
	audit.Phase(v.audit, "validate", "Validation started", nil)

	if v.source.DB == nil || v.target.DB == nil {
		return nil, schema.ErrNoLiveConnection
	}
	sourceCatalog, err := schema.Introspect(ctx, v.source.DB, v.source.Dialect, v.source.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to read source catalog: %w", err)
	}
	targetCatalog, err := schema.Introspect(ctx, v.target.DB, v.target.Dialect, v.target.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to read target catalog: %w", err)
	}

	tables := migrator.OrderTables(sourceCatalog.Tables, v.priority, v.exclude, v.log, v.audit)
	if len(opts.Tables) > 0 {
		tables = filterTables(tables, opts.Tables)
	}

	for _, src := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tgt := targetCatalog.Table(src.Name)
		var tr TableValidationResult
		if tgt == nil {
			tr = TableValidationResult{Table: src.Name}
			tr.check(false)
			tr.addError(ValidationError{Type: MissingData, Critical: true, Message: "table does not exist in target"})
		} else {
			tr = v.validateTable(ctx, src, tgt, opts)
		}
		res.Tables = append(res.Tables, tr)
		res.Errors = append(res.Errors, tr.Errors...)
		res.Warnings = append(res.Warnings, tr.Warnings...)
		res.Metrics.ChecksPerformed += tr.ChecksPerformed
		res.Metrics.ChecksPassed += tr.ChecksPassed
		res.Metrics.RowsSampled += tr.Sample.Sampled

		entry := v.log.WithFields(logrus.Fields{"table": tr.Table, "errors": len(tr.Errors), "warnings": len(tr.Warnings)})
		if tr.IsValid {
			res.Metrics.TablesValid++
			entry.Info("Table validated")
		} else {
			entry.Error("Table failed validation")
		}
	}

	res.Metrics.TablesValidated = len(res.Tables)
	res.EndTime = time.Now().UTC()
	res.Metrics.Duration = res.EndTime.Sub(res.StartTime)
	res.Score = Score(res.Metrics.TablesValid, res.Metrics.TablesValidated, res.Warnings, res.Errors)
	res.IsValid = len(res.CriticalErrors()) == 0
	v.metrics.ValidationScore(res.Score)

	for _, e := range res.CriticalErrors() {
		audit.Failure(v.audit, audit.LevelCritical, "validate", fmt.Errorf("%s: %s", e.Type, e.Message),
			map[string]any{"table": e.Table, "column": e.Column}, remediationFor(e.Type))
	}
	audit.Phase(v.audit, "validate", "Validation finished", map[string]any{"score": res.Score, "valid": res.IsValid})
	return res, nil
}

func filterTables(tables []*schema.TableMetadata, names []string) []*schema.TableMetadata {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	var out []*schema.TableMetadata
	for _, t := range tables {
		if want[strings.ToLower(t.Name)] {
			out = append(out, t)
		}
	}
	return out
}

func remediationFor(t ErrorType) string {
	switch t {
	case MissingData:
		return "Re-run the migration for the affected table and inspect the failed rows in the migration report."
	case CorruptedData:
		return "Compare source and target rows of the table and re-import the differing ones."
	case ReferenceError:
		return "Import the missing parent rows or remove the orphaned child rows."
	case ConstraintViolation:
		return "Remove duplicate keys and NULLs in NOT NULL columns, then re-validate."
	}
	return "Investigate the table manually."
}
