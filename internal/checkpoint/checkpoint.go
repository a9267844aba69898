// Package checkpoint decides whether a migration is good enough for the
// next phase to start.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"db-shift/internal/audit"
	"db-shift/internal/metrics"
	"db-shift/internal/migrator"
	"db-shift/internal/validator"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Runner performs a migration; *migrator.Migrator satisfies it.
type Runner interface {
	MigrateAll(ctx context.Context, exportOpts migrator.ExportOptions, importOpts migrator.ImportOptions) (*migrator.MigrationReport, error)
}

// Validator checks a finished migration; *validator.Validator satisfies it.
type Validator interface {
	ValidateMigration(ctx context.Context, opts validator.Options) (*validator.ValidationResult, error)
}

var (
	errNoReport    = errors.New("no migration report available")
	errNoValidator = errors.New("no validator configured")
)

const (
	// MaxErrorRate is the failed/total record ratio above which performance is flagged.
	MaxErrorRate = 0.01
	// CriticalIssuePenalty is subtracted from the overall score per critical issue.
	CriticalIssuePenalty = 10.0
)

type Options struct {
	// Report is inspected as-is when set. Otherwise the migration runs when
	// RunMigration is set, or the report is loaded from ReportPath.
	Report       *migrator.MigrationReport
	ReportPath   string
	RunMigration bool
	Export       migrator.ExportOptions
	Import       migrator.ImportOptions

	SkipIntegrity       bool
	SkipPerformance     bool
	Validation          validator.Options
	MinRecordsPerSecond float64
	GenerateReport      bool
}

type Config struct {
	Log     *logrus.Entry
	Audit   audit.Sink
	Metrics *metrics.Recorder
}

type Checkpoint struct {
	runner    Runner
	validator Validator
	log       *logrus.Entry
	audit     audit.Sink
	metrics   *metrics.Recorder
}

// New builds a checkpoint. runner may be nil when reports are always supplied.
func New(runner Runner, v Validator, cfg Config) *Checkpoint {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Checkpoint{
		runner:    runner,
		validator: v,
		log:       log.WithField("component", "checkpoint"),
		audit:     audit.OrNop(cfg.Audit),
		metrics:   cfg.Metrics,
	}
}

// ValidatePhase assesses the migration, runs integrity validation and
// performance analysis, and derives the status, score and recommendations.
func (c *Checkpoint) ValidatePhase(ctx context.Context, opts Options) (*Phase2ValidationResult, error) {
	res := &Phase2ValidationResult{
		CheckpointID: uuid.NewString(),
		Status:       StatusInProgress,
		StartedAt:    time.Now().UTC(),
	}
	log := c.log.WithField("checkpoint_id", res.CheckpointID)
	audit.Phase(c.audit, "checkpoint", "Checkpoint validation started", map[string]any{"checkpoint_id": res.CheckpointID})

	// (a) migration
	report, err := c.latestReport(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Error("Migration assessment failed")
	}
	c.assessMigration(res, report, err)

	// (b) integrity
	if !opts.SkipIntegrity {
		if err := c.assessIntegrity(ctx, res, opts.Validation); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).Error("Integrity validation failed")
		}
	}

	// (c) performance
	if !opts.SkipPerformance && report != nil {
		assessPerformance(res, report, opts.MinRecordsPerSecond)
	}

	// (d) decision
	res.OverallScore = overallScore(res)
	res.Status = decideStatus(res)
	res.Recommendations = recommend(res, opts)
	res.Summary = summarize(res)
	res.CompletedAt = time.Now().UTC()
	c.metrics.CheckpointScore(res.OverallScore)

	if opts.GenerateReport {
		if res.Report, err = RenderReport(res); err != nil {
			return nil, err
		}
	}

	for _, issue := range res.CriticalIssues {
		audit.Failure(c.audit, audit.LevelCritical, "checkpoint", errors.New(issue.Message),
			map[string]any{"category": issue.Category, "table": issue.Table}, issue.Remediation)
	}
	audit.Phase(c.audit, "checkpoint", "Checkpoint validation finished", map[string]any{
		"checkpoint_id": res.CheckpointID,
		"status":        string(res.Status),
		"score":         res.OverallScore,
	})
	log.WithFields(logrus.Fields{"status": res.Status, "score": res.OverallScore}).Info("Checkpoint decided")
	return res, nil
}

func (c *Checkpoint) latestReport(ctx context.Context, opts Options) (*migrator.MigrationReport, error) {
	switch {
	case opts.Report != nil:
		return opts.Report, nil
	case opts.RunMigration:
		if c.runner == nil {
			return nil, errors.New("migration requested but no runner configured")
		}
		return c.runner.MigrateAll(ctx, opts.Export, opts.Import)
	case opts.ReportPath != "":
		return migrator.LoadReport(opts.ReportPath)
	}
	return nil, errNoReport
}

func (c *Checkpoint) assessMigration(res *Phase2ValidationResult, report *migrator.MigrationReport, err error) {
	dm := &res.DataMigration
	if report != nil {
		dm.MigrationID = report.MigrationID
		dm.Status = report.Status
		dm.TotalTables = len(report.Tables)
		dm.FailedTables = report.FailedTables()
		dm.TotalRecords = report.TotalRecords
		dm.MigratedRecords = report.MigratedRecords
		dm.FailedRecords = report.FailedRecords
		dm.Completed = report.Status == migrator.StatusCompleted &&
			dm.FailedTables == 0 &&
			dm.MigratedRecords == dm.TotalRecords
	}

	switch {
	case dm.Completed:
		dm.CompletionScore = 100
	case dm.TotalRecords > 0:
		dm.CompletionScore = float64(dm.MigratedRecords) / float64(dm.TotalRecords) * 100
	}

	if dm.Completed {
		return
	}
	msg := fmt.Sprintf("migration not completed: %d of %d records migrated, %d tables failed (status %s)",
		dm.MigratedRecords, dm.TotalRecords, dm.FailedTables, dm.Status)
	if report == nil && err != nil {
		msg = err.Error()
	} else if err != nil {
		msg += ": " + err.Error()
	}
	res.CriticalIssues = append(res.CriticalIssues, CriticalIssue{
		Category:    CategoryMigration,
		Message:     msg,
		Remediation: "Complete the data migration before continuing.",
	})
}

func (c *Checkpoint) assessIntegrity(ctx context.Context, res *Phase2ValidationResult, opts validator.Options) error {
	var vr *validator.ValidationResult
	err := errNoValidator
	if c.validator != nil {
		vr, err = c.validator.ValidateMigration(ctx, opts)
	}
	if err != nil {
		res.CriticalIssues = append(res.CriticalIssues, CriticalIssue{
			Category:    CategoryIntegrity,
			Message:     fmt.Sprintf("integrity validation could not run: %v", err),
			Remediation: "Check connectivity to both databases and rerun the checkpoint.",
		})
		return err
	}

	sum := vr.Summary()
	iv := &res.Integrity
	iv.Performed = true
	iv.Score = vr.Score
	iv.RecordCounts = sum.RecordCountsMatch
	iv.Checksums = sum.ChecksumsMatch
	iv.ReferentialIntegrity = sum.ReferencesValid
	iv.Constraints = sum.ConstraintsValid
	iv.DataTypes = sum.DataTypesValid
	iv.SampleMatchPercentage = sum.SampleMatchPercentage
	iv.FailedChecks = countFalse(iv.RecordCounts, iv.Checksums, iv.ReferentialIntegrity, iv.Constraints, iv.DataTypes)
	if opts.DetailedReporting {
		iv.Details = vr
	}

	for _, e := range vr.Errors {
		if e.Critical {
			res.CriticalIssues = append(res.CriticalIssues, CriticalIssue{
				Category:    string(e.Type),
				Table:       e.Table,
				Message:     e.Message,
				Remediation: remediation(e.Type),
			})
			continue
		}
		res.Warnings = append(res.Warnings, ValidationWarning{
			Category: string(e.Type),
			Table:    e.Table,
			Message:  e.Message,
			Severity: PriorityMedium,
		})
	}
	for _, w := range vr.Warnings {
		res.Warnings = append(res.Warnings, ValidationWarning{
			Category: string(w.Type),
			Table:    w.Table,
			Message:  w.Message,
			Severity: Priority(w.Severity),
		})
	}
	return nil
}

func assessPerformance(res *Phase2ValidationResult, report *migrator.MigrationReport, minRPS float64) {
	pm := &res.Performance
	pm.Performed = true
	pm.Duration = report.Duration()
	if secs := pm.Duration.Seconds(); secs > 0 {
		pm.RecordsPerSecond = float64(report.MigratedRecords) / secs
	}
	if report.TotalRecords > 0 {
		pm.ErrorRate = float64(report.FailedRecords) / float64(report.TotalRecords)
	}

	if minRPS > 0 && pm.Duration > 0 && pm.RecordsPerSecond < minRPS {
		res.Warnings = append(res.Warnings, ValidationWarning{
			Category: CategoryPerformance,
			Message:  fmt.Sprintf("throughput %.1f records/s is below %.1f", pm.RecordsPerSecond, minRPS),
			Severity: PriorityLow,
		})
	}
	if pm.ErrorRate > MaxErrorRate {
		res.Warnings = append(res.Warnings, ValidationWarning{
			Category: CategoryPerformance,
			Message:  fmt.Sprintf("error rate %.2f%% exceeds %.0f%%", pm.ErrorRate*100, MaxErrorRate*100),
			Severity: PriorityMedium,
		})
	}
}

func countFalse(checks ...bool) int {
	n := 0
	for _, ok := range checks {
		if !ok {
			n++
		}
	}
	return n
}

func remediation(t validator.ErrorType) string {
	switch t {
	case validator.MissingData:
		return "Re-run the migration for this table and inspect its failed rows."
	case validator.CorruptedData:
		return "Compare source and target rows and re-import the differing ones."
	case validator.ReferenceError:
		return "Import the missing parent rows or delete the orphaned children."
	case validator.ConstraintViolation:
		return "Remove duplicate keys and NULLs in NOT NULL columns."
	}
	return ""
}
