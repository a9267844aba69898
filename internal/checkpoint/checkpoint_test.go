package checkpoint_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"db-shift/internal/audit"
	"db-shift/internal/checkpoint"
	"db-shift/internal/metrics"
	"db-shift/internal/migrator"
	"db-shift/internal/validator"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	report *migrator.MigrationReport
	err    error
	calls  int
}

func (f *fakeRunner) MigrateAll(context.Context, migrator.ExportOptions, migrator.ImportOptions) (*migrator.MigrationReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeValidator struct {
	result *validator.ValidationResult
	err    error
	opts   validator.Options
}

func (f *fakeValidator) ValidateMigration(_ context.Context, opts validator.Options) (*validator.ValidationResult, error) {
	f.opts = opts
	return f.result, f.err
}

func report(total, migrated int) *migrator.MigrationReport {
	end := time.Now().UTC()
	return &migrator.MigrationReport{
		MigrationID: "mig-1",
		StartTime:   end.Add(-10 * time.Second),
		EndTime:     end,
		Status:      migrator.StatusCompleted,
		Tables: []migrator.TableMigrationResult{
			{Table: "tenants", Total: 1, Migrated: 1},
			{Table: "clients", Total: total - 1, Migrated: migrated - 1, Failed: total - migrated},
		},
		TotalRecords:    total,
		MigratedRecords: migrated,
		FailedRecords:   total - migrated,
	}
}

func cleanValidation() *validator.ValidationResult {
	return &validator.ValidationResult{
		Tables: []validator.TableValidationResult{{
			Table:       "clients",
			RecordCount: validator.RecordCountCheck{Source: 49, Target: 49, Matches: true},
			Checksum:    validator.ChecksumCheck{Performed: true, Matches: true},
			Sample:      validator.SampleCheck{Sampled: 10, Matched: 10, MatchPercentage: 100},
			IsValid:     true,
		}},
		Score:   100,
		IsValid: true,
	}
}

type harness struct {
	runner    *fakeRunner
	validator *fakeValidator
	audit     *audit.Recorder
	cp        *checkpoint.Checkpoint
}

func newHarness(r *migrator.MigrationReport, v *validator.ValidationResult) *harness {
	log, _ := test.NewNullLogger()
	h := &harness{
		runner:    &fakeRunner{report: r},
		validator: &fakeValidator{result: v},
		audit:     audit.NewRecorder(nil),
	}
	h.cp = checkpoint.New(h.runner, h.validator, checkpoint.Config{
		Log:     logrus.NewEntry(log),
		Audit:   h.audit,
		Metrics: metrics.New(),
	})
	return h
}

func titles(recs []checkpoint.ValidationRecommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func TestValidatePhase_Passed(t *testing.T) {
	h := newHarness(report(50, 50), cleanValidation())

	res, err := h.cp.ValidatePhase(context.Background(), checkpoint.Options{
		Report:     h.runner.report,
		Validation: validator.Options{DetailedReporting: true},
	})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusPassed, res.Status)
	assert.Equal(t, 100.0, res.OverallScore)
	assert.True(t, res.DataMigration.Completed)
	assert.Equal(t, 100.0, res.DataMigration.CompletionScore)
	assert.Equal(t, "mig-1", res.DataMigration.MigrationID)
	assert.True(t, res.Integrity.Performed)
	assert.Zero(t, res.Integrity.FailedChecks)
	assert.NotNil(t, res.Integrity.Details)
	assert.True(t, res.Performance.Performed)
	assert.InDelta(t, 5.0, res.Performance.RecordsPerSecond, 0.01)
	assert.Empty(t, res.CriticalIssues)
	assert.Equal(t, []string{"Proceed"}, titles(res.Recommendations))
	assert.NotEmpty(t, res.CheckpointID)
	assert.Contains(t, res.Summary, "Checkpoint PASSED with score 100.0")
	assert.Zero(t, h.runner.calls)
}

func TestValidatePhase_IncompleteMigrationFails(t *testing.T) {
	h := newHarness(report(50, 49), cleanValidation())

	res, err := h.cp.ValidatePhase(context.Background(), checkpoint.Options{Report: h.runner.report})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusFailed, res.Status)
	assert.False(t, res.DataMigration.Completed)
	assert.Equal(t, 1, res.DataMigration.FailedTables)
	assert.InDelta(t, 98.0, res.DataMigration.CompletionScore, 0.001)
	assert.InDelta(t, (98.0+100.0)/2-checkpoint.CriticalIssuePenalty, res.OverallScore, 0.001)

	require.Len(t, res.CriticalIssues, 1)
	assert.Equal(t, checkpoint.CategoryMigration, res.CriticalIssues[0].Category)
	assert.Contains(t, titles(res.Recommendations), "Complete data migration")
	assert.NotContains(t, titles(res.Recommendations), "Proceed")

	var critical int
	for _, e := range h.audit.Entries() {
		if e.Level == audit.LevelCritical {
			critical++
		}
	}
	assert.Equal(t, 1, critical)
}

func TestValidatePhase_FailedChecksDecideStatus(t *testing.T) {
	one := cleanValidation()
	one.Tables[0].DataTypes = validator.DataTypeCheck{Performed: true, Passed: false}
	one.Errors = []validator.ValidationError{{Table: "clients", Type: validator.TypeMismatch, Message: "drift"}}

	h := newHarness(report(50, 50), one)
	res, err := h.cp.ValidatePhase(context.Background(), checkpoint.Options{Report: h.runner.report})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Integrity.FailedChecks)
	assert.Equal(t, checkpoint.StatusPassedWithWarnings, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, checkpoint.PriorityMedium, res.Warnings[0].Severity)
	assert.Contains(t, titles(res.Recommendations), "Review data type conversions")

	three := cleanValidation()
	three.Tables[0].DataTypes = validator.DataTypeCheck{Performed: true}
	three.Tables[0].Constraints = validator.ConstraintCheck{Performed: true}
	three.Tables[0].Checksum = validator.ChecksumCheck{Performed: true}

	h = newHarness(report(50, 50), three)
	res, err = h.cp.ValidatePhase(context.Background(), checkpoint.Options{Report: h.runner.report})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Integrity.FailedChecks)
	assert.Equal(t, checkpoint.StatusFailed, res.Status)
}

func TestValidatePhase_CriticalValidationErrorFails(t *testing.T) {
	v := cleanValidation()
	v.Tables[0].RecordCount = validator.RecordCountCheck{Source: 50, Target: 49}
	v.Errors = []validator.ValidationError{{Table: "clients", Type: validator.MissingData, Critical: true, Message: "expected 50, got 49"}}
	v.Score = 80

	h := newHarness(report(50, 50), v)
	res, err := h.cp.ValidatePhase(context.Background(), checkpoint.Options{Report: h.runner.report})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusFailed, res.Status)
	require.Len(t, res.CriticalIssues, 1)
	issue := res.CriticalIssues[0]
	assert.Equal(t, string(validator.MissingData), issue.Category)
	assert.Equal(t, "clients", issue.Table)
	assert.NotEmpty(t, issue.Remediation)
	assert.Contains(t, titles(res.Recommendations), "Resolve missing records")
}

func TestValidatePhase_ValidatorErrorIsCritical(t *testing.T) {
	h := newHarness(report(50, 50), nil)
	h.validator.err = errors.New("connection refused")

	res, err := h.cp.ValidatePhase(context.Background(), checkpoint.Options{Report: h.runner.report})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusFailed, res.Status)
	require.Len(t, res.CriticalIssues, 1)
	assert.Equal(t, checkpoint.CategoryIntegrity, res.CriticalIssues[0].Category)
	assert.Contains(t, res.CriticalIssues[0].Message, "connection refused")
	assert.False(t, res.Integrity.Performed)
}

func TestValidatePhase_MissingValidatorIsCritical(t *testing.T) {
	log, _ := test.NewNullLogger()
	cp := checkpoint.New(nil, nil, checkpoint.Config{Log: logrus.NewEntry(log)})

	res, err := cp.ValidatePhase(context.Background(), checkpoint.Options{Report: report(50, 50)})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusFailed, res.Status)
	require.Len(t, res.CriticalIssues, 1)
	assert.Equal(t, checkpoint.CategoryIntegrity, res.CriticalIssues[0].Category)
	assert.Contains(t, res.CriticalIssues[0].Message, "no validator configured")

	skipped, err := cp.ValidatePhase(context.Background(), checkpoint.Options{Report: report(50, 50), SkipIntegrity: true})
	require.NoError(t, err)
	assert.Empty(t, skipped.CriticalIssues)
}

func TestValidatePhase_ReportSources(t *testing.T) {
	h := newHarness(report(50, 50), cleanValidation())

	res, err := h.cp.ValidatePhase(context.Background(), checkpoint.Options{RunMigration: true})
	require.NoError(t, err)
	assert.Equal(t, 1, h.runner.calls)
	assert.Equal(t, checkpoint.StatusPassed, res.Status)

	path := filepath.Join(t.TempDir(), "migration.json")
	require.NoError(t, migrator.SaveReport(report(50, 50), path))
	res, err = h.cp.ValidatePhase(context.Background(), checkpoint.Options{ReportPath: path})
	require.NoError(t, err)
	assert.Equal(t, "mig-1", res.DataMigration.MigrationID)
	assert.Equal(t, 1, h.runner.calls)

	res, err = h.cp.ValidatePhase(context.Background(), checkpoint.Options{})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusFailed, res.Status)
	require.NotEmpty(t, res.CriticalIssues)
	assert.Equal(t, "no migration report available", res.CriticalIssues[0].Message)
	assert.False(t, res.Performance.Performed)
}

func TestValidatePhase_SkipsAndPerformanceWarnings(t *testing.T) {
	h := newHarness(report(50, 50), cleanValidation())

	res, err := h.cp.ValidatePhase(context.Background(), checkpoint.Options{
		Report:              h.runner.report,
		SkipIntegrity:       true,
		MinRecordsPerSecond: 100,
	})
	require.NoError(t, err)
	assert.False(t, res.Integrity.Performed)
	assert.Equal(t, checkpoint.StatusPassedWithWarnings, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, checkpoint.CategoryPerformance, res.Warnings[0].Category)
	assert.Equal(t, checkpoint.PriorityLow, res.Warnings[0].Severity)
	assert.Equal(t, []string{"Run integrity validation", "Tune migration performance"}, titles(res.Recommendations))

	res, err = h.cp.ValidatePhase(context.Background(), checkpoint.Options{
		Report:          h.runner.report,
		SkipPerformance: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Performance.Performed)
	assert.Equal(t, checkpoint.StatusPassed, res.Status)
}

func TestValidatePhase_HighErrorRateWarns(t *testing.T) {
	r := report(50, 50)
	r.TotalRecords, r.FailedRecords = 1000, 20

	h := newHarness(r, cleanValidation())
	res, err := h.cp.ValidatePhase(context.Background(), checkpoint.Options{Report: r, SkipIntegrity: true})
	require.NoError(t, err)
	assert.InDelta(t, 0.02, res.Performance.ErrorRate, 1e-9)

	var found bool
	for _, w := range res.Warnings {
		if w.Category == checkpoint.CategoryPerformance && w.Severity == checkpoint.PriorityMedium {
			found = true
		}
	}
	assert.True(t, found)
}

func rank(s checkpoint.Status) int {
	switch s {
	case checkpoint.StatusPassed:
		return 0
	case checkpoint.StatusPassedWithWarnings:
		return 1
	}
	return 2
}

func TestValidatePhase_MoreProblemsNeverImproveStatus(t *testing.T) {
	ctx := context.Background()
	base := newHarness(report(50, 50), cleanValidation())
	clean, err := base.cp.ValidatePhase(ctx, checkpoint.Options{Report: base.runner.report})
	require.NoError(t, err)

	worse := cleanValidation()
	worse.Warnings = []validator.ValidationWarning{{Table: "clients", Type: validator.SampleMismatch, Severity: validator.SeverityMedium}}
	h := newHarness(report(50, 50), worse)
	warned, err := h.cp.ValidatePhase(ctx, checkpoint.Options{Report: h.runner.report})
	require.NoError(t, err)

	worst := cleanValidation()
	worst.Warnings = worse.Warnings
	worst.Errors = []validator.ValidationError{{Table: "clients", Type: validator.CorruptedData, Critical: true}}
	h = newHarness(report(50, 50), worst)
	failed, err := h.cp.ValidatePhase(ctx, checkpoint.Options{Report: h.runner.report})
	require.NoError(t, err)

	assert.LessOrEqual(t, rank(clean.Status), rank(warned.Status))
	assert.LessOrEqual(t, rank(warned.Status), rank(failed.Status))
	assert.GreaterOrEqual(t, clean.OverallScore, failed.OverallScore)
	assert.Equal(t, checkpoint.StatusFailed, failed.Status)
}

func TestValidatePhase_CancelledContext(t *testing.T) {
	h := newHarness(nil, cleanValidation())
	h.runner.err = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.cp.ValidatePhase(ctx, checkpoint.Options{RunMigration: true})
	assert.ErrorIs(t, err, context.Canceled)
}
