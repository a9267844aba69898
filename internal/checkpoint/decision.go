package checkpoint

import (
	"fmt"

	"db-shift/internal/validator"
)

// Status thresholds on the overall score.
const (
	FailScore      = 70.0
	WarnScore      = 90.0
	MaxFailedCheck = 2
)

func overallScore(res *Phase2ValidationResult) float64 {
	score := res.DataMigration.CompletionScore
	if res.Integrity.Performed {
		score = (score + res.Integrity.Score) / 2
	}
	score -= CriticalIssuePenalty * float64(len(res.CriticalIssues))
	return validator.Clamp(score)
}

// decideStatus applies the rules in order; the first match wins.
func decideStatus(res *Phase2ValidationResult) Status {
	if len(res.CriticalIssues) > 0 || !res.DataMigration.Completed {
		return StatusFailed
	}
	if res.Integrity.Performed {
		switch {
		case res.Integrity.FailedChecks > MaxFailedCheck:
			return StatusFailed
		case res.Integrity.FailedChecks > 0:
			return StatusPassedWithWarnings
		}
	}
	switch {
	case res.OverallScore < FailScore:
		return StatusFailed
	case res.OverallScore < WarnScore || len(res.Warnings) > 0:
		return StatusPassedWithWarnings
	}
	return StatusPassed
}

func recommend(res *Phase2ValidationResult, opts Options) []ValidationRecommendation {
	var out []ValidationRecommendation
	add := func(p Priority, title, action string) {
		out = append(out, ValidationRecommendation{Priority: p, Title: title, Action: action})
	}

	dm := res.DataMigration
	if !dm.Completed {
		add(PriorityHigh, "Complete data migration",
			fmt.Sprintf("%d of %d records and %d tables failed; fix the errors in the migration report and rerun the migration.",
				dm.FailedRecords, dm.TotalRecords, dm.FailedTables))
	}

	iv := res.Integrity
	if iv.Performed {
		if !iv.RecordCounts {
			add(PriorityCritical, "Resolve missing records",
				"Compare source and target counts per table and re-import the missing rows.")
		}
		if !iv.Checksums {
			add(PriorityCritical, "Fix data corruption",
				"Checksums differ between source and target; re-import the affected tables.")
		}
		if !iv.ReferentialIntegrity {
			add(PriorityCritical, "Repair broken references",
				"Orphaned rows reference missing parents; import parent tables first or remove the orphans.")
		}
		if !iv.Constraints {
			add(PriorityHigh, "Fix constraint violations",
				"Remove duplicate keys and fill NULLs in NOT NULL columns.")
		}
		if !iv.DataTypes {
			add(PriorityMedium, "Review data type conversions",
				"Some columns hold values that do not match their declared types.")
		}
		if iv.SampleMatchPercentage < validator.SampleWarnThreshold {
			add(PriorityMedium, "Investigate sample mismatches",
				fmt.Sprintf("Only %.1f%% of sampled rows matched; inspect the field mismatches.", iv.SampleMatchPercentage))
		}
	} else if opts.SkipIntegrity {
		add(PriorityMedium, "Run integrity validation",
			"Integrity validation was skipped; run it before relying on the migrated data.")
	}

	if res.Performance.Performed && hasCategory(res.Warnings, CategoryPerformance) {
		add(PriorityLow, "Tune migration performance",
			"Increase batch sizes or run closer to the databases before the next migration.")
	}

	if res.Status == StatusPassed {
		add(PriorityLow, "Proceed", "All checks passed; continue with the next phase.")
	}
	return out
}

func hasCategory(ws []ValidationWarning, category string) bool {
	for _, w := range ws {
		if w.Category == category {
			return true
		}
	}
	return false
}

func summarize(res *Phase2ValidationResult) string {
	dm := res.DataMigration
	s := fmt.Sprintf("Checkpoint %s with score %.1f: %d/%d records migrated across %d tables",
		res.Status, res.OverallScore, dm.MigratedRecords, dm.TotalRecords, dm.TotalTables)
	if res.Integrity.Performed {
		s += fmt.Sprintf(", integrity score %.1f (%d failed checks)", res.Integrity.Score, res.Integrity.FailedChecks)
	}
	return s + fmt.Sprintf(", %d critical issues, %d warnings.", len(res.CriticalIssues), len(res.Warnings))
}
