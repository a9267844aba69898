package validator

import "time"

type Options struct {
	// Tables restricts validation; empty means every non-internal table.
	Tables                    []string `mapstructure:"tables"`
	SampleSize                int      `mapstructure:"sample_size"`
	ChecksumValidation        bool     `mapstructure:"checksum_validation"`
	ReferentialIntegrityCheck bool     `mapstructure:"referential_integrity_check"`
	ConstraintValidation      bool     `mapstructure:"constraint_validation"`
	DataTypeValidation        bool     `mapstructure:"data_type_validation"`
	DetailedReporting         bool     `mapstructure:"detailed_reporting"`
}

const (
	DefaultSampleSize = 100
	// TypeSampleSize is how many non-null values per column the data-type check reads.
	TypeSampleSize = 10
	// SampleWarnThreshold and SampleHighThreshold are match percentages.
	SampleWarnThreshold = 95.0
	SampleHighThreshold = 90.0
)

// DefaultOptions enables every check.
func DefaultOptions() Options {
	return Options{
		SampleSize:                DefaultSampleSize,
		ChecksumValidation:        true,
		ReferentialIntegrityCheck: true,
		ConstraintValidation:      true,
		DataTypeValidation:        true,
		DetailedReporting:         true,
	}
}

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type ErrorType string

const (
	MissingData         ErrorType = "MISSING_DATA"
	CorruptedData       ErrorType = "CORRUPTED_DATA"
	ReferenceError      ErrorType = "REFERENCE_ERROR"
	ConstraintViolation ErrorType = "CONSTRAINT_VIOLATION"
	TypeMismatch        ErrorType = "TYPE_MISMATCH"
	ValueMismatch       ErrorType = "VALUE_MISMATCH"
	SampleMismatch      ErrorType = "SAMPLE_MISMATCH"
	CheckFailed         ErrorType = "CHECK_FAILED"
)

type ValidationError struct {
	Table    string    `json:"table"`
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	Critical bool      `json:"critical"`
	Column   string    `json:"column,omitempty"`
	Count    int64     `json:"count,omitempty"`
}

type ValidationWarning struct {
	Table    string    `json:"table"`
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
}

type RecordCountCheck struct {
	Source  int64 `json:"source"`
	Target  int64 `json:"target"`
	Matches bool  `json:"matches"`
}

type ChecksumCheck struct {
	Performed bool   `json:"performed"`
	Source    string `json:"source,omitempty"`
	Target    string `json:"target,omitempty"`
	Matches   bool   `json:"matches"`
}

// FieldMismatch is one differing field of a sampled row.
type FieldMismatch struct {
	ID       string    `json:"id"`
	Field    string    `json:"field"`
	Source   any       `json:"source"`
	Target   any       `json:"target"`
	Type     ErrorType `json:"type"`
	Severity Severity  `json:"severity"`
}

type SampleCheck struct {
	Sampled         int             `json:"sampled"`
	Matched         int             `json:"matched"`
	MissingInTarget int             `json:"missingInTarget"`
	MatchPercentage float64         `json:"matchPercentage"`
	Mismatches      []FieldMismatch `json:"mismatches,omitempty"`
}

type ReferenceCheck struct {
	Performed bool  `json:"performed"`
	Checked   int   `json:"checked"`
	Orphans   int64 `json:"orphans"`
	Passed    bool  `json:"passed"`
}

type ConstraintCheck struct {
	Performed  bool `json:"performed"`
	Checked    int  `json:"checked"`
	Violations int  `json:"violations"`
	Passed     bool `json:"passed"`
}

type ColumnTypeIssue struct {
	Column   string   `json:"column"`
	Declared string   `json:"declared"`
	Observed []string `json:"observed"`
}

type DataTypeCheck struct {
	Performed      bool              `json:"performed"`
	ColumnsChecked int               `json:"columnsChecked"`
	Issues         []ColumnTypeIssue `json:"issues,omitempty"`
	Passed         bool              `json:"passed"`
}

type TableValidationResult struct {
	Table       string              `json:"table"`
	RecordCount RecordCountCheck    `json:"recordCount"`
	Checksum    ChecksumCheck       `json:"checksum"`
	Sample      SampleCheck         `json:"sample"`
	References  ReferenceCheck      `json:"references"`
	Constraints ConstraintCheck     `json:"constraints"`
	DataTypes   DataTypeCheck       `json:"dataTypes"`
	Errors      []ValidationError   `json:"errors,omitempty"`
	Warnings    []ValidationWarning `json:"warnings,omitempty"`
	// IsValid is false whenever Errors holds a critical error.
	IsValid         bool `json:"isValid"`
	ChecksPerformed int  `json:"checksPerformed"`
	ChecksPassed    int  `json:"checksPassed"`
}

func (t *TableValidationResult) addError(e ValidationError) {
	e.Table = t.Table
	t.Errors = append(t.Errors, e)
	if e.Critical {
		t.IsValid = false
	}
}

func (t *TableValidationResult) addWarning(w ValidationWarning) {
	w.Table = t.Table
	t.Warnings = append(t.Warnings, w)
}

func (t *TableValidationResult) check(passed bool) {
	t.ChecksPerformed++
	if passed {
		t.ChecksPassed++
	}
}

// Metrics describe one validation run. They live on the result, never on the Validator.
type Metrics struct {
	TablesValidated int           `json:"tablesValidated"`
	TablesValid     int           `json:"tablesValid"`
	ChecksPerformed int           `json:"checksPerformed"`
	ChecksPassed    int           `json:"checksPassed"`
	RowsSampled     int           `json:"rowsSampled"`
	Duration        time.Duration `json:"duration"`
}

type ValidationResult struct {
	Tables    []TableValidationResult `json:"tables"`
	Errors    []ValidationError       `json:"errors"`
	Warnings  []ValidationWarning     `json:"warnings"`
	Score     float64                 `json:"score"`
	IsValid   bool                    `json:"isValid"`
	Metrics   Metrics                 `json:"metrics"`
	StartTime time.Time               `json:"startTime"`
	EndTime   time.Time               `json:"endTime"`
}

// CriticalErrors returns the critical errors across every table.
func (r *ValidationResult) CriticalErrors() []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Critical {
			out = append(out, e)
		}
	}
	return out
}

// Summary condenses the per-table checks into one pass/fail per check kind.
type Summary struct {
	RecordCountsMatch     bool    `json:"recordCountsMatch"`
	ChecksumsMatch        bool    `json:"checksumsMatch"`
	ReferencesValid       bool    `json:"referencesValid"`
	ConstraintsValid      bool    `json:"constraintsValid"`
	DataTypesValid        bool    `json:"dataTypesValid"`
	SampleMatchPercentage float64 `json:"sampleMatchPercentage"`
}

func (r *ValidationResult) Summary() Summary {
	s := Summary{
		RecordCountsMatch: true,
		ChecksumsMatch:    true,
		ReferencesValid:   true,
		ConstraintsValid:  true,
		DataTypesValid:    true,
	}
	sampled, matched := 0, 0
	for _, t := range r.Tables {
		s.RecordCountsMatch = s.RecordCountsMatch && t.RecordCount.Matches
		if t.Checksum.Performed {
			s.ChecksumsMatch = s.ChecksumsMatch && t.Checksum.Matches
		}
		if t.References.Performed {
			s.ReferencesValid = s.ReferencesValid && t.References.Passed
		}
		if t.Constraints.Performed {
			s.ConstraintsValid = s.ConstraintsValid && t.Constraints.Passed
		}
		if t.DataTypes.Performed {
			s.DataTypesValid = s.DataTypesValid && t.DataTypes.Passed
		}
		sampled += t.Sample.Sampled
		matched += t.Sample.Matched
	}
	s.SampleMatchPercentage = percentage(matched, sampled)
	return s
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 100
	}
	return float64(part) / float64(whole) * 100
}
