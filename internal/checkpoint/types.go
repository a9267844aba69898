package checkpoint

import (
	"time"

	"db-shift/internal/migrator"
	"db-shift/internal/validator"
)

type Status string

const (
	StatusPassed             Status = "PASSED"
	StatusPassedWithWarnings Status = "PASSED_WITH_WARNINGS"
	StatusFailed             Status = "FAILED"
	StatusInProgress         Status = "IN_PROGRESS"
)

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Issue categories.
const (
	CategoryMigration   = "DATA_MIGRATION"
	CategoryIntegrity   = "INTEGRITY"
	CategoryPerformance = "PERFORMANCE"
)

type DataMigrationValidation struct {
	MigrationID     string                   `json:"migrationId,omitempty"`
	Status          migrator.MigrationStatus `json:"status,omitempty"`
	Completed       bool                     `json:"completed"`
	TotalTables     int                      `json:"totalTables"`
	FailedTables    int                      `json:"failedTables"`
	TotalRecords    int                      `json:"totalRecords"`
	MigratedRecords int                      `json:"migratedRecords"`
	FailedRecords   int                      `json:"failedRecords"`
	CompletionScore float64                  `json:"completionScore"`
}

// IntegrityValidation summarises the five integrity sub-checks.
type IntegrityValidation struct {
	Performed             bool                        `json:"performed"`
	Score                 float64                     `json:"score"`
	RecordCounts          bool                        `json:"recordCounts"`
	Checksums             bool                        `json:"checksums"`
	ReferentialIntegrity  bool                        `json:"referentialIntegrity"`
	Constraints           bool                        `json:"constraints"`
	DataTypes             bool                        `json:"dataTypes"`
	SampleMatchPercentage float64                     `json:"sampleMatchPercentage"`
	FailedChecks          int                         `json:"failedChecks"`
	Details               *validator.ValidationResult `json:"details,omitempty"`
}

type PerformanceMetrics struct {
	Performed        bool          `json:"performed"`
	Duration         time.Duration `json:"duration"`
	RecordsPerSecond float64       `json:"recordsPerSecond"`
	ErrorRate        float64       `json:"errorRate"`
}

type CriticalIssue struct {
	Category    string `json:"category"`
	Table       string `json:"table,omitempty"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

type ValidationWarning struct {
	Category string   `json:"category"`
	Table    string   `json:"table,omitempty"`
	Message  string   `json:"message"`
	Severity Priority `json:"severity"`
}

type ValidationRecommendation struct {
	Priority Priority `json:"priority"`
	Title    string   `json:"title"`
	Action   string   `json:"action"`
}

// Phase2ValidationResult is the checkpoint decision. It is not modified after ValidatePhase returns.
type Phase2ValidationResult struct {
	CheckpointID    string                     `json:"checkpointId"`
	Status          Status                     `json:"status"`
	OverallScore    float64                    `json:"overallScore"`
	Summary         string                     `json:"summary"`
	DataMigration   DataMigrationValidation    `json:"dataMigrationValidation"`
	Integrity       IntegrityValidation        `json:"integrityValidation"`
	Performance     PerformanceMetrics         `json:"performanceMetrics"`
	CriticalIssues  []CriticalIssue            `json:"criticalIssues"`
	Warnings        []ValidationWarning        `json:"warnings"`
	Recommendations []ValidationRecommendation `json:"recommendations"`
	Report          string                     `json:"report,omitempty"`
	StartedAt       time.Time                  `json:"startedAt"`
	CompletedAt     time.Time                  `json:"completedAt"`
}
