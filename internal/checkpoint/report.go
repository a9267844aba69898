package checkpoint

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig"
)

var reportTemplate = template.Must(template.New("checkpoint").Funcs(sprig.TxtFuncMap()).Parse(`# Migration Checkpoint Report

- **Checkpoint:** {{ .CheckpointID }}
- **Status:** {{ .Status }}
- **Overall score:** {{ printf "%.1f" .OverallScore }}
- **Started:** {{ .StartedAt.Format "2006-01-02 15:04:05" }}
- **Completed:** {{ .CompletedAt.Format "2006-01-02 15:04:05" }}

{{ .Summary }}

## Data Migration

| Metric | Value |
|---|---|
| Migration ID | {{ default "n/a" .DataMigration.MigrationID }} |
| Status | {{ default "n/a" (toString .DataMigration.Status) }} |
| Completed | {{ .DataMigration.Completed }} |
| Tables | {{ .DataMigration.TotalTables }} ({{ .DataMigration.FailedTables }} failed) |
| Records | {{ .DataMigration.MigratedRecords }}/{{ .DataMigration.TotalRecords }} ({{ .DataMigration.FailedRecords }} failed) |
| Completion score | {{ printf "%.1f" .DataMigration.CompletionScore }} |

## Integrity
{{ if .Integrity.Performed }}
| Check | Result |
|---|---|
| Record counts | {{ template "mark" .Integrity.RecordCounts }} |
| Checksums | {{ template "mark" .Integrity.Checksums }} |
| Referential integrity | {{ template "mark" .Integrity.ReferentialIntegrity }} |
| Constraints | {{ template "mark" .Integrity.Constraints }} |
| Data types | {{ template "mark" .Integrity.DataTypes }} |
| Sample match | {{ printf "%.1f%%" .Integrity.SampleMatchPercentage }} |
| Score | {{ printf "%.1f" .Integrity.Score }} |
{{ else }}
Integrity validation was not performed.
{{ end }}
## Performance
{{ if .Performance.Performed }}
- Duration: {{ .Performance.Duration }}
- Throughput: {{ printf "%.1f" .Performance.RecordsPerSecond }} records/s
- Error rate (failed/total): {{ printf "%.4f" .Performance.ErrorRate }}
{{ else }}
Performance analysis was not performed.
{{ end }}
{{- if .CriticalIssues }}
## Critical Issues
{{ range .CriticalIssues }}
- **{{ .Category }}**{{ if .Table }} ` + "`{{ .Table }}`" + `{{ end }}: {{ .Message }}{{ if .Remediation }}
  - Remediation: {{ .Remediation }}{{ end }}
{{- end }}
{{ end }}
{{- if .Warnings }}
## Warnings
{{ range .Warnings }}
- [{{ .Severity }}] {{ .Category }}{{ if .Table }} ` + "`{{ .Table }}`" + `{{ end }}: {{ .Message }}
{{- end }}
{{ end }}
{{- if .Recommendations }}
## Recommendations
{{ range $i, $r := .Recommendations }}
{{ add1 $i }}. **{{ $r.Title }}** ({{ toString $r.Priority | lower }}): {{ $r.Action }}
{{- end }}
{{ end }}
{{- define "mark" }}{{ if . }}passed{{ else }}**failed**{{ end }}{{ end }}`))

// RenderReport returns the checkpoint result as a Markdown document.
func RenderReport(res *Phase2ValidationResult) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, res); err != nil {
		return "", err
	}
	return buf.String(), nil
}
