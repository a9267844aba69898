package validator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"db-shift/internal/dialect"
	"db-shift/internal/record"
	"db-shift/internal/schema"
)

func (v *Validator) validateTable(ctx context.Context, src, tgt *schema.TableMetadata, opts Options) TableValidationResult {
	tr := TableValidationResult{Table: src.Name, IsValid: true}

	v.checkRecordCount(ctx, &tr, src, tgt)
	if opts.ChecksumValidation && tr.RecordCount.Target > 0 {
		v.checkChecksum(ctx, &tr, src, tgt)
	}
	v.checkSample(ctx, &tr, src, tgt, opts)
	if opts.ReferentialIntegrityCheck {
		v.checkReferences(ctx, &tr, tgt)
	}
	if opts.ConstraintValidation {
		v.checkConstraints(ctx, &tr, tgt)
	}
	if opts.DataTypeValidation {
		v.checkDataTypes(ctx, &tr, tgt)
	}
	return tr
}

func (v *Validator) checkFailed(tr *TableValidationResult, check string, err error) {
	tr.check(false)
	v.metrics.Check(check, false)
	tr.addError(ValidationError{Type: CheckFailed, Message: fmt.Sprintf("%s check failed: %v", check, err)})
}

func countRows(ctx context.Context, c schema.Querier, d dialect.Dialect, table string) (int64, error) {
	var n int64
	err := c.QueryRowContext(ctx, dialect.CountQuery(d, table)).Scan(&n)
	return n, err
}

func (v *Validator) checkRecordCount(ctx context.Context, tr *TableValidationResult, src, tgt *schema.TableMetadata) {
	var err error
	if tr.RecordCount.Source, err = countRows(ctx, v.source.DB, v.source.Dialect, src.Name); err != nil {
		v.checkFailed(tr, "record_count", err)
		return
	}
	if tr.RecordCount.Target, err = countRows(ctx, v.target.DB, v.target.Dialect, tgt.Name); err != nil {
		tr.check(false)
		v.metrics.Check("record_count", false)
		tr.addError(ValidationError{Type: MissingData, Critical: true, Message: fmt.Sprintf("target count failed: %v", err)})
		return
	}
	tr.RecordCount.Matches = tr.RecordCount.Source == tr.RecordCount.Target
	tr.check(tr.RecordCount.Matches)
	v.metrics.Check("record_count", tr.RecordCount.Matches)
	if !tr.RecordCount.Matches {
		tr.addError(ValidationError{
			Type:     MissingData,
			Critical: true,
			Count:    tr.RecordCount.Source - tr.RecordCount.Target,
			Message:  fmt.Sprintf("expected %d, got %d", tr.RecordCount.Source, tr.RecordCount.Target),
		})
	}
}

func orderColumns(t *schema.TableMetadata) []string {
	if pk := t.PrimaryKey(); len(pk) > 0 {
		return pk
	}
	if c := t.Column("id"); c != nil {
		return []string{c.Name}
	}
	return nil
}

func (v *Validator) checkChecksum(ctx context.Context, tr *TableValidationResult, src, tgt *schema.TableMetadata) {
	var err error
	tr.Checksum.Performed = true
	if tr.Checksum.Source, err = TableChecksum(ctx, v.source.DB, v.source.Dialect, src.Name, orderColumns(src)); err != nil {
		v.checkFailed(tr, "checksum", err)
		return
	}
	if tr.Checksum.Target, err = TableChecksum(ctx, v.target.DB, v.target.Dialect, tgt.Name, orderColumns(tgt)); err != nil {
		v.checkFailed(tr, "checksum", err)
		return
	}
	tr.Checksum.Matches = tr.Checksum.Source == tr.Checksum.Target
	tr.check(tr.Checksum.Matches)
	v.metrics.Check("checksum", tr.Checksum.Matches)
	if !tr.Checksum.Matches {
		tr.addError(ValidationError{Type: CorruptedData, Critical: true, Message: "source and target checksums differ"})
	}
}

func (v *Validator) checkSample(ctx context.Context, tr *TableValidationResult, src, tgt *schema.TableMetadata, opts Options) {
	if src.Column("id") == nil || tgt.Column("id") == nil {
		return
	}
	d := v.source.Dialect
	q := d.GetLimitRowQuery(dialect.OrderedSelectQuery(d, src.Name, orderColumns(src)), opts.SampleSize)
	rows, err := v.source.DB.QueryContext(ctx, q)
	if err != nil {
		v.checkFailed(tr, "sample", err)
		return
	}
	sample, err := dialect.ScanMaps(rows)
	rows.Close()
	if err != nil {
		v.checkFailed(tr, "sample", err)
		return
	}
	if len(sample) == 0 {
		return
	}

	byID := dialect.SelectByKeyQuery(v.target.Dialect, tgt.Name, tgt.Column("id").Name)
	for _, want := range sample {
		id := record.ID(want)
		tr.Sample.Sampled++
		got, err := fetchOne(ctx, v.target.DB, byID, id)
		if err != nil {
			v.checkFailed(tr, "sample", err)
			return
		}
		if got == nil {
			tr.Sample.MissingInTarget++
			continue
		}
		diff := record.Diff(want, got)
		if len(diff) == 0 {
			tr.Sample.Matched++
			continue
		}
		if opts.DetailedReporting {
			for _, m := range diff {
				sev := SeverityHigh
				if m.Timestamp {
					sev = SeverityLow
				}
				tr.Sample.Mismatches = append(tr.Sample.Mismatches, FieldMismatch{
					ID: id, Field: m.Field, Source: m.Source, Target: m.Target, Type: ValueMismatch, Severity: sev,
				})
			}
		}
	}

	tr.Sample.MatchPercentage = percentage(tr.Sample.Matched, tr.Sample.Sampled)
	passed := tr.Sample.MatchPercentage >= SampleWarnThreshold
	tr.check(passed)
	v.metrics.Check("sample", passed)
	if !passed {
		sev := SeverityMedium
		if tr.Sample.MatchPercentage < SampleHighThreshold {
			sev = SeverityHigh
		}
		tr.addWarning(ValidationWarning{
			Type:     SampleMismatch,
			Severity: sev,
			Message:  fmt.Sprintf("only %.1f%% of %d sampled rows match", tr.Sample.MatchPercentage, tr.Sample.Sampled),
		})
	}
}

// fetchOne returns nil without error when no row matches.
func fetchOne(ctx context.Context, c dialect.Conn, query string, key any) (record.Row, error) {
	rows, err := c.QueryContext(ctx, query, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found, err := dialect.ScanMaps(rows)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

type foreignKey struct {
	column, parent, parentColumn string
}

// foreignKeys lists single-column references, from constraints and column references alike.
func foreignKeys(t *schema.TableMetadata) []foreignKey {
	seen := make(map[string]bool)
	var out []foreignKey
	add := func(fk foreignKey) {
		key := strings.ToLower(fk.column + "->" + fk.parent)
		if seen[key] || fk.parent == "" {
			return
		}
		seen[key] = true
		out = append(out, fk)
	}
	for _, c := range t.Constraints {
		if c.Type != schema.ForeignKey || len(c.Columns) != 1 {
			continue
		}
		parentCol := "id"
		if len(c.ReferencedColumns) == 1 {
			parentCol = c.ReferencedColumns[0]
		}
		add(foreignKey{column: c.Columns[0], parent: c.ReferencedTable, parentColumn: parentCol})
	}
	for _, c := range t.Columns {
		if c.References != nil {
			add(foreignKey{column: c.Name, parent: c.References.Table, parentColumn: c.References.Column})
		}
	}
	return out
}

func (v *Validator) checkReferences(ctx context.Context, tr *TableValidationResult, t *schema.TableMetadata) {
	fks := foreignKeys(t)
	if len(fks) == 0 {
		return
	}
	d := v.target.Dialect
	tr.References.Performed = true
	tr.References.Passed = true
	for _, fk := range fks {
		var orphans int64
		q := dialect.OrphanCountQuery(d, t.Name, fk.column, fk.parent, fk.parentColumn)
		if err := v.target.DB.QueryRowContext(ctx, q).Scan(&orphans); err != nil {
			tr.References.Passed = false
			v.checkFailed(tr, "references", err)
			return
		}
		tr.References.Checked++
		if orphans > 0 {
			tr.References.Orphans += orphans
			tr.References.Passed = false
			tr.addError(ValidationError{
				Type:     ReferenceError,
				Critical: true,
				Column:   fk.column,
				Count:    orphans,
				Message:  fmt.Sprintf("%d rows reference missing %s.%s", orphans, fk.parent, fk.parentColumn),
			})
		}
	}
	tr.check(tr.References.Passed)
	v.metrics.Check("references", tr.References.Passed)
}

func (v *Validator) checkConstraints(ctx context.Context, tr *TableValidationResult, t *schema.TableMetadata) {
	d := v.target.Dialect
	db := v.target.DB
	tr.Constraints.Performed = true

	count := func(q string) (int64, error) {
		var n int64
		err := db.QueryRowContext(ctx, q).Scan(&n)
		return n, err
	}

	keys := make([]*schema.ConstraintMetadata, 0, len(t.Constraints))
	for _, c := range t.Constraints {
		if (c.Type == schema.PrimaryKey || c.Type == schema.Unique) && len(c.Columns) > 0 {
			keys = append(keys, c)
		}
	}
	for _, c := range keys {
		isPK := c.Type == schema.PrimaryKey
		dups, err := count(dialect.DuplicateGroupsQuery(d, t.Name, c.Columns, !isPK))
		if err != nil {
			v.checkFailed(tr, "constraints", err)
			return
		}
		tr.Constraints.Checked++
		if dups > 0 {
			tr.Constraints.Violations++
			tr.addError(ValidationError{
				Type:     ConstraintViolation,
				Critical: isPK,
				Column:   strings.Join(c.Columns, ","),
				Count:    dups,
				Message:  fmt.Sprintf("%d duplicate %s groups on %s", dups, strings.ToLower(c.Type), c.Name),
			})
		}
	}
	for _, col := range t.Columns {
		if col.Nullable {
			continue
		}
		nulls, err := count(dialect.NullCountQuery(d, t.Name, col.Name))
		if err != nil {
			v.checkFailed(tr, "constraints", err)
			return
		}
		tr.Constraints.Checked++
		if nulls > 0 {
			tr.Constraints.Violations++
			tr.addError(ValidationError{
				Type:     ConstraintViolation,
				Critical: true,
				Column:   col.Name,
				Count:    nulls,
				Message:  fmt.Sprintf("%d NULL values in NOT NULL column %s", nulls, col.Name),
			})
		}
	}
	tr.Constraints.Passed = tr.Constraints.Violations == 0
	tr.check(tr.Constraints.Passed)
	v.metrics.Check("constraints", tr.Constraints.Passed)
}

// Type families compared by the data-type check.
const (
	familyNumber = "number"
	familyString = "string"
	familyBool   = "bool"
	familyTime   = "time"
	familyOther  = "other"
)

var typeFamilies = map[string]string{
	"bool": familyBool, "boolean": familyBool,

	"smallint": familyNumber, "int": familyNumber, "integer": familyNumber, "bigint": familyNumber,
	"tinyint": familyNumber, "mediumint": familyNumber, "int2": familyNumber, "int4": familyNumber,
	"int8": familyNumber, "serial": familyNumber, "smallserial": familyNumber, "bigserial": familyNumber,
	"serial4": familyNumber, "serial8": familyNumber, "numeric": familyNumber, "decimal": familyNumber,
	"dec": familyNumber, "real": familyNumber, "double": familyNumber, "float": familyNumber,
	"float4": familyNumber, "float8": familyNumber, "number": familyNumber, "money": familyNumber,
	"smallmoney": familyNumber, "binary_float": familyNumber, "binary_double": familyNumber,

	"timestamp": familyTime, "timestamptz": familyTime, "date": familyTime, "datetime": familyTime,
	"datetime2": familyTime, "smalldatetime": familyTime, "datetimeoffset": familyTime,
	"time": familyTime, "timetz": familyTime,

	"char": familyString, "character": familyString, "varchar": familyString, "varchar2": familyString,
	"nchar": familyString, "nvarchar": familyString, "nvarchar2": familyString, "text": familyString,
	"tinytext": familyString, "mediumtext": familyString, "longtext": familyString, "ntext": familyString,
	"citext": familyString, "uuid": familyString, "uniqueidentifier": familyString, "json": familyString,
	"jsonb": familyString, "clob": familyString, "nclob": familyString,
}

// declaredFamily maps a column type onto a family by its base type name,
// "" when unknown. Array types are never classified.
func declaredFamily(sqlType string) string {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if strings.HasPrefix(t, "_") || strings.HasSuffix(t, "]") || strings.HasPrefix(t, "array") {
		return ""
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	words := strings.Fields(t)
	if len(words) == 0 {
		return ""
	}
	if words[0] == "bit" {
		if len(words) == 1 {
			return familyBool
		}
		return ""
	}
	return typeFamilies[words[0]]
}

func observedFamily(v any) string {
	switch v.(type) {
	case bool:
		return familyBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return familyNumber
	case time.Time:
		return familyTime
	case string, []byte:
		return familyString
	}
	return familyOther
}

// compatible reports whether an observed value fits the declared family.
// Drivers return decimals and timestamps as text and booleans as integers.
func compatible(declared string, v any) bool {
	observed := observedFamily(v)
	if declared == "" || declared == observed {
		return true
	}
	switch declared {
	case familyTime:
		if s, ok := asString(v); ok {
			_, parsed := record.ParseTime(s)
			return parsed
		}
	case familyBool:
		return observed == familyNumber
	case familyNumber:
		if s, ok := asString(v); ok {
			_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return err == nil
		}
	}
	return false
}

func asString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	}
	return "", false
}

func (v *Validator) checkDataTypes(ctx context.Context, tr *TableValidationResult, t *schema.TableMetadata) {
	d := v.target.Dialect
	tr.DataTypes.Performed = true
	for _, col := range t.Columns {
		rows, err := v.target.DB.QueryContext(ctx, dialect.ColumnSampleQuery(d, t.Name, col.Name, TypeSampleSize))
		if err != nil {
			v.checkFailed(tr, "data_types", err)
			return
		}
		values, err := dialect.ScanMaps(rows)
		rows.Close()
		if err != nil {
			v.checkFailed(tr, "data_types", err)
			return
		}
		tr.DataTypes.ColumnsChecked++

		declared := declaredFamily(col.Type)
		families := make(map[string]bool)
		bad := false
		for _, row := range values {
			for _, val := range row {
				families[observedFamily(val)] = true
				if !compatible(declared, val) {
					bad = true
				}
			}
		}
		if declared == "" && len(families) > 1 {
			bad = true
		}
		if !bad {
			continue
		}
		observed := make([]string, 0, len(families))
		for f := range families {
			observed = append(observed, f)
		}
		sort.Strings(observed)
		tr.DataTypes.Issues = append(tr.DataTypes.Issues, ColumnTypeIssue{Column: col.Name, Declared: col.Type, Observed: observed})
		tr.addError(ValidationError{
			Type:    TypeMismatch,
			Column:  col.Name,
			Message: fmt.Sprintf("column %s declared %s holds %s values", col.Name, col.Type, strings.Join(observed, "/")),
		})
	}
	tr.DataTypes.Passed = len(tr.DataTypes.Issues) == 0
	tr.check(tr.DataTypes.Passed)
	v.metrics.Check("data_types", tr.DataTypes.Passed)
}
