package migrator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"db-shift/internal/dialect"
	"db-shift/internal/record"
	"db-shift/internal/schema"

	"github.com/sirupsen/logrus"
)

// ExportAll reads every selected source table page by page.
func (m *Migrator) ExportAll(ctx context.Context, opts ExportOptions) (MigrationData, error) {
	opts = opts.withDefaults()
	tables, err := m.Tables(ctx, m.source)
	if err != nil {
		return nil, fmt.Errorf("failed to read source tables: %w", err)
	}
	tables = selectTables(tables, opts.Tables)

	progress := ProgressFrom(ctx)
	progress.begin(PhaseExporting, len(tables), 0)

	data := make(MigrationData, len(tables))
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress.startTable(t.Name, 0)
		rows, err := m.exportTable(ctx, t, opts)
		if err != nil {
			return nil, err
		}
		data[t.Name] = rows
		progress.finishTable()
		m.log.WithFields(logrus.Fields{"table": t.Name, "rows": len(rows)}).Info("Exported table")
	}
	return data, nil
}

func selectTables(tables []*schema.TableMetadata, names []string) []*schema.TableMetadata {
	if len(names) == 0 {
		return tables
	}
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

// exportOrder sorts by the creation timestamp when present, then by the
// primary key so rows sharing a timestamp page deterministically.
func exportOrder(t *schema.TableMetadata) []string {
	var order []string
	if c := t.Column("created_at"); c != nil {
		order = append(order, c.Name)
	}
	keys := t.PrimaryKey()
	if len(keys) == 0 {
		if c := t.Column("id"); c != nil {
			keys = []string{c.Name}
		}
	}
	for _, k := range keys {
		if !containsFold(order, k) {
			order = append(order, k)
		}
	}
	if len(order) == 0 && len(t.Columns) > 0 {
		order = append(order, t.Columns[0].Name)
	}
	if len(order) == 0 {
		order = []string{"id"}
	}
	return order
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (m *Migrator) exportTable(ctx context.Context, t *schema.TableMetadata, opts ExportOptions) ([]record.Row, error) {
	d := m.source.Dialect
	orderBy := exportOrder(t)
	progress := ProgressFrom(ctx)

	var out []record.Row
	for offset := 0; ; offset += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := queryPage(ctx, m.source.DB, d, t.Name, orderBy, opts.BatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s at offset %d: %w", t.Name, offset, err)
		}
		for _, raw := range page {
			row := exportRow(raw, opts.PreserveTimestamps)
			if record.ID(row) == "" {
				return nil, fmt.Errorf("%s row %d: %w", t.Name, len(out)+1, ErrMissingID)
			}
			out = append(out, row)
		}
		progress.addTotal(len(page))
		progress.addRecords(len(page), 0)
		if len(page) < opts.BatchSize {
			return out, nil
		}
	}
}

func queryPage(ctx context.Context, c dialect.Conn, d dialect.Dialect, table string, orderBy []string, limit, offset int) ([]record.Row, error) {
	rows, err := c.QueryContext(ctx, d.PageQuery(table, orderBy, limit, offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return dialect.ScanMaps(rows)
}

// exportRow decodes textual driver byte slices and, when preserve is set,
// renders timestamp-shaped fields as RFC 3339 UTC strings. Binary values stay
// []byte and UUID strings are untouched.
func exportRow(raw record.Row, preserve bool) record.Row {
	row := make(record.Row, len(raw))
	for k, v := range raw {
		if b, ok := v.([]byte); ok && utf8.Valid(b) {
			v = string(b)
		}
		if preserve {
			v = exportTimestamp(k, v)
		}
		row[k] = v
	}
	return row
}

func exportTimestamp(field string, v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case string:
		if schema.IsUUID(val) || !schema.IsTimestampField(field) {
			return val
		}
		if t, ok := record.ParseTime(val); ok {
			return t.UTC().Format(time.RFC3339Nano)
		}
	}
	return v
}
