package migrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"db-shift/internal/audit"
	"db-shift/internal/dialect"
	"db-shift/internal/record"
	"db-shift/internal/schema"

	"github.com/sirupsen/logrus"
)

var errTableNotInTarget = errors.New("table does not exist in target")

// ImportAll writes data into the target in dependency order, one table at a
// time. Each batch is a single multi-row statement inside its own
// transaction; a failed batch is retried row by row outside a transaction.
//
// With ContinueOnError false the first table with failed rows stops the
// import and a *TableError is returned along with the results so far.
func (m *Migrator) ImportAll(ctx context.Context, data MigrationData, opts ImportOptions) ([]TableMigrationResult, error) {
	opts = opts.withDefaults()
	targetTables, err := m.Tables(ctx, m.target)
	if err != nil {
		return nil, fmt.Errorf("failed to read target tables: %w", err)
	}
	plan, missing := importPlan(targetTables, data, m.excludePrefixes)

	progress := ProgressFrom(ctx)
	progress.begin(PhaseImporting, len(plan)+len(missing), data.Count())

	conn, err := m.target.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire target connection: %w", err)
	}
	defer conn.Close()

	d := m.target.Dialect
	if !opts.DryRun {
		if err := d.BeforePump(ctx, conn); err != nil {
			m.log.WithError(err).Warn("BeforePump hook failed")
		}
		defer func() {
			if err := d.AfterPump(ctx, conn); err != nil {
				m.log.WithError(err).Warn("AfterPump hook failed")
			}
		}()
	}

	var results []TableMigrationResult
	finish := func(res TableMigrationResult, cause error) error {
		results = append(results, res)
		progress.finishTable()
		if res.OK() {
			return nil
		}
		fields := map[string]any{"table": res.Table, "failed": res.Failed, "total": res.Total}
		audit.Failure(m.audit, audit.LevelError, "import_table", cause, fields,
			fmt.Sprintf("Check the rejected rows of %s against the target constraints.", res.Table))
		if opts.ContinueOnError {
			return nil
		}
		return &TableError{Table: res.Table, Result: res, Err: cause}
	}

	for _, step := range plan {
		res, cause := m.importTable(ctx, conn, step.table, step.rows, opts)
		if err := finish(res, cause); err != nil {
			return results, err
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	for _, name := range missing {
		now := time.Now().UTC()
		res := TableMigrationResult{
			Table:     name,
			Total:     len(data[name]),
			Failed:    len(data[name]),
			Errors:    []string{errTableNotInTarget.Error()},
			StartTime: now,
			EndTime:   now,
		}
		progress.addRecords(0, res.Failed)
		m.log.WithField("table", name).Error(errTableNotInTarget.Error())
		if err := finish(res, fmt.Errorf("%s: %w", name, errTableNotInTarget)); err != nil {
			return results, err
		}
	}
	return results, nil
}

type importStep struct {
	table *schema.TableMetadata
	rows  []record.Row
}

// importPlan pairs exported tables with their target metadata in target
// dependency order. Exported tables the target lacks are returned by name.
func importPlan(target []*schema.TableMetadata, data MigrationData, exclude []string) ([]importStep, []string) {
	byKey := make(map[string]string, len(data))
	for name := range data {
		if !IsInternalTable(name, exclude) {
			byKey[strings.ToLower(name)] = name
		}
	}
	var plan []importStep
	for _, t := range target {
		name, ok := byKey[strings.ToLower(t.Name)]
		if !ok {
			continue
		}
		delete(byKey, strings.ToLower(t.Name))
		plan = append(plan, importStep{table: t, rows: data[name]})
	}
	missing := make([]string, 0, len(byKey))
	for _, name := range byKey {
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return plan, missing
}

func conflictPolicy(opts ImportOptions) dialect.ConflictPolicy {
	if opts.PreserveIDs {
		return dialect.ConflictSkip
	}
	return dialect.ConflictUpdateTimestamp
}

func (m *Migrator) importTable(ctx context.Context, conn *sql.Conn, t *schema.TableMetadata, rows []record.Row, opts ImportOptions) (TableMigrationResult, error) {
	res := TableMigrationResult{Table: t.Name, Total: len(rows), StartTime: time.Now().UTC()}
	log := m.log.WithField("table", t.Name)
	progress := ProgressFrom(ctx)
	progress.startTable(t.Name, len(rows))

	var firstErr error
	for start := 0; start < len(rows); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			rest := len(rows) - start
			res.Failed += rest
			res.Errors = append(res.Errors, fmt.Sprintf("cancelled with %d rows left: %v", rest, err))
			progress.addRecords(0, rest)
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		end := start + opts.BatchSize
		if end > len(rows) {
			end = len(rows)
		}

		began := time.Now()
		ok, errs := m.writeBatch(ctx, conn, t, rows[start:end], opts)
		failed := end - start - ok
		res.Migrated += ok
		res.Failed += failed
		for _, err := range errs {
			res.Errors = append(res.Errors, err.Error())
		}
		if firstErr == nil && len(errs) > 0 {
			firstErr = errs[0]
		}
		progress.addRecords(ok, failed)
		m.metrics.Batch(t.Name, ok, failed, time.Since(began))
	}

	res.EndTime = time.Now().UTC()
	entry := log.WithFields(logrus.Fields{"migrated": res.Migrated, "failed": res.Failed, "total": res.Total})
	if res.Failed > 0 {
		entry.Error("Table imported with failures")
	} else {
		entry.Info("Imported table")
	}
	return res, firstErr
}

// writeBatch returns how many rows of batch were written and the errors of those that were not.
func (m *Migrator) writeBatch(ctx context.Context, conn *sql.Conn, t *schema.TableMetadata, batch []record.Row, opts ImportOptions) (int, []error) {
	d := m.target.Dialect
	cols := batchColumns(t, batch)
	if len(cols) == 0 {
		return 0, []error{fmt.Errorf("%s: no importable columns", t.Name)}
	}
	key := keyColumn(t)
	policy := conflictPolicy(opts)

	query := d.UpsertQuery(t.Name, cols, len(batch), key, policy)
	args := bindArgs(cols, batch)
	if opts.DryRun {
		m.log.WithFields(logrus.Fields{"table": t.Name, "rows": len(batch)}).Debug(query)
		return len(batch), nil
	}

	err := execBatch(ctx, conn, d, t, query, args)
	if err == nil {
		return len(batch), nil
	}
	if len(batch) == 1 {
		return 0, []error{fmt.Errorf("row %s: %w", record.ID(batch[0]), err)}
	}

	m.log.WithError(err).WithFields(logrus.Fields{"table": t.Name, "rows": len(batch)}).Warn("Batch insert failed, retrying row by row")
	single := d.UpsertQuery(t.Name, cols, 1, key, policy)
	ok := 0
	var errs []error
	for _, row := range batch {
		if err := execRow(ctx, conn, d, t, single, bindArgs(cols, []record.Row{row})); err != nil {
			errs = append(errs, fmt.Errorf("row %s: %w", record.ID(row), err))
			continue
		}
		ok++
	}
	return ok, errs
}

func execBatch(ctx context.Context, conn *sql.Conn, d dialect.Dialect, t *schema.TableMetadata, query string, args []any) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = d.BeforeTable(ctx, tx, t.Name, t.HasIdentity()); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	if err = d.AfterTable(ctx, tx, t.Name, t.HasIdentity()); err != nil {
		return err
	}
	return tx.Commit()
}

// execRow writes a single row on the pinned connection without a transaction.
func execRow(ctx context.Context, conn *sql.Conn, d dialect.Dialect, t *schema.TableMetadata, query string, args []any) error {
	if err := d.BeforeTable(ctx, conn, t.Name, t.HasIdentity()); err != nil {
		return err
	}
	_, err := conn.ExecContext(ctx, query, args...)
	if afterErr := d.AfterTable(ctx, conn, t.Name, t.HasIdentity()); err == nil {
		err = afterErr
	}
	return err
}

// batchColumns lists the target columns present in at least one row of the batch,
// in target column order.
func batchColumns(t *schema.TableMetadata, batch []record.Row) []string {
	present := make(map[string]bool)
	for _, row := range batch {
		for k := range row {
			present[strings.ToLower(k)] = true
		}
	}
	var cols []string
	for _, c := range t.Columns {
		if present[strings.ToLower(c.Name)] {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

func keyColumn(t *schema.TableMetadata) string {
	if c := t.Column("id"); c != nil {
		return c.Name
	}
	if pk := t.PrimaryKey(); len(pk) > 0 {
		return pk[0]
	}
	return "id"
}

func bindArgs(cols []string, batch []record.Row) []any {
	args := make([]any, 0, len(cols)*len(batch))
	for _, row := range batch {
		for _, c := range cols {
			args = append(args, bindValue(lookup(row, c)))
		}
	}
	return args
}

func lookup(row record.Row, col string) any {
	if v, ok := row[col]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, col) {
			return v
		}
	}
	return nil
}

// bindValue coerces an exported value into something every driver can bind.
func bindValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int64, float64, []byte:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case map[string]any, []any:
		out, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(out)
	}
	return v
}
