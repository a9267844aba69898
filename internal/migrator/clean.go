package migrator

import (
	"context"
	"fmt"

	"db-shift/internal/audit"
	"db-shift/internal/dialect"
)

// Clean empties the named target tables (every non-internal table when
// names is empty) in reverse dependency order. Failures on single tables are
// logged and skipped; the number of tables emptied is returned.
func (m *Migrator) Clean(ctx context.Context, names []string) (int, error) {
	tables, err := m.Tables(ctx, m.target)
	if err != nil {
		return 0, fmt.Errorf("failed to read target tables: %w", err)
	}
	tables = selectTables(tables, names)

	conn, err := m.target.DB.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire target connection: %w", err)
	}
	defer conn.Close()

	d := m.target.Dialect
	m.log.Info("Disabling foreign key checks")
	if err := d.BeforePump(ctx, conn); err != nil {
		m.log.WithError(err).Warn("BeforePump hook failed, continuing")
	}

	cleaned := 0
	total := len(tables)
	for i := len(tables) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return cleaned, err
		}
		name := tables[i].Name
		if _, err := conn.ExecContext(ctx, d.TruncateQuery(name)); err != nil {
			m.log.WithError(err).WithField("table", name).Warn("Failed to clean table, continuing")
			continue
		}
		if r, ok := d.(dialect.IdentityResetter); ok && tables[i].HasIdentity() {
			if _, err := conn.ExecContext(ctx, r.ResetIdentityQuery(name)); err != nil {
				m.log.WithError(err).WithField("table", name).Warn("Failed to reset identity, continuing")
			}
		}
		cleaned++
		if cleaned%5 == 0 || cleaned == total {
			m.log.Infof("Cleaned %d/%d tables", cleaned, total)
		}
	}

	m.log.Info("Enabling foreign key checks")
	if err := d.AfterPump(ctx, conn); err != nil {
		m.log.WithError(err).Warn("AfterPump hook failed")
	}
	audit.Phase(m.audit, "clean", "Target tables emptied", map[string]any{"tables": cleaned})
	return cleaned, nil
}
