package dialect

import (
	"context"
	"fmt"
	"strings"
)

// SqliteDialect targets modernc.org/sqlite. Catalog queries go through the
// pragma table-valued functions; the schema argument is only consumed.
type SqliteDialect struct{}

func (d *SqliteDialect) Name() string { return "sqlite" }

func (d *SqliteDialect) GetTablesQuery(schema string) string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND ? IS NOT NULL ORDER BY name`
}

func (d *SqliteDialect) GetColumnsQuery(schema string) string {
	return `SELECT
    m.name,
    p.name,
    p.type,
    p.type,
    NULL,
    CASE WHEN p."notnull" = 1 OR p.pk > 0 THEN 'NO' ELSE 'YES' END,
    CASE WHEN p.pk > 0 THEN 'PRI' ELSE '' END,
    p.dflt_value,
    NULL,
    NULL
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IS NOT NULL
ORDER BY m.name, p.cid`
}

func (d *SqliteDialect) GetPrimaryKeysQuery(schema string) string {
	return `SELECT m.name, m.name || '_pkey', p.name
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND p.pk > 0 AND ? IS NOT NULL
ORDER BY m.name, p.pk`
}

func (d *SqliteDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT m.name, m.name || '_' || f."from" || '_fkey', f."from", f."table", COALESCE(f."to", 'id'), f.on_delete, f.on_update
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) f
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IS NOT NULL
ORDER BY m.name, f.id, f.seq`
}

func (d *SqliteDialect) GetUniqueKeysQuery(schema string) string {
	return `SELECT m.name, il.name, ii.name
FROM sqlite_master m
JOIN pragma_index_list(m.name) il
JOIN pragma_index_info(il.name) ii
WHERE m.type = 'table' AND il."unique" = 1 AND il.origin = 'u' AND ? IS NOT NULL
ORDER BY m.name, il.name, ii.seqno`
}

func (d *SqliteDialect) GetEnumsQuery(schema string) string {
	return ""
}

func (d *SqliteDialect) GetFunctionsQuery(schema string) string {
	return ""
}

func (d *SqliteDialect) VersionQuery() string {
	return `SELECT sqlite_version()`
}

func (d *SqliteDialect) BeforePump(ctx context.Context, c Conn) error {
	_, err := c.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON")
	return err
}

func (d *SqliteDialect) AfterPump(ctx context.Context, c Conn) error {
	return nil
}

func (d *SqliteDialect) BeforeTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	return nil
}

func (d *SqliteDialect) AfterTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	return nil
}

func (d *SqliteDialect) QuoteIdent(name string) string {
	return quoteQualified(name, func(s string) string {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	})
}

func (d *SqliteDialect) UpsertQuery(table string, cols []string, rows int, key string, policy ConflictPolicy) string {
	vals := GenerateValueRows(len(cols), rows, d.Placeholder)
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", d.QuoteIdent(table), strings.Join(quoteCols(d, cols), ", "), vals)
	if policy == ConflictUpdateTimestamp && containsCol(cols, "updated_at") {
		return q + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET updated_at = excluded.updated_at", d.QuoteIdent(key))
	}
	return q + " ON CONFLICT DO NOTHING"
}

func (d *SqliteDialect) PageQuery(table string, orderBy []string, limit, offset int) string {
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT %d OFFSET %d", d.QuoteIdent(table), strings.Join(quoteCols(d, orderBy), ", "), limit, offset)
}

func (d *SqliteDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", d.QuoteIdent(table))
}

func (d *SqliteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SqliteDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *SqliteDialect) GetSchemaName(input string) string {
	if input == "" {
		return "main"
	}
	return input
}

func (d *SqliteDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
