package dialect

import (
	"context"
	"fmt"
	"strings"
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string { return "mysql" }

func (d *MysqlDialect) GetTablesQuery(schema string) string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MysqlDialect) GetColumnsQuery(schema string) string {
	return `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, CHARACTER_MAXIMUM_LENGTH, IS_NULLABLE, COLUMN_KEY, COALESCE(NULLIF(EXTRA, ''), COLUMN_DEFAULT), IF(COLUMN_KEY='UNI', 'UNIQUE', NULL) AS IS_UNIQUE, COLUMN_COMMENT FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetPrimaryKeysQuery(schema string) string {
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT k.TABLE_NAME, k.CONSTRAINT_NAME, k.COLUMN_NAME, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME, r.DELETE_RULE, r.UPDATE_RULE FROM information_schema.KEY_COLUMN_USAGE k JOIN information_schema.REFERENTIAL_CONSTRAINTS r ON r.CONSTRAINT_SCHEMA = k.TABLE_SCHEMA AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME WHERE k.TABLE_SCHEMA = ? AND k.REFERENCED_TABLE_NAME IS NOT NULL`
}

func (d *MysqlDialect) GetUniqueKeysQuery(schema string) string {
	return `SELECT k.TABLE_NAME, k.CONSTRAINT_NAME, k.COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE k JOIN information_schema.TABLE_CONSTRAINTS t ON t.CONSTRAINT_SCHEMA = k.TABLE_SCHEMA AND t.TABLE_NAME = k.TABLE_NAME AND t.CONSTRAINT_NAME = k.CONSTRAINT_NAME WHERE k.TABLE_SCHEMA = ? AND t.CONSTRAINT_TYPE = 'UNIQUE' ORDER BY k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION`
}

func (d *MysqlDialect) GetEnumsQuery(schema string) string {
	// MySQL enums live on the column type, not in the catalog.
	return ""
}

func (d *MysqlDialect) GetFunctionsQuery(schema string) string {
	return `SELECT ROUTINE_NAME, '', DTD_IDENTIFIER, 'SQL' FROM information_schema.ROUTINES WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'FUNCTION' ORDER BY ROUTINE_NAME`
}

func (d *MysqlDialect) VersionQuery() string {
	return `SELECT VERSION()`
}

func (d *MysqlDialect) BeforePump(ctx context.Context, c Conn) error {
	_, err := c.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0")
	return err
}

func (d *MysqlDialect) AfterPump(ctx context.Context, c Conn) error {
	_, err := c.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
	return err
}

func (d *MysqlDialect) BeforeTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	return nil
}

func (d *MysqlDialect) AfterTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	return nil
}

func (d *MysqlDialect) QuoteIdent(name string) string {
	return quoteQualified(name, func(s string) string {
		return "`" + strings.ReplaceAll(s, "`", "``") + "`"
	})
}

func (d *MysqlDialect) UpsertQuery(table string, cols []string, rows int, key string, policy ConflictPolicy) string {
	vals := GenerateValueRows(len(cols), rows, d.Placeholder)
	colList := strings.Join(quoteCols(d, cols), ", ")
	if policy == ConflictUpdateTimestamp && containsCol(cols, "updated_at") {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON DUPLICATE KEY UPDATE updated_at = VALUES(updated_at)", d.QuoteIdent(table), colList, vals)
	}
	return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES %s", d.QuoteIdent(table), colList, vals)
}

func (d *MysqlDialect) PageQuery(table string, orderBy []string, limit, offset int) string {
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT %d OFFSET %d", d.QuoteIdent(table), strings.Join(quoteCols(d, orderBy), ", "), limit, offset)
}

func (d *MysqlDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

func (d *MysqlDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
