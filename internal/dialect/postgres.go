package dialect

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) GetTablesQuery(schema string) string {
	// use $1 placeholder
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = $1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *PostgresDialect) GetColumnsQuery(schema string) string {
	// Returns generic columns matching interface structure.
	// UDT_NAME keeps enum and array type names that DATA_TYPE reports as USER-DEFINED/ARRAY.
	// COLUMN_DEFAULT is selected in the EXTRA position.
	return `SELECT
    c.table_name,
    c.column_name,
    c.data_type,
    c.udt_name,
    c.character_maximum_length,
    c.is_nullable,
    (SELECT 'PRI' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
     WHERE tc.constraint_type = 'PRIMARY KEY'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS COLUMN_KEY,
    c.column_default,
    (SELECT 'UNIQUE' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
     WHERE tc.constraint_type = 'UNIQUE'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS IS_UNIQUE,
    NULL AS COMMENT
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`
}

func (d *PostgresDialect) GetPrimaryKeysQuery(schema string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name FROM information_schema.key_column_usage kcu JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema WHERE kcu.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY' ORDER BY kcu.table_name, kcu.ordinal_position`
}

func (d *PostgresDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, ccu.table_name AS referenced_table_name, ccu.column_name AS referenced_column_name, rc.delete_rule, rc.update_rule FROM information_schema.key_column_usage kcu JOIN information_schema.constraint_column_usage ccu ON kcu.constraint_name = ccu.constraint_name AND kcu.table_schema = ccu.constraint_schema JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema JOIN information_schema.referential_constraints rc ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.table_schema WHERE kcu.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'`
}

func (d *PostgresDialect) GetUniqueKeysQuery(schema string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name FROM information_schema.key_column_usage kcu JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema WHERE kcu.table_schema = $1 AND tc.constraint_type = 'UNIQUE' ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`
}

func (d *PostgresDialect) GetEnumsQuery(schema string) string {
	return `SELECT t.typname, e.enumlabel FROM pg_type t JOIN pg_enum e ON t.oid = e.enumtypid JOIN pg_namespace n ON n.oid = t.typnamespace WHERE n.nspname = $1 ORDER BY t.typname, e.enumsortorder`
}

func (d *PostgresDialect) GetFunctionsQuery(schema string) string {
	return `SELECT p.proname, pg_get_function_arguments(p.oid), pg_get_function_result(p.oid), l.lanname FROM pg_proc p JOIN pg_namespace n ON n.oid = p.pronamespace JOIN pg_language l ON l.oid = p.prolang WHERE n.nspname = $1 AND p.prokind = 'f' ORDER BY p.proname`
}

func (d *PostgresDialect) VersionQuery() string {
	return `SHOW server_version`
}

func (d *PostgresDialect) BeforePump(ctx context.Context, c Conn) error {
	// Use DEFERRED constraints for circular dependencies.
	// This works for foreign keys defined as DEFERRABLE.
	_, err := c.ExecContext(ctx, "SET CONSTRAINTS ALL DEFERRED")
	return err
}

func (d *PostgresDialect) AfterPump(ctx context.Context, c Conn) error {
	_, err := c.ExecContext(ctx, "SET CONSTRAINTS ALL IMMEDIATE")
	return err
}

func (d *PostgresDialect) BeforeTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	// Explicit ids are accepted for serial and uuid keys; foreign keys stay enforced.
	return nil
}

func (d *PostgresDialect) AfterTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	return nil
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return quoteQualified(name, pq.QuoteIdentifier)
}

func (d *PostgresDialect) UpsertQuery(table string, cols []string, rows int, key string, policy ConflictPolicy) string {
	vals := GenerateValueRows(len(cols), rows, d.Placeholder)
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", d.QuoteIdent(table), strings.Join(quoteCols(d, cols), ", "), vals)
	if policy == ConflictUpdateTimestamp && containsCol(cols, "updated_at") {
		return q + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET updated_at = EXCLUDED.updated_at", d.QuoteIdent(key))
	}
	return q + " ON CONFLICT DO NOTHING"
}

func (d *PostgresDialect) PageQuery(table string, orderBy []string, limit, offset int) string {
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT %d OFFSET %d", d.QuoteIdent(table), strings.Join(quoteCols(d, orderBy), ", "), limit, offset)
}

func (d *PostgresDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s CASCADE", d.QuoteIdent(table))
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int4", "int2":
		return "int"
	case "int8":
		return "bigint"
	case "float4":
		return "float"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	case "varchar":
		return "varchar"
	case "timestamptz":
		return "timestamp with time zone"
	default:
		return t
	}
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

func (d *PostgresDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
