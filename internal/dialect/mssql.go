package dialect

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server Driver
)

type MSSQLDialect struct{}

// Helper: MSSQL Driver (go-mssqldb) often prefers @p1, @p2 named parameters over ?
// especially when prepared statements are involved or simple Exec.

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) GetTablesQuery(schema string) string {
	// Use @p1 for schema binding
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MSSQLDialect) GetColumnsQuery(schema string) string {
	// Include PK, UNIQUE constraints, UNIQUE indexes, Identity info, and MS_Description (Comment)
	return `
		SELECT
			c.TABLE_NAME,
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.DATA_TYPE,
			c.CHARACTER_MAXIMUM_LENGTH,
			c.IS_NULLABLE,
			CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 'PRIMARY' ELSE '' END AS COLUMN_KEY,
			CASE
				WHEN idxc.column_id IS NOT NULL THEN 'identity'
				WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
				ELSE c.COLUMN_DEFAULT
			END AS COLUMN_DEFAULT,
			CASE WHEN uq.COLUMN_NAME IS NOT NULL OR ui.COLUMN_NAME IS NOT NULL THEN 'UNIQUE' ELSE '' END AS IS_UNIQUE,
			CAST(ep.value AS NVARCHAR(MAX)) AS COMMENT
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1
		) pk ON c.TABLE_NAME = pk.TABLE_NAME AND c.COLUMN_NAME = pk.COLUMN_NAME
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'UNIQUE' AND tc.TABLE_SCHEMA = @p1
		) uq ON c.TABLE_NAME = uq.TABLE_NAME AND c.COLUMN_NAME = uq.COLUMN_NAME
		LEFT JOIN (
			SELECT
				t.name AS TABLE_NAME,
				col.name AS COLUMN_NAME
			FROM sys.indexes idx
			JOIN sys.index_columns ic ON idx.object_id = ic.object_id AND idx.index_id = ic.index_id
			JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
			JOIN sys.tables t ON idx.object_id = t.object_id
			JOIN sys.schemas s ON t.schema_id = s.schema_id
			WHERE idx.is_unique = 1
				AND idx.is_primary_key = 0
				AND s.name = @p1
		) ui ON c.TABLE_NAME = ui.TABLE_NAME AND c.COLUMN_NAME = ui.COLUMN_NAME
		LEFT JOIN sys.identity_columns idxc
			ON idxc.object_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
			AND idxc.name = c.COLUMN_NAME
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
			AND ep.minor_id = c.ORDINAL_POSITION
			AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = @p1
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION
	`
}

func (d *MSSQLDialect) GetPrimaryKeysQuery(schema string) string {
	return `SELECT KCU.TABLE_NAME, KCU.CONSTRAINT_NAME, KCU.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS T JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU ON T.CONSTRAINT_NAME = KCU.CONSTRAINT_NAME WHERE T.CONSTRAINT_TYPE = 'PRIMARY KEY' AND T.TABLE_SCHEMA = @p1 ORDER BY KCU.TABLE_NAME, KCU.ORDINAL_POSITION`
}

func (d *MSSQLDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN, RC.DELETE_RULE, RC.UPDATE_RULE FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME AND KCU1.ORDINAL_POSITION = KCU2.ORDINAL_POSITION WHERE KCU1.TABLE_SCHEMA = @p1`
}

func (d *MSSQLDialect) GetUniqueKeysQuery(schema string) string {
	return `SELECT KCU.TABLE_NAME, KCU.CONSTRAINT_NAME, KCU.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS T JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU ON T.CONSTRAINT_NAME = KCU.CONSTRAINT_NAME WHERE T.CONSTRAINT_TYPE = 'UNIQUE' AND T.TABLE_SCHEMA = @p1 ORDER BY KCU.TABLE_NAME, KCU.CONSTRAINT_NAME, KCU.ORDINAL_POSITION`
}

func (d *MSSQLDialect) GetEnumsQuery(schema string) string {
	return ""
}

func (d *MSSQLDialect) GetFunctionsQuery(schema string) string {
	return `SELECT ROUTINE_NAME, '', DATA_TYPE, 'TSQL' FROM INFORMATION_SCHEMA.ROUTINES WHERE ROUTINE_SCHEMA = @p1 AND ROUTINE_TYPE = 'FUNCTION' ORDER BY ROUTINE_NAME`
}

func (d *MSSQLDialect) VersionQuery() string {
	return `SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))`
}

func (d *MSSQLDialect) listTables(ctx context.Context, c Conn) ([]string, error) {
	rows, err := c.QueryContext(ctx, "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = 'dbo'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (d *MSSQLDialect) BeforePump(ctx context.Context, c Conn) error {
	// Disable all constraints on all tables so deletes can run in any order.
	tables, err := d.listTables(ctx, c)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := c.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT all", d.QuoteIdent(t))); err != nil {
			return fmt.Errorf("failed to disable constraints on %s: %w", t, err)
		}
	}
	return nil
}

func (d *MSSQLDialect) AfterPump(ctx context.Context, c Conn) error {
	tables, err := d.listTables(ctx, c)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := c.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s WITH CHECK CHECK CONSTRAINT all", d.QuoteIdent(t))); err != nil {
			return fmt.Errorf("failed to enable constraints on %s: %w", t, err)
		}
	}
	return nil
}

func (d *MSSQLDialect) BeforeTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	// Preserving ids into an IDENTITY column requires IDENTITY_INSERT for the session.
	if !hasIdentity {
		return nil
	}
	_, err := c.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s ON", d.QuoteIdent(tableName)))
	return err
}

func (d *MSSQLDialect) AfterTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	if !hasIdentity {
		return nil
	}
	_, err := c.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s OFF", d.QuoteIdent(tableName)))
	return err
}

func (d *MSSQLDialect) QuoteIdent(name string) string {
	return quoteQualified(name, func(s string) string {
		return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
	})
}

func (d *MSSQLDialect) UpsertQuery(table string, cols []string, rows int, key string, policy ConflictPolicy) string {
	quoted := quoteCols(d, cols)
	srcCols := make([]string, len(cols))
	for i, c := range quoted {
		srcCols[i] = "src." + c
	}
	q := fmt.Sprintf("MERGE INTO %s AS tgt USING (VALUES %s) AS src (%s) ON tgt.%s = src.%s",
		d.QuoteIdent(table),
		GenerateValueRows(len(cols), rows, d.Placeholder),
		strings.Join(quoted, ", "),
		d.QuoteIdent(key), d.QuoteIdent(key),
	)
	if policy == ConflictUpdateTimestamp && containsCol(cols, "updated_at") {
		q += " WHEN MATCHED THEN UPDATE SET tgt.updated_at = src.updated_at"
	}
	return q + fmt.Sprintf(" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);", strings.Join(quoted, ", "), strings.Join(srcCols, ", "))
}

func (d *MSSQLDialect) PageQuery(table string, orderBy []string, limit, offset int) string {
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", d.QuoteIdent(table), strings.Join(quoteCols(d, orderBy), ", "), offset, limit)
}

func (d *MSSQLDialect) TruncateQuery(table string) string {
	// DELETE instead of TRUNCATE so referenced tables can be emptied.
	return fmt.Sprintf("DELETE FROM %s", d.QuoteIdent(table))
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "nvarchar", "nchar", "text", "ntext":
		return "varchar"
	case "bit":
		return "boolean"
	case "tinyint":
		return "tinyint" // 0-255
	case "smallint":
		return "smallint"
	case "int":
		return "int"
	case "bigint":
		return "bigint"
	case "decimal", "numeric", "money", "smallmoney":
		return "decimal"
	case "float", "real":
		return "float"
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return "datetime"
	case "image", "binary", "varbinary":
		return "blob"
	case "uniqueidentifier":
		return "uuid"
	default:
		return t
	}
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}

func (d *MSSQLDialect) GetLimitRowQuery(query string, limit int) string {
	// Simple T-SQL TOP injection
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return strings.Replace(query, "SELECT", fmt.Sprintf("SELECT TOP %d", limit), 1)
	}
	return query
}

// ResetIdentityQuery reseeds the IDENTITY column after the table was emptied with DELETE.
func (d *MSSQLDialect) ResetIdentityQuery(table string) string {
	return fmt.Sprintf("DBCC CHECKIDENT ('%s', RESEED, 0)", strings.ReplaceAll(table, "'", "''"))
}
