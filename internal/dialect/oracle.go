package dialect

import (
	"context"
	"fmt"
	"strings"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

func (d *OracleDialect) GetTablesQuery(schema string) string {
	// USER_TABLES lists tables owned by the current user.
	// We include a dummy clause to consume the schema argument if passed by standard callers.
	return `SELECT TABLE_NAME FROM USER_TABLES WHERE :1 IS NOT NULL ORDER BY TABLE_NAME`
}

func (d *OracleDialect) GetColumnsQuery(schema string) string {
	// Retrieves column information for the current user's tables.
	// We join with USER_CONS_COLUMNS to identify Primary Keys (P) and Unique (U) constraints.
	return `
SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    CASE
        WHEN t.DATA_TYPE = 'NUMBER' AND COALESCE(t.DATA_SCALE, 0) > 0 THEN 'DECIMAL'
        WHEN t.DATA_TYPE = 'NUMBER' THEN 'INTEGER'
        ELSE t.DATA_TYPE
    END,
    t.DATA_TYPE || CASE WHEN t.DATA_LENGTH IS NOT NULL THEN '(' || t.DATA_LENGTH || ')' ELSE '' END,
    COALESCE(t.DATA_PRECISION, t.DATA_LENGTH),
    CASE WHEN t.NULLABLE = 'Y' THEN 'YES' ELSE 'NO' END,
    CASE WHEN p.CONSTRAINT_NAME IS NOT NULL THEN 'PRI' ELSE '' END,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'auto_increment' ELSE '' END,
    CASE WHEN u.CONSTRAINT_NAME IS NOT NULL THEN 'UNIQUE' ELSE '' END,
    c.COMMENTS
FROM USER_TAB_COLUMNS t
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
    WHERE uc.CONSTRAINT_TYPE = 'P'
) p ON t.TABLE_NAME = p.TABLE_NAME AND t.COLUMN_NAME = p.COLUMN_NAME
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
    WHERE uc.CONSTRAINT_TYPE = 'U'
) u ON t.TABLE_NAME = u.TABLE_NAME AND t.COLUMN_NAME = u.COLUMN_NAME
LEFT JOIN USER_COL_COMMENTS c ON t.TABLE_NAME = c.TABLE_NAME AND t.COLUMN_NAME = c.COLUMN_NAME
WHERE :1 IS NOT NULL
ORDER BY t.TABLE_NAME, t.COLUMN_ID`
}

func (d *OracleDialect) GetPrimaryKeysQuery(schema string) string {
	return `
SELECT cc.TABLE_NAME, cc.CONSTRAINT_NAME, cc.COLUMN_NAME
FROM USER_CONS_COLUMNS cc
JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = 'P' AND :1 IS NOT NULL
ORDER BY cc.TABLE_NAME, cc.POSITION`
}

func (d *OracleDialect) GetForeignKeysQuery(schema string) string {
	return `
SELECT
    c.TABLE_NAME,
    c.CONSTRAINT_NAME,
    cc.COLUMN_NAME,
    r.TABLE_NAME AS REF_TABLE,
    rcc.COLUMN_NAME AS REF_COLUMN,
    c.DELETE_RULE,
    'NO ACTION'
FROM USER_CONSTRAINTS c
JOIN USER_CONS_COLUMNS cc
    ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
    AND c.OWNER = cc.OWNER
JOIN USER_CONSTRAINTS r
    ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME
    AND c.R_OWNER = r.OWNER
JOIN USER_CONS_COLUMNS rcc
    ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME
    AND r.OWNER = rcc.OWNER
    AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R'
AND :1 IS NOT NULL`
}

func (d *OracleDialect) GetUniqueKeysQuery(schema string) string {
	return `
SELECT cc.TABLE_NAME, cc.CONSTRAINT_NAME, cc.COLUMN_NAME
FROM USER_CONS_COLUMNS cc
JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = 'U' AND :1 IS NOT NULL
ORDER BY cc.TABLE_NAME, cc.CONSTRAINT_NAME, cc.POSITION`
}

func (d *OracleDialect) GetEnumsQuery(schema string) string {
	return ""
}

func (d *OracleDialect) GetFunctionsQuery(schema string) string {
	return `SELECT OBJECT_NAME, '', '', 'PLSQL' FROM USER_OBJECTS WHERE OBJECT_TYPE = 'FUNCTION' AND :1 IS NOT NULL ORDER BY OBJECT_NAME`
}

func (d *OracleDialect) VersionQuery() string {
	return `SELECT VERSION FROM PRODUCT_COMPONENT_VERSION WHERE ROWNUM = 1`
}

type oracleConstraint struct {
	Table string
	Name  string
}

func (d *OracleDialect) foreignKeys(ctx context.Context, c Conn, status string) ([]oracleConstraint, error) {
	rows, err := c.QueryContext(ctx, "SELECT TABLE_NAME, CONSTRAINT_NAME FROM USER_CONSTRAINTS WHERE CONSTRAINT_TYPE = 'R' AND STATUS = :1", status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints []oracleConstraint
	for rows.Next() {
		var fk oracleConstraint
		if err := rows.Scan(&fk.Table, &fk.Name); err != nil {
			return nil, err
		}
		constraints = append(constraints, fk)
	}
	return constraints, rows.Err()
}

func (d *OracleDialect) BeforePump(ctx context.Context, c Conn) error {
	// 1. Standardize NLS formats on ISO-8601-like strings.
	if _, err := c.ExecContext(ctx, "ALTER SESSION SET NLS_DATE_FORMAT = 'YYYY-MM-DD HH24:MI:SS'"); err != nil {
		return fmt.Errorf("failed to set NLS_DATE_FORMAT: %w", err)
	}
	if _, err := c.ExecContext(ctx, "ALTER SESSION SET NLS_TIMESTAMP_FORMAT = 'YYYY-MM-DD HH24:MI:SS'"); err != nil {
		return fmt.Errorf("failed to set NLS_TIMESTAMP_FORMAT: %w", err)
	}

	// 2. Disable all FK constraints for the current user.
	// Note: In Oracle, DDL (ALTER) implicitly commits the transaction.
	constraints, err := d.foreignKeys(ctx, c, "ENABLED")
	if err != nil {
		return err
	}
	for _, fk := range constraints {
		query := fmt.Sprintf("ALTER TABLE %s DISABLE CONSTRAINT %s", fk.Table, fk.Name)
		if _, err := c.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to disable constraint %s on %s: %w", fk.Name, fk.Table, err)
		}
	}
	return nil
}

func (d *OracleDialect) AfterPump(ctx context.Context, c Conn) error {
	constraints, err := d.foreignKeys(ctx, c, "DISABLED")
	if err != nil {
		return err
	}
	for _, fk := range constraints {
		query := fmt.Sprintf("ALTER TABLE %s ENABLE CONSTRAINT %s", fk.Table, fk.Name)
		if _, err := c.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to enable constraint %s on %s: %w", fk.Name, fk.Table, err)
		}
	}
	return nil
}

func (d *OracleDialect) BeforeTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	return nil
}

func (d *OracleDialect) AfterTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error {
	return nil
}

func (d *OracleDialect) QuoteIdent(name string) string {
	// Unquoted identifiers fold to upper case, matching USER_TABLES names.
	return name
}

func (d *OracleDialect) UpsertQuery(table string, cols []string, rows int, key string, policy ConflictPolicy) string {
	selects := make([]string, rows)
	for r := 0; r < rows; r++ {
		fields := make([]string, len(cols))
		for i, c := range cols {
			fields[i] = fmt.Sprintf("%s %s", d.Placeholder(r*len(cols)+i), c)
		}
		selects[r] = "SELECT " + strings.Join(fields, ", ") + " FROM dual"
	}
	srcCols := make([]string, len(cols))
	for i, c := range cols {
		srcCols[i] = "src." + c
	}
	q := fmt.Sprintf("MERGE INTO %s tgt USING (%s) src ON (tgt.%s = src.%s)",
		table, strings.Join(selects, " UNION ALL "), key, key)
	if policy == ConflictUpdateTimestamp && containsCol(cols, "updated_at") {
		q += " WHEN MATCHED THEN UPDATE SET tgt.updated_at = src.updated_at"
	}
	return q + fmt.Sprintf(" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(srcCols, ", "))
}

func (d *OracleDialect) PageQuery(table string, orderBy []string, limit, offset int) string {
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", table, strings.Join(orderBy, ", "), offset, limit)
}

func (d *OracleDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) NormalizeType(sqlType string) string {
	s := strings.ToLower(sqlType)
	if strings.Contains(s, "char") || strings.Contains(s, "clob") {
		return "string"
	}
	if strings.Contains(s, "int") || strings.Contains(s, "number") || strings.Contains(s, "float") {
		return "integer"
	}
	if strings.Contains(s, "date") || strings.Contains(s, "time") || strings.Contains(s, "year") {
		return "datetime"
	}
	return s
}

func (d *OracleDialect) GetSchemaName(input string) string {
	// Catalog queries bind the schema as ":1 IS NOT NULL"; Oracle treats '' as NULL.
	if input == "" {
		return "USER"
	}
	return input
}

func (d *OracleDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, limit)
}
