package schema

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"db-shift/internal/dialect"

	"github.com/Masterminds/semver/v3"
)

// Introspection steps, in execution order.
const (
	StepTables      = "tables"
	StepColumns     = "columns"
	StepPrimaryKeys = "primary keys"
	StepForeignKeys = "foreign keys"
	StepUniqueKeys  = "unique keys"
	StepEnums       = "enums"
	StepFunctions   = "functions"
	StepVersion     = "version"
)

// IntrospectionError reports which catalog step failed.
type IntrospectionError struct {
	Step string
	Err  error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspection failed at %s: %v", e.Step, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

func stepErr(step string, err error) error {
	return &IntrospectionError{Step: step, Err: err}
}

// Introspect reads the live catalog through the dialect. Each step fails on
// its own; the caller decides whether a partial schema is acceptable.
func Introspect(ctx context.Context, db Querier, d dialect.Dialect, schemaName string) (*SchemaExtractionResult, error) {
	target := d.GetSchemaName(schemaName)

	tableMap := make(map[string]*TableMetadata)
	res := &SchemaExtractionResult{}

	// --- Step 1: Tables ---
	err := queryEach(ctx, db, d.GetTablesQuery(target), target, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		t := &TableMetadata{Name: name}
		tableMap[strings.ToUpper(name)] = t
		res.Tables = append(res.Tables, t)
		return nil
	})
	if err != nil {
		return nil, stepErr(StepTables, err)
	}

	// --- Step 2: Columns ---
	err = queryEach(ctx, db, d.GetColumnsQuery(target), target, func(rows *sql.Rows) error {
		var tName, cName, dType, cType, cLen, isNull, cKey, extra, isUnique, comment sql.NullString
		if err := rows.Scan(&tName, &cName, &dType, &cType, &cLen, &isNull, &cKey, &extra, &isUnique, &comment); err != nil {
			return fmt.Errorf("failed to scan column (table: %s): %w", tName.String, err)
		}
		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok || !cName.Valid {
			return nil
		}

		typ := dType.String
		if cType.Valid && cType.String != "" {
			typ = cType.String
		}
		col := &ColumnMetadata{
			Name:         cName.String,
			Type:         d.NormalizeType(typ),
			Nullable:     isNull.String == "YES",
			IsPrimaryKey: strings.Contains(cKey.String, "PRI"),
			IsUnique:     strings.Contains(isUnique.String, "UNIQUE"),
		}
		if extra.Valid {
			lower := strings.ToLower(extra.String)
			col.IsIdentity = strings.Contains(lower, "auto_increment") ||
				strings.Contains(lower, "identity") ||
				strings.Contains(lower, "nextval")
			if !strings.Contains(lower, "auto_increment") {
				col.Default = extra.String
			}
		}
		t.Columns = append(t.Columns, col)
		return nil
	})
	if err != nil {
		return nil, stepErr(StepColumns, err)
	}

	// --- Step 3: Keys ---
	if err := introspectKeyConstraints(ctx, db, d.GetPrimaryKeysQuery(target), target, tableMap, PrimaryKey); err != nil {
		return nil, stepErr(StepPrimaryKeys, err)
	}
	if err := introspectForeignKeys(ctx, db, d.GetForeignKeysQuery(target), target, tableMap); err != nil {
		return nil, stepErr(StepForeignKeys, err)
	}
	if err := introspectKeyConstraints(ctx, db, d.GetUniqueKeysQuery(target), target, tableMap, Unique); err != nil {
		return nil, stepErr(StepUniqueKeys, err)
	}
	for _, t := range res.Tables {
		backfill(t)
	}

	// --- Step 4: Enums and functions, where the catalog has them ---
	if q := d.GetEnumsQuery(target); q != "" {
		enums := make(map[string]*EnumMetadata)
		err = queryEach(ctx, db, q, target, func(rows *sql.Rows) error {
			var name, value string
			if err := rows.Scan(&name, &value); err != nil {
				return fmt.Errorf("failed to scan enum value: %w", err)
			}
			e, ok := enums[name]
			if !ok {
				e = &EnumMetadata{Name: name}
				enums[name] = e
				res.Enums = append(res.Enums, e)
			}
			e.Values = append(e.Values, value)
			return nil
		})
		if err != nil {
			return nil, stepErr(StepEnums, err)
		}
	}
	if q := d.GetFunctionsQuery(target); q != "" {
		err = queryEach(ctx, db, q, target, func(rows *sql.Rows) error {
			var name, args, result, lang sql.NullString
			if err := rows.Scan(&name, &args, &result, &lang); err != nil {
				return fmt.Errorf("failed to scan function: %w", err)
			}
			res.Functions = append(res.Functions, &FunctionMetadata{
				Name:       name.String,
				Arguments:  args.String,
				ReturnType: result.String,
				Language:   strings.ToLower(lang.String),
			})
			return nil
		})
		if err != nil {
			return nil, stepErr(StepFunctions, err)
		}
	}

	// --- Step 5: Version ---
	var version string
	if err := db.QueryRowContext(ctx, d.VersionQuery()).Scan(&version); err != nil {
		return nil, stepErr(StepVersion, err)
	}
	res.CatalogVersion = NormalizeVersion(version)

	return res, nil
}

// Querier is a dialect.Conn that can also run single-row queries; *sql.DB and *sql.Conn satisfy it.
type Querier interface {
	dialect.Conn
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryEach(ctx context.Context, db dialect.Conn, query, schemaName string, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func introspectKeyConstraints(ctx context.Context, db dialect.Conn, query, schemaName string, tableMap map[string]*TableMetadata, kind string) error {
	return queryEach(ctx, db, query, schemaName, func(rows *sql.Rows) error {
		var tName, cName, col sql.NullString
		if err := rows.Scan(&tName, &cName, &col); err != nil {
			return fmt.Errorf("failed to scan %s: %w", strings.ToLower(kind), err)
		}
		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok {
			return nil
		}
		c := t.Constraint(cName.String)
		if c == nil {
			c = &ConstraintMetadata{Name: cName.String, Type: kind}
			t.Constraints = append(t.Constraints, c)
		}
		c.Columns = append(c.Columns, col.String)
		return nil
	})
}

func introspectForeignKeys(ctx context.Context, db dialect.Conn, query, schemaName string, tableMap map[string]*TableMetadata) error {
	return queryEach(ctx, db, query, schemaName, func(rows *sql.Rows) error {
		var tName, cName, col, rTable, rCol, onDelete, onUpdate sql.NullString
		if err := rows.Scan(&tName, &cName, &col, &rTable, &rCol, &onDelete, &onUpdate); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok || !rTable.Valid {
			return nil
		}
		// Keep the catalog's spelling of the referenced table when we know it.
		refName := rTable.String
		if ref, ok := tableMap[strings.ToUpper(refName)]; ok {
			refName = ref.Name
		}
		c := t.Constraint(cName.String)
		if c == nil {
			c = &ConstraintMetadata{
				Name:            cName.String,
				Type:            ForeignKey,
				ReferencedTable: refName,
				OnDelete:        strings.ToUpper(onDelete.String),
				OnUpdate:        strings.ToUpper(onUpdate.String),
			}
			t.Constraints = append(t.Constraints, c)
		}
		c.Columns = append(c.Columns, col.String)
		c.ReferencedColumns = append(c.ReferencedColumns, rCol.String)
		return nil
	})
}

var versionPrefix = regexp.MustCompile(`\d+(\.\d+){0,2}`)

// NormalizeVersion turns server banners such as "15.4 (Debian 15.4-1)" or
// "8.0.35-log" into a semantic version. Unrecognised banners are returned as-is.
func NormalizeVersion(raw string) string {
	raw = strings.TrimSpace(raw)
	m := versionPrefix.FindString(raw)
	if m == "" {
		return raw
	}
	v, err := semver.NewVersion(m)
	if err != nil {
		return raw
	}
	return v.String()
}
