package dialect

import (
	"database/sql"
	"fmt"
	"strings"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	return generatePlaceholdersFrom(0, count, placeholderFunc)
}

func generatePlaceholdersFrom(start, count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(start + i)
	}
	return strings.Join(placeholders, ", ")
}

// GenerateValueRows renders "(p1, p2), (p3, p4)" for a multi-row VALUES clause.
func GenerateValueRows(cols, rows int, placeholderFunc func(int) string) string {
	tuples := make([]string, rows)
	for r := 0; r < rows; r++ {
		tuples[r] = "(" + generatePlaceholdersFrom(r*cols, cols, placeholderFunc) + ")"
	}
	return strings.Join(tuples, ", ")
}

// DefaultNormalizeType is a default implementation for type normalization (lowercase).
func DefaultNormalizeType(sqlType string) string {
	return strings.ToLower(sqlType)
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}

// quoteQualified quotes every dot-separated part of a (possibly schema-qualified) name.
func quoteQualified(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

func quoteCols(d Dialect, cols []string) []string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return quoted
}

func containsCol(cols []string, name string) bool {
	for _, c := range cols {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// CountQuery counts every row of a table.
func CountQuery(d Dialect, table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

// SelectByKeyQuery fetches a single row by key; the key is bound as the first placeholder.
func SelectByKeyQuery(d Dialect, table, key string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", d.QuoteIdent(table), d.QuoteIdent(key), d.Placeholder(0))
}

// OrderedSelectQuery selects every row of a table ordered by the given columns.
func OrderedSelectQuery(d Dialect, table string, orderBy []string) string {
	q := fmt.Sprintf("SELECT * FROM %s", d.QuoteIdent(table))
	if len(orderBy) > 0 {
		q += " ORDER BY " + strings.Join(quoteCols(d, orderBy), ", ")
	}
	return q
}

// OrphanCountQuery counts child rows whose non-null foreign key has no parent row.
func OrphanCountQuery(d Dialect, child, column, parent, parentColumn string) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM %s c LEFT JOIN %s p ON c.%s = p.%s WHERE c.%s IS NOT NULL AND p.%s IS NULL",
		d.QuoteIdent(child), d.QuoteIdent(parent),
		d.QuoteIdent(column), d.QuoteIdent(parentColumn),
		d.QuoteIdent(column), d.QuoteIdent(parentColumn),
	)
}

// DuplicateGroupsQuery counts key groups that occur more than once.
// With skipNulls, groups containing a NULL key part are ignored (UNIQUE semantics).
func DuplicateGroupsQuery(d Dialect, table string, cols []string, skipNulls bool) string {
	quoted := strings.Join(quoteCols(d, cols), ", ")
	where := ""
	if skipNulls {
		conds := make([]string, len(cols))
		for i, c := range cols {
			conds[i] = d.QuoteIdent(c) + " IS NOT NULL"
		}
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT %s FROM %s%s GROUP BY %s HAVING COUNT(*) > 1) dup",
		quoted, d.QuoteIdent(table), where, quoted,
	)
}

// NullCountQuery counts rows where the column is NULL.
func NullCountQuery(d Dialect, table, column string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", d.QuoteIdent(table), d.QuoteIdent(column))
}

// ColumnSampleQuery returns up to limit non-null values of one column.
func ColumnSampleQuery(d Dialect, table, column string, limit int) string {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL", d.QuoteIdent(column), d.QuoteIdent(table), d.QuoteIdent(column))
	return d.GetLimitRowQuery(q, limit)
}

// ScanMaps reads every remaining row into a column-name keyed map.
// Driver byte slices are copied so the maps stay valid after rows.Next.
func ScanMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				cp := make([]byte, len(b))
				copy(cp, b)
				row[c] = cp
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
