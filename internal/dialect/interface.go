package dialect

import (
	"context"
	"database/sql"
)

// Conn is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ConflictPolicy decides what a multi-row insert does when the key column already exists.
type ConflictPolicy int

const (
	// ConflictSkip keeps whichever row got there first.
	ConflictSkip ConflictPolicy = iota
	// ConflictUpdateTimestamp overwrites updated_at with the incoming value.
	ConflictUpdateTimestamp
)

// Dialect abstracts database-specific operations.
type Dialect interface {
	Name() string

	// Metadata Queries (Schema Introspection)
	GetTablesQuery(schema string) string
	GetColumnsQuery(schema string) string
	GetPrimaryKeysQuery(schema string) string
	GetForeignKeysQuery(schema string) string
	GetUniqueKeysQuery(schema string) string
	// GetEnumsQuery and GetFunctionsQuery return "" when the catalog has no equivalent.
	GetEnumsQuery(schema string) string
	GetFunctionsQuery(schema string) string
	VersionQuery() string

	// Execution Hooks (Global Level)
	BeforePump(ctx context.Context, c Conn) error
	AfterPump(ctx context.Context, c Conn) error

	// Execution Hooks (Table Level) - For IDENTITY_INSERT etc.
	BeforeTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error
	AfterTable(ctx context.Context, c Conn, tableName string, hasIdentity bool) error

	// Query Generation
	QuoteIdent(name string) string
	UpsertQuery(table string, cols []string, rows int, key string, policy ConflictPolicy) string
	PageQuery(table string, orderBy []string, limit, offset int) string
	TruncateQuery(table string) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.

	// Helpers
	NormalizeType(sqlType string) string
	GetSchemaName(input string) string
	GetLimitRowQuery(query string, limit int) string
}

// IdentityResetter is implemented by dialects whose TruncateQuery leaves identity seeds untouched.
type IdentityResetter interface {
	ResetIdentityQuery(table string) string
}
