package schema

import (
	"strings"
	"time"
)

// Constraint kinds.
const (
	PrimaryKey = "PRIMARY KEY"
	ForeignKey = "FOREIGN KEY"
	Unique     = "UNIQUE"
	Check      = "CHECK"
)

type SchemaExtractionResult struct {
	Tables         []*TableMetadata    `json:"tables" yaml:"tables"`
	Enums          []*EnumMetadata     `json:"enums" yaml:"enums"`
	Functions      []*FunctionMetadata `json:"functions" yaml:"functions"`
	MigrationFiles []string            `json:"migrationFiles" yaml:"migrationFiles"`
	ExtractedAt    time.Time           `json:"extractedAt" yaml:"extractedAt"`
	CatalogVersion string              `json:"catalogVersion,omitempty" yaml:"catalogVersion,omitempty"`
	Warnings       []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Table looks a table up by name, case-insensitively.
func (r *SchemaExtractionResult) Table(name string) *TableMetadata {
	if r == nil {
		return nil
	}
	for _, t := range r.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// Enum looks an enum up by name, case-insensitively.
func (r *SchemaExtractionResult) Enum(name string) *EnumMetadata {
	if r == nil {
		return nil
	}
	for _, e := range r.Enums {
		if strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

type TableMetadata struct {
	Name        string                `json:"name" yaml:"name"`
	Columns     []*ColumnMetadata     `json:"columns" yaml:"columns"`
	Constraints []*ConstraintMetadata `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Indexes     []*IndexMetadata      `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	Policies    []*PolicyMetadata     `json:"policies,omitempty" yaml:"policies,omitempty"`
	Triggers    []*TriggerMetadata    `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

type ColumnMetadata struct {
	Name         string     `json:"name" yaml:"name"`
	Type         string     `json:"type" yaml:"type"`
	Nullable     bool       `json:"nullable" yaml:"nullable"`
	Default      string     `json:"default,omitempty" yaml:"default,omitempty"`
	IsPrimaryKey bool       `json:"isPrimaryKey" yaml:"isPrimaryKey"`
	IsForeignKey bool       `json:"isForeignKey" yaml:"isForeignKey"`
	IsUnique     bool       `json:"isUnique,omitempty" yaml:"isUnique,omitempty"`
	IsIdentity   bool       `json:"isIdentity,omitempty" yaml:"isIdentity,omitempty"`
	References   *Reference `json:"references,omitempty" yaml:"references,omitempty"`
}

type Reference struct {
	Table    string `json:"table" yaml:"table"`
	Column   string `json:"column" yaml:"column"`
	OnDelete string `json:"onDelete,omitempty" yaml:"onDelete,omitempty"`
	OnUpdate string `json:"onUpdate,omitempty" yaml:"onUpdate,omitempty"`
}

type ConstraintMetadata struct {
	Name              string   `json:"name" yaml:"name"`
	Type              string   `json:"type" yaml:"type"`
	Columns           []string `json:"columns" yaml:"columns"`
	ReferencedTable   string   `json:"referencedTable,omitempty" yaml:"referencedTable,omitempty"`
	ReferencedColumns []string `json:"referencedColumns,omitempty" yaml:"referencedColumns,omitempty"`
	OnDelete          string   `json:"onDelete,omitempty" yaml:"onDelete,omitempty"`
	OnUpdate          string   `json:"onUpdate,omitempty" yaml:"onUpdate,omitempty"`
	Expression        string   `json:"expression,omitempty" yaml:"expression,omitempty"`
}

type IndexMetadata struct {
	Name    string   `json:"name" yaml:"name"`
	Table   string   `json:"table" yaml:"table"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique" yaml:"unique"`
	Method  string   `json:"method,omitempty" yaml:"method,omitempty"`
}

type PolicyMetadata struct {
	Name       string   `json:"name" yaml:"name"`
	Table      string   `json:"table" yaml:"table"`
	Command    string   `json:"command" yaml:"command"`
	Permissive bool     `json:"permissive" yaml:"permissive"`
	Roles      []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Using      string   `json:"using,omitempty" yaml:"using,omitempty"`
	WithCheck  string   `json:"withCheck,omitempty" yaml:"withCheck,omitempty"`
}

type TriggerMetadata struct {
	Name     string   `json:"name" yaml:"name"`
	Table    string   `json:"table" yaml:"table"`
	Timing   string   `json:"timing" yaml:"timing"`
	Events   []string `json:"events" yaml:"events"`
	Function string   `json:"function" yaml:"function"`
}

type EnumMetadata struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

type FunctionMetadata struct {
	Name       string `json:"name" yaml:"name"`
	Arguments  string `json:"arguments" yaml:"arguments"`
	ReturnType string `json:"returnType" yaml:"returnType"`
	Language   string `json:"language" yaml:"language"`
	Body       string `json:"body,omitempty" yaml:"body,omitempty"`
}

// Column looks a column up by name, case-insensitively.
func (t *TableMetadata) Column(name string) *ColumnMetadata {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// Constraint looks a constraint up by name, case-insensitively.
func (t *TableMetadata) Constraint(name string) *ConstraintMetadata {
	for _, c := range t.Constraints {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// PrimaryKey returns the primary key columns, from the constraint when one
// exists and from the column flags otherwise.
func (t *TableMetadata) PrimaryKey() []string {
	for _, c := range t.Constraints {
		if c.Type == PrimaryKey && len(c.Columns) > 0 {
			return c.Columns
		}
	}
	var cols []string
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// HasForeignKeys reports whether any column references another table.
func (t *TableMetadata) HasForeignKeys() bool {
	for _, c := range t.Columns {
		if c.IsForeignKey {
			return true
		}
	}
	for _, c := range t.Constraints {
		if c.Type == ForeignKey {
			return true
		}
	}
	return false
}

// Dependencies returns the distinct tables this table references, excluding itself.
func (t *TableMetadata) Dependencies() []string {
	seen := make(map[string]bool)
	var deps []string
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || strings.EqualFold(name, t.Name) || seen[key] {
			return
		}
		seen[key] = true
		deps = append(deps, name)
	}
	for _, c := range t.Columns {
		if c.References != nil {
			add(c.References.Table)
		}
	}
	for _, c := range t.Constraints {
		if c.Type == ForeignKey {
			add(c.ReferencedTable)
		}
	}
	return deps
}

// HasIdentity reports whether the table has an auto-generated key column.
func (t *TableMetadata) HasIdentity() bool {
	for _, c := range t.Columns {
		if c.IsIdentity {
			return true
		}
	}
	return false
}
