package schema

import (
	"fmt"
	"sort"
	"strings"
)

// builder accumulates definitions across migration files. Tables, enums and
// functions keep the order in which they were first seen.
type builder struct {
	tables    map[string]*TableMetadata
	order     []string
	enums     map[string]*EnumMetadata
	enumOrder []string
	functions map[string]*FunctionMetadata
	funcOrder []string

	// pending holds ALTER/INDEX/POLICY/TRIGGER actions on tables not yet defined.
	pending map[string][]func(*TableMetadata)
}

func newBuilder() *builder {
	return &builder{
		tables:    make(map[string]*TableMetadata),
		enums:     make(map[string]*EnumMetadata),
		functions: make(map[string]*FunctionMetadata),
		pending:   make(map[string][]func(*TableMetadata)),
	}
}

func (b *builder) table(name string) *TableMetadata {
	return b.tables[strings.ToLower(name)]
}

// onTable runs fn against the named table now, or once it is defined.
func (b *builder) onTable(name string, fn func(*TableMetadata)) {
	if t := b.table(name); t != nil {
		fn(t)
		return
	}
	key := strings.ToLower(name)
	b.pending[key] = append(b.pending[key], fn)
}

func (b *builder) mergeTable(t *TableMetadata) {
	key := strings.ToLower(t.Name)
	existing, ok := b.tables[key]
	if !ok {
		b.tables[key] = t
		b.order = append(b.order, key)
		existing = t
	} else {
		mergeColumns(existing, t.Columns)
		for _, c := range t.Constraints {
			existing.Constraints = appendConstraint(existing.Constraints, c)
		}
	}
	if fns := b.pending[key]; len(fns) > 0 {
		delete(b.pending, key)
		for _, fn := range fns {
			fn(existing)
		}
	}
}

// mergeColumns folds cols into t. Newer non-empty attributes win, key flags
// accumulate.
func mergeColumns(t *TableMetadata, cols []*ColumnMetadata) {
	for _, col := range cols {
		cur := t.Column(col.Name)
		if cur == nil {
			t.Columns = append(t.Columns, col)
			continue
		}
		if col.Type != "" {
			cur.Type = col.Type
		}
		if col.Default != "" {
			cur.Default = col.Default
		}
		cur.Nullable = col.Nullable
		cur.IsPrimaryKey = cur.IsPrimaryKey || col.IsPrimaryKey
		cur.IsForeignKey = cur.IsForeignKey || col.IsForeignKey
		cur.IsUnique = cur.IsUnique || col.IsUnique
		cur.IsIdentity = cur.IsIdentity || col.IsIdentity
		if col.References != nil {
			cur.References = col.References
		}
	}
}

func (b *builder) mergeEnum(e *EnumMetadata) {
	key := strings.ToLower(e.Name)
	existing, ok := b.enums[key]
	if !ok {
		b.enums[key] = e
		b.enumOrder = append(b.enumOrder, key)
		return
	}
	for _, v := range e.Values {
		if !containsValue(existing.Values, v) {
			existing.Values = append(existing.Values, v)
		}
	}
}

// addEnumValue applies ALTER TYPE ... ADD VALUE, honouring BEFORE/AFTER anchors.
func (b *builder) addEnumValue(name, value, position, anchor string) {
	key := strings.ToLower(name)
	e, ok := b.enums[key]
	if !ok {
		e = &EnumMetadata{Name: name}
		b.enums[key] = e
		b.enumOrder = append(b.enumOrder, key)
	}
	if containsValue(e.Values, value) {
		return
	}
	at := len(e.Values)
	if position != "" {
		for i, v := range e.Values {
			if v == anchor {
				at = i
				if position == "AFTER" {
					at = i + 1
				}
				break
			}
		}
	}
	e.Values = append(e.Values, "")
	copy(e.Values[at+1:], e.Values[at:])
	e.Values[at] = value
}

func containsValue(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

// mergeFunction keeps the latest definition; CREATE OR REPLACE semantics.
func (b *builder) mergeFunction(fn *FunctionMetadata) {
	key := strings.ToLower(fn.Name)
	if _, ok := b.functions[key]; !ok {
		b.funcOrder = append(b.funcOrder, key)
	}
	b.functions[key] = fn
}

// mergeLive appends catalog objects the migration files do not define.
// File definitions win for anything present in both.
func (b *builder) mergeLive(live *SchemaExtractionResult) {
	for _, t := range live.Tables {
		if b.table(t.Name) == nil {
			b.mergeTable(t)
		}
	}
	for _, e := range live.Enums {
		if _, ok := b.enums[strings.ToLower(e.Name)]; !ok {
			b.mergeEnum(e)
		}
	}
	for _, fn := range live.Functions {
		if _, ok := b.functions[strings.ToLower(fn.Name)]; !ok {
			b.mergeFunction(fn)
		}
	}
}

// backfill derives column key flags and references from the table's constraints.
func backfill(t *TableMetadata) {
	for _, c := range t.Constraints {
		for i, name := range c.Columns {
			col := t.Column(name)
			if col == nil {
				continue
			}
			switch c.Type {
			case PrimaryKey:
				col.IsPrimaryKey = true
				col.Nullable = false
			case Unique:
				if len(c.Columns) == 1 {
					col.IsUnique = true
				}
			case ForeignKey:
				col.IsForeignKey = true
				if col.References == nil && c.ReferencedTable != "" {
					ref := &Reference{Table: c.ReferencedTable, Column: "id", OnDelete: c.OnDelete, OnUpdate: c.OnUpdate}
					if i < len(c.ReferencedColumns) {
						ref.Column = c.ReferencedColumns[i]
					}
					col.References = ref
				}
			}
		}
	}
}

// result finalises the builder. Actions still waiting for an unknown table
// are reported as warnings.
func (b *builder) result() *SchemaExtractionResult {
	res := &SchemaExtractionResult{}
	for _, key := range b.order {
		t := b.tables[key]
		backfill(t)
		res.Tables = append(res.Tables, t)
	}
	for _, key := range b.enumOrder {
		res.Enums = append(res.Enums, b.enums[key])
	}
	for _, key := range b.funcOrder {
		res.Functions = append(res.Functions, b.functions[key])
	}

	orphans := make([]string, 0, len(b.pending))
	for key := range b.pending {
		orphans = append(orphans, key)
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d statement(s) reference undefined table %q", len(b.pending[key]), key))
	}
	return res
}
