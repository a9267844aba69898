package schema

import (
	"fmt"
	"strings"
)

// SchemaValidation is the outcome of ValidateExtractedSchema.
type SchemaValidation struct {
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

// Valid reports whether no errors were found.
func (v *SchemaValidation) Valid() bool { return len(v.Errors) == 0 }

// ValidateExtractedSchema warns about missing essential tables and enums and
// reports foreign keys that point at tables the schema does not define.
func ValidateExtractedSchema(res *SchemaExtractionResult, essentialTables, essentialEnums []string) *SchemaValidation {
	v := &SchemaValidation{}
	for _, name := range essentialTables {
		if res.Table(name) == nil {
			v.Warnings = append(v.Warnings, fmt.Sprintf("essential table %q not found", name))
		}
	}
	for _, name := range essentialEnums {
		if res.Enum(name) == nil {
			v.Warnings = append(v.Warnings, fmt.Sprintf("essential enum %q not found", name))
		}
	}

	for _, t := range res.Tables {
		reported := make(map[string]bool)
		check := func(col, ref string) {
			if ref == "" || res.Table(ref) != nil {
				return
			}
			key := strings.ToLower(col + "->" + ref)
			if reported[key] {
				return
			}
			reported[key] = true
			v.Errors = append(v.Errors, fmt.Sprintf("%s.%s references unknown table %q", t.Name, col, ref))
		}
		for _, c := range t.Columns {
			if c.References != nil {
				check(c.Name, c.References.Table)
			}
		}
		for _, c := range t.Constraints {
			if c.Type == ForeignKey {
				check(strings.Join(c.Columns, ","), c.ReferencedTable)
			}
		}
	}
	return v
}
