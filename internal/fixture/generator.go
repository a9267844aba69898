// Package fixture fills databases with generated rows so migrations can be
// rehearsed and tested without production data.
package fixture

import (
	"fmt"
	"strings"
	"time"

	"db-shift/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Generator produces column values from a column's declared type and the
// meaning decoded from its name. A fixed seed gives repeatable data.
type Generator struct {
	faker *gofakeit.Faker
	seq   map[string]int64
}

func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed), seq: make(map[string]int64)}
}

// Row builds one row for t. parents supplies existing key values per
// referenced table; ok is false when a NOT NULL foreign key has no parent.
func (g *Generator) Row(t *schema.TableMetadata, parents map[string][]any, index int) (row map[string]any, ok bool) {
	row = make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		if c.IsIdentity {
			continue
		}
		if c.References != nil && !strings.EqualFold(c.References.Table, t.Name) {
			pool := parents[strings.ToLower(c.References.Table)]
			switch {
			case len(pool) > 0:
				row[c.Name] = pool[index%len(pool)]
			case c.Nullable:
				row[c.Name] = nil
			default:
				return nil, false
			}
			continue
		}
		if c.References != nil {
			// self reference: leave roots empty
			row[c.Name] = nil
			if !c.Nullable {
				return nil, false
			}
			continue
		}
		row[c.Name] = g.Value(t.Name, c)
	}
	return row, true
}

// Value generates a value for a single non-reference column.
func (g *Generator) Value(table string, c *schema.ColumnMetadata) any {
	typ := strings.ToLower(c.Type)
	name := strings.ToLower(c.Name)
	meaning := schema.DecodeFieldName(name)

	if c.IsPrimaryKey || name == "id" {
		return g.key(table, typ)
	}
	if schema.IsTimestampField(name) || strings.Contains(typ, "date") || strings.Contains(typ, "time") {
		return g.timestamp(typ)
	}

	switch {
	case isText(typ):
		return g.text(name, meaning, c.IsUnique)
	case strings.Contains(typ, "bool") || typ == "bit":
		return g.faker.Bool()
	case strings.Contains(typ, "int"):
		if strings.HasPrefix(name, "is_") || strings.Contains(name, "active") || strings.Contains(name, "enabled") {
			return int64(g.faker.Number(0, 1))
		}
		if strings.Contains(meaning, "year") {
			return int64(g.faker.Number(2000, 2025))
		}
		if c.IsUnique {
			return g.next(table + "." + name)
		}
		return int64(g.faker.Number(1, 50000))
	case strings.Contains(typ, "dec") || strings.Contains(typ, "num") ||
		strings.Contains(typ, "real") || strings.Contains(typ, "float") || strings.Contains(typ, "double"):
		return g.faker.Price(0.99, 999.99)
	case strings.Contains(typ, "json"):
		return fmt.Sprintf(`{"source":"fixture","value":%d}`, g.faker.Number(1, 1000))
	case strings.Contains(typ, "blob") || strings.Contains(typ, "binary") || strings.Contains(typ, "bytea"):
		return []byte(g.faker.LetterN(8))
	}
	return g.text(name, meaning, c.IsUnique)
}

func isText(typ string) bool {
	for _, s := range []string{"char", "text", "string", "uuid", "clob"} {
		if strings.Contains(typ, s) {
			return true
		}
	}
	return typ == ""
}

func (g *Generator) key(table, typ string) any {
	if strings.Contains(typ, "int") || strings.Contains(typ, "serial") || strings.Contains(typ, "number") {
		return g.next(table)
	}
	id, err := uuid.NewRandomFromReader(g.faker.Rand)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (g *Generator) next(counter string) int64 {
	g.seq[counter]++
	return g.seq[counter]
}

func (g *Generator) timestamp(typ string) string {
	t := g.faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()).UTC()
	if typ == "date" {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

func (g *Generator) text(name, meaning string, unique bool) string {
	var s string
	switch {
	case strings.Contains(meaning, "email"):
		s = g.faker.Email()
	case strings.Contains(meaning, "phone"):
		s = g.faker.Phone()
	case strings.Contains(meaning, "first") && strings.Contains(meaning, "name"):
		s = g.faker.FirstName()
	case strings.Contains(meaning, "last") && strings.Contains(meaning, "name"):
		s = g.faker.LastName()
	case strings.Contains(meaning, "name"):
		s = g.faker.Name()
	case strings.Contains(meaning, "address"):
		s = g.faker.Street()
	case strings.Contains(meaning, "city"):
		s = g.faker.City()
	case strings.Contains(meaning, "country"):
		s = g.faker.Country()
	case strings.Contains(meaning, "zip") || strings.Contains(meaning, "postal"):
		s = g.faker.Zip()
	case strings.Contains(meaning, "status"):
		s = g.faker.RandomString([]string{"active", "inactive", "pending"})
	case strings.Contains(meaning, "description") || strings.Contains(meaning, "comment") ||
		strings.Contains(meaning, "content") || strings.Contains(meaning, "message"):
		s = g.faker.Sentence(8)
	default:
		s = g.faker.Word()
	}
	if unique {
		s = fmt.Sprintf("%s-%d", s, g.next("unique."+name))
	}
	return s
}
