package fixture

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"db-shift/internal/dialect"
	"db-shift/internal/schema"

	"github.com/sirupsen/logrus"
)

// Result of seeding one table.
type Result struct {
	Table     string `json:"table"`
	Requested int    `json:"requested"`
	Inserted  int    `json:"inserted"`
	Error     string `json:"error,omitempty"`
}

// OK reports whether every requested row was inserted.
func (r Result) OK() bool { return r.Error == "" && r.Inserted == r.Requested }

// Seeder inserts generated rows into tables given in dependency order.
type Seeder struct {
	DB      dialect.Conn
	Dialect dialect.Dialect
	Gen     *Generator
	Log     *logrus.Entry
	// OnRow is called after every inserted row.
	OnRow func()
}

// Seed inserts count rows per table. Parents must precede children in
// tables; key values of each seeded table are read back so later tables can
// reference them. Duplicates are skipped and retried up to ten times the count.
func (s *Seeder) Seed(ctx context.Context, tables []*schema.TableMetadata, count int) ([]Result, error) {
	log := s.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "fixture")

	parents := make(map[string][]any)
	results := make([]Result, 0, len(tables))
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := s.seedTable(ctx, t, count, parents, log)
		results = append(results, res)

		keys, err := s.keys(ctx, t)
		if err != nil {
			log.WithError(err).WithField("table", t.Name).Warn("Failed to read keys back")
			continue
		}
		parents[strings.ToLower(t.Name)] = keys
	}
	return results, nil
}

func (s *Seeder) seedTable(ctx context.Context, t *schema.TableMetadata, count int, parents map[string][]any, log *logrus.Entry) Result {
	// Identity columns are never generated, so no IDENTITY_INSERT hooks are needed.
	res := Result{Table: t.Name, Requested: count}
	key := keyName(t)
	var lastErr error
	for attempt := 0; res.Inserted < count && attempt < count*10; attempt++ {
		if ctx.Err() != nil {
			break
		}
		row, ok := s.Gen.Row(t, parents, attempt)
		if !ok {
			lastErr = fmt.Errorf("no parent rows for a required reference")
			break
		}
		cols := sortedKeys(row)
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = row[c]
		}
		r, err := s.DB.ExecContext(ctx, s.Dialect.UpsertQuery(t.Name, cols, 1, key, dialect.ConflictSkip), args...)
		if err != nil {
			lastErr = err
			log.WithError(err).WithField("table", t.Name).Debug("Insert failed")
			continue
		}
		if n, err := r.RowsAffected(); err == nil && n == 0 {
			continue
		}
		res.Inserted++
		if s.OnRow != nil {
			s.OnRow()
		}
	}
	if res.Inserted < count && lastErr != nil {
		res.Error = lastErr.Error()
	}
	return res
}

func (s *Seeder) keys(ctx context.Context, t *schema.TableMetadata) ([]any, error) {
	key := keyName(t)
	if t.Column(key) == nil {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, dialect.OrderedSelectQuery(s.Dialect, t.Name, []string{key}))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	all, err := dialect.ScanMaps(rows)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(all))
	for _, r := range all {
		for k, v := range r {
			if strings.EqualFold(k, key) {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func keyName(t *schema.TableMetadata) string {
	if pk := t.PrimaryKey(); len(pk) == 1 {
		return pk[0]
	}
	return "id"
}

func sortedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
