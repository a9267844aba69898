package schema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"db-shift/internal/dialect"

	"github.com/sirupsen/logrus"
)

// DefaultSearchPaths are the directories scanned for *.sql migration files.
var DefaultSearchPaths = []string{"supabase/migrations", "migrations", "db/migrations"}

var (
	// ErrNoMigrationFiles is returned when no *.sql file exists on the search
	// path and there is no live connection to fall back on.
	ErrNoMigrationFiles = errors.New("no migration files found")
	// ErrNoLiveConnection is returned by operations that need a catalog.
	ErrNoLiveConnection = errors.New("no live database connection")
)

// LiveSource is a database to introspect alongside the migration files.
type LiveSource struct {
	DB      Querier
	Dialect dialect.Dialect
	Schema  string
}

// Extractor builds a SchemaExtractionResult from migration files and,
// optionally, the live catalog.
type Extractor struct {
	Log *logrus.Entry
}

// NewExtractor returns an extractor logging through log, or the standard logger when nil.
func NewExtractor(log *logrus.Entry) *Extractor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Extractor{Log: log.WithField("component", "schema")}
}

// ExtractSchema parses every migration file found under sourcePaths (the
// defaults when empty) in lexicographic order, then merges the live catalog
// when live is non-nil. File definitions win over catalog ones.
//
// Parse failures are fatal. Catalog failures are logged and recorded as a
// warning; the result then only reflects the files.
func (e *Extractor) ExtractSchema(ctx context.Context, sourcePaths []string, live *LiveSource) (*SchemaExtractionResult, error) {
	if len(sourcePaths) == 0 {
		sourcePaths = DefaultSearchPaths
	}
	files, err := FindMigrationFiles(sourcePaths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 && live == nil {
		return nil, fmt.Errorf("%w in %s", ErrNoMigrationFiles, strings.Join(sourcePaths, ", "))
	}
	e.Log.WithField("files", len(files)).Info("Parsing migration files")

	b := newBuilder()
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		if err := b.applyScript(f, string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse migration: %w", err)
		}
		e.Log.WithField("file", f).Debug("Parsed migration file")
	}

	var liveWarning, version string
	if live != nil {
		catalog, err := Introspect(ctx, live.DB, live.Dialect, live.Schema)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.Log.WithError(err).Warn("Live introspection failed, continuing with migration files only")
			liveWarning = err.Error()
		} else {
			b.mergeLive(catalog)
			version = catalog.CatalogVersion
		}
	}

	res := b.result()
	res.MigrationFiles = files
	res.ExtractedAt = time.Now().UTC()
	res.CatalogVersion = version
	if liveWarning != "" {
		res.Warnings = append(res.Warnings, liveWarning)
	}
	for _, w := range res.Warnings {
		e.Log.Warn(w)
	}
	e.Log.WithFields(logrus.Fields{
		"tables":    len(res.Tables),
		"enums":     len(res.Enums),
		"functions": len(res.Functions),
	}).Info("Schema extracted")
	return res, nil
}

// ParseSQL builds a schema from a single script. It is the file half of
// ExtractSchema, for callers that already hold the SQL text.
func ParseSQL(sql string) (*SchemaExtractionResult, error) {
	b := newBuilder()
	if err := b.applyScript("inline", sql); err != nil {
		return nil, err
	}
	return b.result(), nil
}

// FindMigrationFiles returns every *.sql file under the given directories,
// sorted lexicographically by base name and then path. Missing directories are skipped.
func FindMigrationFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", root, err)
		}
		if !info.IsDir() {
			if strings.EqualFold(filepath.Ext(root), ".sql") && !seen[root] {
				seen[root] = true
				files = append(files, root)
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".sql") || seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		bi, bj := filepath.Base(files[i]), filepath.Base(files[j])
		if bi != bj {
			return bi < bj
		}
		return files[i] < files[j]
	})
	return files, nil
}
