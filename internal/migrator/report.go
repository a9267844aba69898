package migrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveReport writes the report as indented JSON.
func SaveReport(r *MigrationReport, path string) error {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode migration report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write migration report: %w", err)
	}
	return nil
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (*MigrationReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration report: %w", err)
	}
	r := &MigrationReport{}
	if err := json.Unmarshal(content, r); err != nil {
		return nil, fmt.Errorf("failed to decode migration report %s: %w", path, err)
	}
	return r, nil
}
