package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SaveSchema writes the result as YAML when path ends in .yaml/.yml and as
// indented JSON otherwise.
func SaveSchema(res *SchemaExtractionResult, path string) error {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		out, err = yaml.Marshal(res)
	default:
		out, err = json.MarshalIndent(res, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return nil
}

// LoadSchema reads a file written by SaveSchema.
func LoadSchema(path string) (*SchemaExtractionResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	res := &SchemaExtractionResult{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, res)
	default:
		err = json.Unmarshal(content, res)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return res, nil
}
