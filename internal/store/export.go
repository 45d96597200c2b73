// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Format is an export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml", or "json".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "yaml", "yml", "":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (want yaml or json)", s)
}

// Encode writes d to w in the given format.
func Encode(w io.Writer, d Document, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown export format %q", f)
}

// Export writes a stored run to dir/exports/<run-id>.<format> and returns
// the path.
func (s *Store) Export(ctx context.Context, runID string, f Format) (string, error) {
	d, err := s.Load(ctx, runID)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.dir, exportsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating exports directory: %w", err)
	}
	path := filepath.Join(dir, runID+"."+string(f))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export: %w", err)
	}
	if err := Encode(file, d, f); err != nil {
		file.Close()
		return "", err
	}
	return path, file.Close()
}
