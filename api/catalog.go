package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is an ordered list of alias specs, as parsed from a JSON or YAML
// document.
type Catalog []ModelAliasSpec

// Validate validates every spec in the catalog and additionally rejects
// duplicate aliases, since two specs sharing an alias make resolution
// ambiguous.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c))
	for _, spec := range c {
		if err := spec.Validate(); err != nil {
			return err
		}
		if seen[spec.Alias] {
			return fmt.Errorf("config: duplicate alias %q", spec.Alias)
		}
		seen[spec.Alias] = true
	}
	return nil
}

// CatalogFromString parses a catalog document. format must be "json" or
// "yaml"/"yml".
func CatalogFromString(data string, format string) (Catalog, error) {
	var cat Catalog
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal([]byte(data), &cat); err != nil {
			return nil, fmt.Errorf("config: parsing catalog json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal([]byte(data), &cat); err != nil {
			return nil, fmt.Errorf("config: parsing catalog yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("config: unknown catalog format %q", format)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// CatalogFromFile reads and parses a catalog document, inferring the format
// from the file extension (.json, .yaml, .yml).
func CatalogFromFile(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading catalog file %s: %w", path, err)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = "json"
	}
	return CatalogFromString(string(raw), ext)
}
