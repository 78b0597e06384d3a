package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"htbnerd/internal/logging"
)

// File is the YAML shape of a user rules file.
type File struct {
	General []string `yaml:"general"`
	Rules   []Rule   `yaml:"rules"`
}

// Parse decodes a YAML rules document. Unknown fields are rejected so that
// typos in a rules file fail loudly at startup.
func Parse(data []byte) (*Catalog, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return NewCatalog(f.Rules, f.General)
}

// LoadFile reads a YAML rules file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Load returns the built-in catalog, extended with the rules in path when
// path is non-empty.
func Load(path string) (*Catalog, error) {
	base := Default()
	if path == "" {
		return base, nil
	}
	extra, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	logging.Config("rules: %d built-in, %d from %s", base.Len(), extra.Len(), path)
	return base.Extend(extra)
}
