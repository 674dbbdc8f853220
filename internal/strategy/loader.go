package strategy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile parses and validates one YAML strategy document. A document that
// fails validation is rejected whole; the returned error carries every
// field-level problem.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML strategy document and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse strategy: %w", err)
	}
	if errs := Validate(&cfg); errs != nil {
		return nil, errs
	}
	return &cfg, nil
}

// LoadDir loads every *.yaml/*.yml document in dir. Invalid documents are
// collected into errs but do not prevent valid ones from loading; the caller
// decides whether partial success is acceptable.
func LoadDir(dir string) (configs []*Config, errs []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read strategy dir %s: %w", dir, err)}
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		cfg, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, errs
}
