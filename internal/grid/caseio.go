package grid

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadCase reads a YAML case file.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse case %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCase writes a case as YAML.
func SaveCase(path string, c *Case) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve returns a bundled case by name, or loads a case file if name is
// not bundled.
func Resolve(name string) (*Case, error) {
	if c, ok := Cases[name]; ok {
		return c, nil
	}
	if _, err := os.Stat(name); err == nil {
		return LoadCase(name)
	}
	return nil, fmt.Errorf("unknown case %q (bundled: %v)", name, CaseNames())
}
