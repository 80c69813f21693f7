// Package extract runs LLM-driven field extraction over parsed sources
// and emits raw fields with citation candidates for resolution.
package extract

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schema describes what to extract, grouped by category.
type Schema struct {
	Categories []Category `yaml:"categories"`
}

// Category is a named group of fields.
type Category struct {
	Name   string      `yaml:"name"`
	Fields []FieldSpec `yaml:"fields"`
}

// FieldSpec describes a single field to extract.
type FieldSpec struct {
	ID          string `yaml:"id"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
	Category    string `yaml:"-"`
}

// LoadSchema reads and validates a YAML schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) validate() error {
	if len(s.Categories) == 0 {
		return fmt.Errorf("schema has no categories")
	}
	seen := make(map[string]bool)
	for _, cat := range s.Categories {
		for _, f := range cat.Fields {
			if f.ID == "" {
				return fmt.Errorf("schema category %q has a field without an id", cat.Name)
			}
			if seen[f.ID] {
				return fmt.Errorf("schema has duplicate field id %q", f.ID)
			}
			seen[f.ID] = true
			if f.Label == "" {
				return fmt.Errorf("schema field %q has no label", f.ID)
			}
		}
	}
	return nil
}

// Flatten returns all field specs as a single list with their category
// names filled in, in schema order.
func (s *Schema) Flatten() []FieldSpec {
	var specs []FieldSpec
	for _, cat := range s.Categories {
		for _, f := range cat.Fields {
			f.Category = cat.Name
			specs = append(specs, f)
		}
	}
	return specs
}

// promptList renders the flattened fields as the bullet list embedded
// in the extraction prompt.
func promptList(specs []FieldSpec) string {
	var b strings.Builder
	for _, f := range specs {
		fmt.Fprintf(&b, "- %s (%s)", f.ID, f.Label)
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
