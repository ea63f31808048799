// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/xeipuuv/gojsonschema"
)

var operationName = regexp.MustCompile(`^[a-z]+(?:_[a-z]+)*$`)

func LoadRegistry(path string) (*OperationRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg OperationRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// SaveRegistry writes reg as indented JSON, creating the directory when needed.
func SaveRegistry(reg *OperationRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find returns the operation called name.
func (r *OperationRegistry) Find(name string) (Operation, bool) {
	for _, op := range r.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Validate checks names, duplicates and that every parameter schema compiles.
func (r *OperationRegistry) Validate() error {
	if len(r.Operations) == 0 {
		return fmt.Errorf("registry contains no operations")
	}
	seen := make(map[string]bool, len(r.Operations))
	for _, op := range r.Operations {
		if !operationName.MatchString(op.Name) {
			return fmt.Errorf("operation name must be snake_case: %q", op.Name)
		}
		if seen[op.Name] {
			return fmt.Errorf("duplicate operation: %s", op.Name)
		}
		seen[op.Name] = true

		if op.Intent == "" {
			return fmt.Errorf("operation %s missing required field: intent", op.Name)
		}
		if op.ReadOnly && op.RequiresConfirmation {
			return fmt.Errorf("operation %s is read-only but requires confirmation", op.Name)
		}
		if op.Parameters["type"] != "object" {
			return fmt.Errorf("operation %s parameters must be an object schema", op.Name)
		}
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(op.Parameters)); err != nil {
			return fmt.Errorf("operation %s has an invalid parameter schema: %w", op.Name, err)
		}
	}
	return nil
}
