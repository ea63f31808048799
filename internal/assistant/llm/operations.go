// internal/assistant/llm/operations.go
package llm

import (
	"time"

	"fiscal-assistant/internal/common/validation"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/intent"
	"fiscal-assistant/pkg/registry"
)

// Function is a callable operation described to the model.
type Function struct {
	Name        string
	Description string
	Intent      models.Intent
	Schema      validation.JSONSchema
	ReadOnly    bool
}

var minAmount = 0.01

// Operations derives the model catalog from the intent rules, so the deterministic and
// model paths always share one operation set.
func Operations(rules []intent.Rule) []Function {
	var out []Function
	for _, r := range rules {
		if r.Operation == "" {
			continue
		}
		closed := false
		schema := validation.JSONSchema{
			Type:                 "object",
			Description:          r.Description,
			Properties:           make(map[string]validation.Property, len(r.Parameters)),
			AdditionalProperties: &closed,
		}
		for _, p := range r.Parameters {
			prop := validation.Property{Type: p.Type, Description: p.Description, Enum: p.Enum}
			if p.Type == "number" {
				prop.Minimum = &minAmount
			}
			schema.Properties[p.Name] = prop
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		out = append(out, Function{
			Name:        r.Operation,
			Description: r.Description,
			Intent:      r.Intent,
			Schema:      schema,
			ReadOnly:    r.ReadOnly,
		})
	}
	return out
}

// Registry renders functions as the published operation registry.
func Registry(functions []Function, version string, now time.Time) (*registry.OperationRegistry, error) {
	reg := &registry.OperationRegistry{Version: version, LastUpdated: now.UTC().Format(time.RFC3339)}
	for _, f := range functions {
		if err := validation.ValidateOperationName(f.Name); err != nil {
			return nil, err
		}
		params, err := f.Schema.ToMap()
		if err != nil {
			return nil, err
		}
		reg.Operations = append(reg.Operations, registry.Operation{
			Name:                 f.Name,
			Intent:               string(f.Intent),
			Description:          f.Description,
			Parameters:           params,
			ReadOnly:             f.ReadOnly,
			RequiresConfirmation: !f.ReadOnly,
		})
	}
	return reg, nil
}
