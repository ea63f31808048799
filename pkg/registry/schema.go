// pkg/registry/schema.go
package registry

// OperationRegistry is the published catalog of operations the language model may call.
type OperationRegistry struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated"`
	Operations  []Operation `json:"operations"`
}

// Operation is one callable operation with its JSON Schema parameters.
type Operation struct {
	Name                 string                 `json:"name"`
	Intent               string                 `json:"intent"`
	Description          string                 `json:"description"`
	Parameters           map[string]interface{} `json:"parameters"`
	ReadOnly             bool                   `json:"readOnly"`
	RequiresConfirmation bool                   `json:"requiresConfirmation"`
}
