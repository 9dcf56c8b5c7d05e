package llm

// Schema is the subset of JSON Schema used to describe tool parameters and
// structured model output. Every provider adapter translates it into its
// own SDK type.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`

	// AdditionalProperties=false forbids keys outside Properties.
	AdditionalProperties *bool `json:"additionalProperties,omitempty"`

	// Coerce marks a scalar that may arrive as a numeric-like string;
	// validation accepts it and the handler converts it. Local only.
	Coerce bool `json:"-"`
}

// ToMap renders the schema as a generic JSON object, the shape most SDKs
// accept for free-form parameter definitions.
func (s *Schema) ToMap() map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": s.Type}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": s.Type}
	}
	if s.Type == "object" {
		if _, ok := out["properties"]; !ok {
			out["properties"] = map[string]any{}
		}
	}
	return out
}

// Tool is the description of a capability the model may request.
type Tool interface {
	Name() string
	Description() string
	Parameters() *Schema
}

// ToolSpec is a plain-data Tool, used when sending the catalog to a provider.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  *Schema
}

// SpecOf snapshots a Tool into a ToolSpec.
func SpecOf(t Tool) ToolSpec {
	return ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
}

// ResponseFormat requests output constrained to a named JSON schema.
type ResponseFormat struct {
	Name        string
	Description string
	Schema      *Schema
	Strict      bool
}

// Bool returns a pointer to b, for optional schema flags.
func Bool(b bool) *bool {
	return &b
}
