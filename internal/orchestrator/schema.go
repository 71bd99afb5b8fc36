package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/siteagent/siteagent/internal/llm"
)

// ToolDefinition is a tool as stored in a plugin catalog: a name, an
// optional description and a loose JSON-schema parameters object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// AdaptTools converts a plugin catalog into the function-tool list the
// Responses API accepts. Parameter schemas are normalized; nothing fails,
// malformed schemas are coerced.
func AdaptTools(defs []ToolDefinition) []llm.FunctionTool {
	tools := make([]llm.FunctionTool, len(defs))
	for i, def := range defs {
		var desc *string
		if def.Description != "" {
			d := def.Description
			desc = &d
		}
		tools[i] = llm.FunctionTool{
			Type:        "function",
			Name:        def.Name,
			Parameters:  NormalizeParameters(def.Parameters),
			Description: desc,
			Strict:      false,
		}
	}
	return tools
}

// NormalizeParameters forces a parameters schema into the strict object
// shape the Responses API requires. Plugin authors supply loose schemas;
// the API rejects anything that is not a closed object. Normalization is
// idempotent: type becomes "object", properties defaults to an empty
// object, required to an empty array, additionalProperties to false, and
// every other key is preserved.
func NormalizeParameters(params map[string]any) map[string]any {
	schema := make(map[string]any, len(params)+4)
	for k, v := range params {
		schema[k] = v
	}

	schema["type"] = "object"

	if props, ok := schema["properties"].(map[string]any); ok {
		schema["properties"] = props
	} else {
		schema["properties"] = map[string]any{}
	}

	switch req := schema["required"].(type) {
	case []any:
		schema["required"] = req
	case []string:
		schema["required"] = req
	default:
		schema["required"] = []any{}
	}

	if _, ok := schema["additionalProperties"]; !ok {
		schema["additionalProperties"] = false
	}

	return schema
}

// ParseArguments decodes the JSON arguments string of a function call.
// A blank string parses to an empty object; any JSON value other than an
// object is an *InvalidArgumentsError.
func ParseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, &InvalidArgumentsError{Reason: err.Error()}
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, &InvalidArgumentsError{Reason: "function arguments must be a JSON object"}
	}
	return obj, nil
}
