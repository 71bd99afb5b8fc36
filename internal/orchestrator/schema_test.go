package orchestrator

import (
	"reflect"
	"testing"
)

func TestNormalizeParameters(t *testing.T) {
	in := map[string]any{
		"type": "string",
		"properties": map[string]any{
			"siteUrl": map[string]any{"type": "string"},
		},
		"required":    []any{"siteUrl"},
		"description": "kept as-is",
	}
	out := NormalizeParameters(in)

	if out["type"] != "object" {
		t.Errorf("type = %v", out["type"])
	}
	props, ok := out["properties"].(map[string]any)
	if !ok || len(props) != 1 {
		t.Errorf("properties = %v", out["properties"])
	}
	if !reflect.DeepEqual(out["required"], []any{"siteUrl"}) {
		t.Errorf("required = %v", out["required"])
	}
	if out["additionalProperties"] != false {
		t.Errorf("additionalProperties = %v", out["additionalProperties"])
	}
	if out["description"] != "kept as-is" {
		t.Errorf("description = %v", out["description"])
	}
	if in["type"] != "string" {
		t.Error("input schema was mutated")
	}
}

func TestNormalizeParametersLooseInput(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"nil schema", nil},
		{"empty schema", map[string]any{}},
		{"properties is array", map[string]any{"properties": []any{"a", "b"}}},
		{"properties is scalar", map[string]any{"properties": 42}},
		{"required is string", map[string]any{"required": "siteUrl"}},
		{"required is object", map[string]any{"required": map[string]any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NormalizeParameters(tt.params)
			if out["type"] != "object" {
				t.Errorf("type = %v", out["type"])
			}
			if _, ok := out["properties"].(map[string]any); !ok {
				t.Errorf("properties = %v", out["properties"])
			}
			if _, ok := out["required"].([]any); !ok {
				t.Errorf("required = %v", out["required"])
			}
			if out["additionalProperties"] != false {
				t.Errorf("additionalProperties = %v", out["additionalProperties"])
			}
		})
	}
}

func TestNormalizeParametersIdempotent(t *testing.T) {
	in := map[string]any{
		"properties": map[string]any{"url": map[string]any{"type": "string"}},
		"required":   []any{"url"},
	}
	once := NormalizeParameters(in)
	twice := NormalizeParameters(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalization is not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestNormalizeParametersKeepsExplicitAdditionalProperties(t *testing.T) {
	out := NormalizeParameters(map[string]any{"additionalProperties": true})
	if out["additionalProperties"] != true {
		t.Errorf("additionalProperties = %v, want explicit value kept", out["additionalProperties"])
	}
}

func TestAdaptTools(t *testing.T) {
	defs := []ToolDefinition{
		{
			Name:        "listSitemaps",
			Description: "Lists sitemaps for a property",
			Parameters: map[string]any{
				"properties": map[string]any{"siteUrl": map[string]any{"type": "string"}},
				"required":   []any{"siteUrl"},
			},
		},
		{Name: "fetchProjects"},
	}
	tools := AdaptTools(defs)
	if len(tools) != 2 {
		t.Fatalf("len = %d", len(tools))
	}
	if tools[0].Type != "function" || tools[0].Name != "listSitemaps" {
		t.Errorf("tool[0] = %+v", tools[0])
	}
	if tools[0].Description == nil || *tools[0].Description != "Lists sitemaps for a property" {
		t.Errorf("description = %v", tools[0].Description)
	}
	if tools[0].Strict {
		t.Error("strict should be false")
	}
	if tools[1].Description != nil {
		t.Errorf("missing description should map to nil, got %v", *tools[1].Description)
	}
	if tools[1].Parameters["type"] != "object" {
		t.Errorf("parameters not normalized: %v", tools[1].Parameters)
	}
}

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{"empty", "", map[string]any{}, false},
		{"whitespace", "   \n\t", map[string]any{}, false},
		{"object", `{"siteUrl":"https://ex.com"}`, map[string]any{"siteUrl": "https://ex.com"}, false},
		{"empty object", "{}", map[string]any{}, false},
		{"array", `[1,2]`, nil, true},
		{"scalar", `42`, nil, true},
		{"string", `"hi"`, nil, true},
		{"null", `null`, nil, true},
		{"garbage", `{not json`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArguments(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if _, ok := err.(*InvalidArgumentsError); !ok {
					t.Errorf("error type = %T", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
