// Package discovery compiles Google API discovery documents.
package discovery

import (
	"encoding/json"
	"fmt"

	discoveryapi "google.golang.org/api/discovery/v1"
)

// Parse decodes a discovery document. Schema-level "required" name lists,
// which some documents carry in JSON Schema style, are folded into the
// per-property required flag the discovery model declares.
func Parse(data []byte) (*discoveryapi.RestDescription, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid discovery document: %w", err)
	}
	if schemas, ok := raw["schemas"].(map[string]any); ok {
		for _, s := range schemas {
			foldRequired(s)
		}
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode discovery document: %w", err)
	}

	var doc discoveryapi.RestDescription
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("invalid discovery document: %w", err)
	}
	return &doc, nil
}

func foldRequired(node any) {
	schema, ok := node.(map[string]any)
	if !ok {
		return
	}
	props, _ := schema["properties"].(map[string]any)
	if names, ok := schema["required"].([]any); ok {
		delete(schema, "required")
		for _, n := range names {
			name, ok := n.(string)
			if !ok {
				continue
			}
			if prop, ok := props[name].(map[string]any); ok {
				prop["required"] = true
			}
		}
	}
	for _, p := range props {
		foldRequired(p)
	}
	foldRequired(schema["items"])
	foldRequired(schema["additionalProperties"])
}
