// Package smithy loads Smithy JSON AST models and converts them to the IR.
package smithy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Trait ids used by the converter.
const (
	TraitDocumentation = "smithy.api#documentation"
	TraitRequired      = "smithy.api#required"
	TraitSensitive     = "smithy.api#sensitive"
	TraitHTTP          = "smithy.api#http"
	TraitEnum          = "smithy.api#enum"
	TraitEnumValue     = "smithy.api#enumValue"
)

// Model is a Smithy JSON AST document.
type Model struct {
	Smithy   string                     `json:"smithy"`
	Shapes   map[string]*Shape          `json:"shapes"`
	Metadata map[string]json.RawMessage `json:"metadata,omitempty"`
}

// Ref targets another shape by absolute shape id.
type Ref struct {
	Target string `json:"target"`
}

// Member is a structure, union, list or map member.
type Member struct {
	Target string `json:"target"`
	Traits Traits `json:"traits,omitempty"`
}

// NamedMember is a member together with its name.
type NamedMember struct {
	Name string
	Member
}

// Members keeps the declaration order of a shape's members.
type Members []NamedMember

// UnmarshalJSON decodes a members object preserving key order.
func (m *Members) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("members must be an object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var mem Member
		if err := dec.Decode(&mem); err != nil {
			return fmt.Errorf("member %q: %w", name, err)
		}
		*m = append(*m, NamedMember{Name: name, Member: mem})
	}
	_, err = dec.Token()
	return err
}

// Shape is any Smithy shape. Only the fields relevant to its Type are set.
type Shape struct {
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
	Traits  Traits `json:"traits,omitempty"`

	// service and resource
	Operations []Ref `json:"operations,omitempty"`
	Resources  []Ref `json:"resources,omitempty"`

	// resource lifecycle
	Identifiers          map[string]Ref `json:"identifiers,omitempty"`
	Create               *Ref           `json:"create,omitempty"`
	Put                  *Ref           `json:"put,omitempty"`
	Read                 *Ref           `json:"read,omitempty"`
	Update               *Ref           `json:"update,omitempty"`
	Delete               *Ref           `json:"delete,omitempty"`
	List                 *Ref           `json:"list,omitempty"`
	CollectionOperations []Ref          `json:"collectionOperations,omitempty"`

	// operation
	Input  *Ref  `json:"input,omitempty"`
	Output *Ref  `json:"output,omitempty"`
	Errors []Ref `json:"errors,omitempty"`

	// structure, union, enum, intEnum
	Members Members `json:"members,omitempty"`
	// list, set
	Member *Member `json:"member,omitempty"`
	// map
	Key   *Member `json:"key,omitempty"`
	Value *Member `json:"value,omitempty"`
}

// Traits maps trait ids to their raw JSON values.
type Traits map[string]json.RawMessage

// Has reports whether the trait is applied.
func (t Traits) Has(id string) bool {
	_, ok := t[id]
	return ok
}

// String returns a string-valued trait, or "".
func (t Traits) String(id string) string {
	raw, ok := t[id]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// HTTPMethod returns the method of the smithy.api#http trait, or "".
func (t Traits) HTTPMethod() string {
	raw, ok := t[TraitHTTP]
	if !ok {
		return ""
	}
	var h struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(raw, &h); err != nil {
		return ""
	}
	return h.Method
}

// EnumValues returns the values of a Smithy 1.0 smithy.api#enum trait.
func (t Traits) EnumValues() []string {
	raw, ok := t[TraitEnum]
	if !ok {
		return nil
	}
	var defs []struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil
	}
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Value)
	}
	return out
}

// ShapeName returns the name part of an absolute shape id
// ("com.amazonaws.s3#CreateBucket" yields "CreateBucket").
func ShapeName(id string) string {
	if i := strings.LastIndexByte(id, '#'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Parse decodes a Smithy JSON AST document.
func Parse(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid Smithy JSON AST: %w", err)
	}
	if m.Smithy == "" {
		return nil, fmt.Errorf("missing smithy version")
	}
	for id, s := range m.Shapes {
		if s == nil || s.Type == "" {
			return nil, fmt.Errorf("shape %s has no type", id)
		}
	}
	return &m, nil
}
