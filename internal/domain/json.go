package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JSON serialization support for FieldType.
// Every variant carries a "kind" field for type discrimination; the other
// IR records use their plain struct encoding.

// MarshalJSON implements json.Marshaler for ScalarType.
func (t *ScalarType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Kind TypeKind `json:"kind"`
	}{Kind: t.Of})
}

// MarshalJSON implements json.Marshaler for ListType.
func (t *ListType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Kind    TypeKind  `json:"kind"`
		Element FieldType `json:"element"`
	}{Kind: KindList, Element: t.Element})
}

// MarshalJSON implements json.Marshaler for MapType.
func (t *MapType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Kind  TypeKind  `json:"kind"`
		Key   FieldType `json:"key"`
		Value FieldType `json:"value"`
	}{Kind: KindMap, Key: t.Key, Value: t.Value})
}

// MarshalJSON implements json.Marshaler for EnumType.
func (t *EnumType) MarshalJSON() ([]byte, error) {
	variants := t.Variants
	if variants == nil {
		variants = []string{}
	}
	return json.Marshal(&struct {
		Kind     TypeKind `json:"kind"`
		Variants []string `json:"variants"`
	}{Kind: KindEnum, Variants: variants})
}

// MarshalJSON implements json.Marshaler for ObjectType.
func (t *ObjectType) MarshalJSON() ([]byte, error) {
	members := t.Members
	if members == nil {
		members = []ObjectMember{}
	}
	return json.Marshal(&struct {
		Kind    TypeKind       `json:"kind"`
		Members []ObjectMember `json:"members"`
	}{Kind: KindObject, Members: members})
}

type fieldTypeWire struct {
	Kind     TypeKind        `json:"kind"`
	Element  json.RawMessage `json:"element,omitempty"`
	Key      json.RawMessage `json:"key,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Variants []string        `json:"variants,omitempty"`
	Members  []ObjectMember  `json:"members,omitempty"`
}

// ErrUnknownTypeKind is returned when decoding a FieldType with an
// unrecognised "kind".
var ErrUnknownTypeKind = errors.New("unknown field type kind")

// UnmarshalFieldType decodes the tagged-union encoding of a FieldType.
func UnmarshalFieldType(data []byte) (FieldType, error) {
	var w fieldTypeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode field type: %w", err)
	}
	switch w.Kind {
	case KindString, KindInteger, KindBoolean, KindFloat, KindDateTime:
		return &ScalarType{Of: w.Kind}, nil
	case KindList:
		elem, err := UnmarshalFieldType(w.Element)
		if err != nil {
			return nil, fmt.Errorf("list element: %w", err)
		}
		return &ListType{Element: elem}, nil
	case KindMap:
		key, err := UnmarshalFieldType(w.Key)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		value, err := UnmarshalFieldType(w.Value)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		return &MapType{Key: key, Value: value}, nil
	case KindEnum:
		return &EnumType{Variants: w.Variants}, nil
	case KindObject:
		return &ObjectType{Members: w.Members}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTypeKind, w.Kind)
}

// UnmarshalJSON implements json.Unmarshaler for ObjectMember.
func (m *ObjectMember) UnmarshalJSON(data []byte) error {
	type Alias ObjectMember
	aux := &struct {
		Type json.RawMessage `json:"type"`
		*Alias
	}{Alias: (*Alias)(m)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	t, err := UnmarshalFieldType(aux.Type)
	if err != nil {
		return fmt.Errorf("member %q: %w", m.Name, err)
	}
	m.Type = t
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for FieldDefinition.
func (f *FieldDefinition) UnmarshalJSON(data []byte) error {
	type Alias FieldDefinition
	aux := &struct {
		Type json.RawMessage `json:"field_type"`
		*Alias
	}{Alias: (*Alias)(f)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	t, err := UnmarshalFieldType(aux.Type)
	if err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	f.Type = t
	return nil
}
