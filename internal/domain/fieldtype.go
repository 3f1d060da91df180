package domain

import (
	"strings"
)

// TypeKind discriminates the FieldType variants.
type TypeKind string

const (
	KindString   TypeKind = "string"
	KindInteger  TypeKind = "integer"
	KindBoolean  TypeKind = "boolean"
	KindFloat    TypeKind = "float"
	KindDateTime TypeKind = "datetime"
	KindList     TypeKind = "list"
	KindMap      TypeKind = "map"
	KindEnum     TypeKind = "enum"
	KindObject   TypeKind = "object"
)

// FieldType is the closed sum type of IR attribute types. The set of
// implementations is fixed to the types in this file.
type FieldType interface {
	Kind() TypeKind
	String() string
	fieldType()
}

// ScalarType is one of String, Integer, Boolean, Float or DateTime.
type ScalarType struct {
	Of TypeKind
}

// ListType is an ordered collection of Element.
type ListType struct {
	Element FieldType
}

// MapType is a dictionary from Key to Value.
type MapType struct {
	Key   FieldType
	Value FieldType
}

// EnumType is a string with a closed, ordered set of variants.
type EnumType struct {
	Variants []string
}

// ObjectType is a structured value. Members keep source order.
type ObjectType struct {
	Members []ObjectMember
}

// ObjectMember is one named member of an ObjectType.
type ObjectMember struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

func (*ScalarType) fieldType() {}
func (*ListType) fieldType()   {}
func (*MapType) fieldType()    {}
func (*EnumType) fieldType()   {}
func (*ObjectType) fieldType() {}

func (t *ScalarType) Kind() TypeKind { return t.Of }
func (*ListType) Kind() TypeKind     { return KindList }
func (*MapType) Kind() TypeKind      { return KindMap }
func (*EnumType) Kind() TypeKind     { return KindEnum }
func (*ObjectType) Kind() TypeKind   { return KindObject }

func (t *ScalarType) String() string { return string(t.Of) }
func (t *ListType) String() string   { return "list(" + t.Element.String() + ")" }
func (t *MapType) String() string {
	return "map(" + t.Key.String() + ", " + t.Value.String() + ")"
}
func (t *EnumType) String() string { return "enum(" + strings.Join(t.Variants, "|") + ")" }
func (t *ObjectType) String() string {
	parts := make([]string, len(t.Members))
	for i, m := range t.Members {
		parts[i] = m.Name + ": " + m.Type.String()
	}
	return "object{" + strings.Join(parts, ", ") + "}"
}

// String returns the String scalar type.
func String() FieldType { return &ScalarType{Of: KindString} }

// Integer returns the Integer scalar type.
func Integer() FieldType { return &ScalarType{Of: KindInteger} }

// Boolean returns the Boolean scalar type.
func Boolean() FieldType { return &ScalarType{Of: KindBoolean} }

// Float returns the Float scalar type.
func Float() FieldType { return &ScalarType{Of: KindFloat} }

// DateTime returns the DateTime scalar type.
func DateTime() FieldType { return &ScalarType{Of: KindDateTime} }

// List returns List(elem).
func List(elem FieldType) FieldType { return &ListType{Element: elem} }

// Map returns Map(key, value).
func Map(key, value FieldType) FieldType { return &MapType{Key: key, Value: value} }

// Enum returns Enum(variants...).
func Enum(variants ...string) FieldType { return &EnumType{Variants: variants} }

// Object returns Object(members...).
func Object(members ...ObjectMember) FieldType { return &ObjectType{Members: members} }

// Fallback is the type substituted when a field's real type cannot be
// determined or safely resolved.
func Fallback() FieldType { return String() }

// IsComposite reports whether t is a List, Map or Object.
func IsComposite(t FieldType) bool {
	switch t.(type) {
	case *ListType, *MapType, *ObjectType:
		return true
	}
	return false
}

// EqualTypes reports whether a and b describe the same type.
func EqualTypes(a, b FieldType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch at := a.(type) {
	case *ScalarType:
		return true
	case *ListType:
		return EqualTypes(at.Element, b.(*ListType).Element)
	case *MapType:
		bt := b.(*MapType)
		return EqualTypes(at.Key, bt.Key) && EqualTypes(at.Value, bt.Value)
	case *EnumType:
		bt := b.(*EnumType)
		if len(at.Variants) != len(bt.Variants) {
			return false
		}
		for i := range at.Variants {
			if at.Variants[i] != bt.Variants[i] {
				return false
			}
		}
		return true
	case *ObjectType:
		bt := b.(*ObjectType)
		if len(at.Members) != len(bt.Members) {
			return false
		}
		for i := range at.Members {
			if at.Members[i].Name != bt.Members[i].Name || !EqualTypes(at.Members[i].Type, bt.Members[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}
