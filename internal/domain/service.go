package domain

// ServiceDefinition is the root of the intermediate representation. One is
// built per conversion run and is not modified afterwards.
type ServiceDefinition struct {
	Provider    Provider               `json:"provider" validate:"required,oneof=aws gcp azure kubernetes"`
	Name        string                 `json:"name" validate:"required"`
	SDKVersion  string                 `json:"sdk_version"`
	Resources   []ResourceDefinition   `json:"resources" validate:"dive"`
	DataSources []DataSourceDefinition `json:"data_sources" validate:"dive"`
}

// ResourceDefinition describes one CRUD-managed resource.
//
// A ResourceDefinition without any of create/read/update/delete is a valid
// value, but converters never emit one.
type ResourceDefinition struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description,omitempty"`
	Fields      []FieldDefinition `json:"fields" validate:"dive"`
	Outputs     []FieldDefinition `json:"outputs" validate:"dive"`
	Blocks      []BlockDefinition `json:"blocks,omitempty" validate:"dive"`
	IDField     string            `json:"id_field,omitempty"`
	Operations  Operations        `json:"operations"`
}

// HasCRUD reports whether at least one of create/read/update/delete is bound.
func (r *ResourceDefinition) HasCRUD() bool {
	return r.Operations.Create != nil || r.Operations.Read != nil ||
		r.Operations.Update != nil || r.Operations.Delete != nil
}

// DataSourceDefinition is the read-only variant of a resource.
type DataSourceDefinition struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description,omitempty"`
	Arguments   []FieldDefinition `json:"arguments" validate:"dive"`
	Attributes  []FieldDefinition `json:"attributes" validate:"dive"`
	Read        OperationMapping  `json:"read"`
}

// Operations holds the optional operation bindings of a resource. A nil
// mapping means the action is not supported.
type Operations struct {
	Create *OperationMapping `json:"create,omitempty" validate:"omitempty"`
	Read   *OperationMapping `json:"read,omitempty" validate:"omitempty"`
	Update *OperationMapping `json:"update,omitempty" validate:"omitempty"`
	Delete *OperationMapping `json:"delete,omitempty" validate:"omitempty"`
	Import *OperationMapping `json:"import,omitempty" validate:"omitempty"`
}

// OperationMapping binds an action to a primary SDK operation and any
// supplementary operations needed to complete it.
type OperationMapping struct {
	SDKOperation         string   `json:"sdk_operation" validate:"required"`
	AdditionalOperations []string `json:"additional_operations,omitempty"`
}

// FieldDefinition describes one input or output attribute.
type FieldDefinition struct {
	Name        string    `json:"name" validate:"required"`
	Type        FieldType `json:"field_type" validate:"required"`
	Required    bool      `json:"required"`
	Sensitive   bool      `json:"sensitive"`
	Immutable   bool      `json:"immutable"`
	Description string    `json:"description,omitempty"`
	// ResponseAccessor is only set on output fields.
	ResponseAccessor string `json:"response_accessor,omitempty"`
}

// NestingMode distinguishes single from repeated nested blocks.
type NestingMode string

const (
	NestingSingle NestingMode = "single"
	NestingList   NestingMode = "list"
)

// BlockDefinition is a nested attribute group. MaxItems of 0 means unbounded.
type BlockDefinition struct {
	Name              string            `json:"name" validate:"required"`
	Description       string            `json:"description,omitempty"`
	Attributes        []FieldDefinition `json:"attributes" validate:"dive"`
	Blocks            []BlockDefinition `json:"blocks,omitempty" validate:"dive"`
	NestingMode       NestingMode       `json:"nesting_mode" validate:"required,oneof=single list"`
	MinItems          int               `json:"min_items" validate:"gte=0"`
	MaxItems          int               `json:"max_items" validate:"gte=0"`
	SDKTypeName       string            `json:"sdk_type_name,omitempty"`
	SDKAccessorMethod string            `json:"sdk_accessor_method,omitempty"`
}

// Result is the outcome of a successful conversion: a usable, possibly
// incomplete, service plus every degradation that happened on the way.
type Result struct {
	Service  ServiceDefinition `json:"service"`
	Warnings []Warning         `json:"warnings,omitempty"`
}

// WarningsOf returns the warnings of the given kind.
func (r *Result) WarningsOf(kind WarningKind) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// FindResource looks up a resource by name. Returns nil if not found.
func (s *ServiceDefinition) FindResource(name string) *ResourceDefinition {
	for i := range s.Resources {
		if s.Resources[i].Name == name {
			return &s.Resources[i]
		}
	}
	return nil
}
