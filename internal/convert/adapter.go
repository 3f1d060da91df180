// Package convert implements the format-agnostic conversion pipeline.
//
// Every format plugs in through an Adapter that knows how to enumerate the
// document's operations and resolve their input and output schemas into
// Nodes. Bucketing, field and block extraction, and assembly of the
// ServiceDefinition are shared.
package convert

import (
	"log/slog"

	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/naming"
)

// DefaultMaxDepth bounds nested type resolution per top-level field.
const DefaultMaxDepth = 32

// DefaultServiceName names a service when neither the caller nor the
// document does.
const DefaultServiceName = "service"

// Operation is one enumerated operation of a document.
type Operation struct {
	// ID is the source-native operation identifier.
	ID string
	// Verb is the wire verb (HTTP method) when the format has one.
	Verb string
	// ResourceHint is a format-supplied resource token, such as a discovery
	// collection or a URL path segment. It wins over the token the
	// classifier extracts from ID.
	ResourceHint string
	// VerbFirst makes Verb decide the CRUD category, with the name only
	// consulted for unknown verbs.
	VerbFirst   bool
	Description string
	// Handle is adapter-private data used to locate the operation's schemas.
	Handle any
}

// Node is a resolved member of an input or output schema.
type Node struct {
	// Name is the source member name; the pipeline normalizes it.
	Name        string
	Type        domain.FieldType
	Required    bool
	Sensitive   bool
	Immutable   bool
	Description string
	// TypeName is the native name of the member's structured type, if any.
	TypeName string
	// Children are the members of an Object, or of the element of a
	// List(Object).
	Children []Node
}

// Adapter is the per-format capability set. Implementations must be safe
// for concurrent use; they only read the document they wrap.
type Adapter interface {
	Format() domain.SchemaFormat
	// Provider returns the provider tag, honoring hint where the format
	// is provider-ambiguous.
	Provider(hint domain.Provider) domain.Provider
	// Enumerate lists the operations in a stable order. An error means
	// the document is structurally unusable.
	Enumerate() ([]Operation, error)
	// Inputs resolves the members of op's input schema. Implementations
	// call s.Top for every top-level member.
	Inputs(op Operation, s *Scope) []Node
	// Outputs resolves the members of op's output schema.
	Outputs(op Operation, s *Scope) []Node
}

// Options carries the caller-supplied configuration of one conversion.
type Options struct {
	// ServiceName is required by Run. Converters fill an empty one in from
	// the document with NameFrom.
	ServiceName  string
	Version      string
	ProviderHint domain.Provider
	// MaxDepth bounds nested resolution; 0 means DefaultMaxDepth.
	MaxDepth int
	// Parallelism is the number of resources extracted concurrently;
	// values below 2 extract sequentially.
	Parallelism int
	Logger      *slog.Logger
}

// NameFrom sets an empty ServiceName to the first candidate that normalizes
// to a usable file name, or to DefaultServiceName when none does.
func (o *Options) NameFrom(candidates ...string) {
	if o.ServiceName != "" {
		return
	}
	for _, c := range candidates {
		if name := naming.Normalize(c); naming.IsFileName(name) {
			o.ServiceName = name
			return
		}
	}
	o.ServiceName = DefaultServiceName
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Parallelism < 1 {
		o.Parallelism = 1
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}
