package discovery

import (
	"log/slog"
	"slices"
	"sort"
	"strings"

	discoveryapi "google.golang.org/api/discovery/v1"

	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
)

// Converter implements the usecase.SchemaConverter interface for discovery documents.
type Converter struct {
	logger *slog.Logger
}

// NewConverter creates a new discovery Converter.
func NewConverter(logger *slog.Logger) *Converter {
	return &Converter{logger: logger.With("component", "discovery_converter")}
}

// Convert compiles a discovery document into a ServiceDefinition. The API
// version and service name default to the document's.
func (c *Converter) Convert(schema domain.APISchema, opts convert.Options) (*domain.Result, error) {
	doc, ok := schema.ParsedData.(*discoveryapi.RestDescription)
	if !ok || doc == nil {
		return nil, domain.Malformed(domain.FormatDiscovery, "missing parsed discovery document", nil)
	}
	if opts.Version == "" {
		opts.Version = doc.Version
	}
	opts.NameFrom(doc.Name)
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	c.logger.Info("Converting discovery document.",
		slog.String("source", schema.Source),
		slog.String("api", doc.Name))
	return convert.Run(&adapter{doc: doc}, opts)
}

type adapter struct {
	doc *discoveryapi.RestDescription
}

func (a *adapter) Format() domain.SchemaFormat { return domain.FormatDiscovery }

func (a *adapter) Provider(hint domain.Provider) domain.Provider {
	return hint.Or(domain.ProviderGCP)
}

// Enumerate lists top-level methods, then walks the resource tree in sorted
// order. Methods of a collection take the collection name as resource hint.
func (a *adapter) Enumerate() ([]convert.Operation, error) {
	var ops []convert.Operation
	add := func(name string, m discoveryapi.RestMethod, hint string) {
		desc, _, _ := strings.Cut(m.Description, "\n")
		ops = append(ops, convert.Operation{
			ID:           name,
			Verb:         m.HttpMethod,
			ResourceHint: hint,
			Description:  desc,
			Handle:       &m,
		})
	}

	for _, name := range sortedKeys(a.doc.Methods) {
		add(name, a.doc.Methods[name], "")
	}

	var walk func(resources map[string]discoveryapi.RestResource)
	walk = func(resources map[string]discoveryapi.RestResource) {
		for _, collection := range sortedKeys(resources) {
			r := resources[collection]
			for _, name := range sortedKeys(r.Methods) {
				add(name, r.Methods[name], collection)
			}
			walk(r.Resources)
		}
	}
	walk(a.doc.Resources)
	return ops, nil
}

// Inputs lists path parameters in parameter order, then required query
// parameters, then the request body's properties.
func (a *adapter) Inputs(op convert.Operation, s *convert.Scope) []convert.Node {
	m := op.Handle.(*discoveryapi.RestMethod)
	var nodes []convert.Node
	seen := make(map[string]bool)

	names := append([]string(nil), m.ParameterOrder...)
	for _, n := range sortedKeys(m.Parameters) {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	for _, name := range names {
		p, ok := m.Parameters[name]
		if !ok || seen[name] {
			continue
		}
		path := p.Location == "path"
		if !path && !p.Required {
			continue
		}
		seen[name] = true
		n := convert.Node{
			Name:        name,
			Required:    true,
			Immutable:   path,
			Description: p.Description,
		}
		n.Type, _, _ = a.resolve(&p, s.Top(name))
		nodes = append(nodes, n)
	}

	if m.Request == nil || m.Request.Ref == "" {
		return nodes
	}
	for _, n := range a.schemaNodes(m.Request.Ref, m.Id, s) {
		if seen[n.Name] {
			continue
		}
		seen[n.Name] = true
		nodes = append(nodes, n)
	}
	return nodes
}

func (a *adapter) Outputs(op convert.Operation, s *convert.Scope) []convert.Node {
	m := op.Handle.(*discoveryapi.RestMethod)
	if m.Response == nil || m.Response.Ref == "" {
		return nil
	}
	return a.schemaNodes(m.Response.Ref, m.Id, s)
}

func (a *adapter) schemaNodes(ref, methodID string, s *convert.Scope) []convert.Node {
	schema, ok := a.doc.Schemas[ref]
	if !ok {
		s.Unresolved(ref)
		return nil
	}
	props := sortedKeys(schema.Properties)
	nodes := make([]convert.Node, 0, len(props))
	for _, name := range props {
		p := schema.Properties[name]
		nodes = append(nodes, a.propertyNode(name, &p, methodID, s.Top(name)))
	}
	return nodes
}

func (a *adapter) propertyNode(name string, p *discoveryapi.JsonSchema, methodID string, s *convert.Scope) convert.Node {
	n := convert.Node{
		Name:        name,
		Required:    p.Required || requiredFor(p, methodID),
		Description: p.Description,
	}
	n.Type, n.TypeName, n.Children = a.resolve(p, s)
	return n
}

// requiredFor reports whether annotations mark the property as required by
// the method.
func requiredFor(p *discoveryapi.JsonSchema, methodID string) bool {
	return methodID != "" && p.Annotations != nil && slices.Contains(p.Annotations.Required, methodID)
}

// resolve maps a JSON schema to a FieldType. For objects, and arrays of
// objects, it also returns the schema id and the member nodes.
func (a *adapter) resolve(p *discoveryapi.JsonSchema, s *convert.Scope) (domain.FieldType, string, []convert.Node) {
	if p.Ref != "" {
		target, ok := a.doc.Schemas[p.Ref]
		if !ok {
			return s.Unresolved(p.Ref), "", nil
		}
		if !s.Enter(p.Ref) {
			return domain.Fallback(), "", nil
		}
		defer s.Leave(p.Ref)
		t, _, children := a.resolve(&target, s)
		name := ""
		if _, isObject := t.(*domain.ObjectType); isObject {
			name = p.Ref
		}
		return t, name, children
	}

	switch p.Type {
	case "string":
		if len(p.Enum) > 0 {
			return domain.Enum(p.Enum...), "", nil
		}
		switch p.Format {
		case "int64", "uint64", "int32", "uint32":
			return domain.Integer(), "", nil
		case "date", "date-time", "google-datetime":
			return domain.DateTime(), "", nil
		}
		return domain.String(), "", nil
	case "integer":
		return domain.Integer(), "", nil
	case "number":
		return domain.Float(), "", nil
	case "boolean":
		return domain.Boolean(), "", nil
	case "array":
		if p.Items == nil {
			return domain.List(domain.String()), "", nil
		}
		elem, name, children := a.resolve(p.Items, s)
		return domain.List(elem), name, children
	case "object":
		if len(p.Properties) > 0 {
			children := make([]convert.Node, 0, len(p.Properties))
			for _, name := range sortedKeys(p.Properties) {
				prop := p.Properties[name]
				s.Push(name)
				children = append(children, a.propertyNode(name, &prop, "", s))
				s.Pop()
			}
			return convert.ObjectOf(children), p.Id, children
		}
		if p.AdditionalProperties != nil {
			value, _, _ := a.resolve(p.AdditionalProperties, s)
			return domain.Map(domain.String(), value), "", nil
		}
		return domain.Map(domain.String(), domain.String()), "", nil
	case "":
		return s.Unsupported("untyped schema"), "", nil
	}
	return s.Unsupported(p.Type), "", nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
