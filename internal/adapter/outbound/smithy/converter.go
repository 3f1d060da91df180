package smithy

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
)

// Converter implements the usecase.SchemaConverter interface for Smithy models.
type Converter struct {
	logger *slog.Logger
}

// NewConverter creates a new Smithy Converter.
func NewConverter(logger *slog.Logger) *Converter {
	return &Converter{logger: logger.With("component", "smithy_converter")}
}

// Convert compiles a parsed Smithy model into a ServiceDefinition. The API
// version and service name default to the service shape's.
func (c *Converter) Convert(schema domain.APISchema, opts convert.Options) (*domain.Result, error) {
	model, ok := schema.ParsedData.(*Model)
	if !ok || model == nil {
		return nil, domain.Malformed(domain.FormatSmithy, "missing parsed Smithy model", nil)
	}
	a, err := newAdapter(model, c.logger)
	if err != nil {
		return nil, err
	}
	if opts.Version == "" && a.service != nil {
		opts.Version = a.service.Version
	}
	opts.NameFrom(ShapeName(a.serviceID))
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	c.logger.Info("Converting Smithy model.",
		slog.String("source", schema.Source),
		slog.String("service", a.serviceID))
	return convert.Run(a, opts)
}

type adapter struct {
	model     *Model
	serviceID string
	service   *Shape
	logger    *slog.Logger
}

// newAdapter binds the first service shape by id. A model without one
// yields an adapter that enumerates nothing.
func newAdapter(m *Model, logger *slog.Logger) (*adapter, error) {
	var ids []string
	for id, s := range m.Shapes {
		if s.Type == "service" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		logger.Info("Model declares no service shape.")
		return &adapter{model: m, logger: logger}, nil
	}
	sort.Strings(ids)
	if len(ids) > 1 {
		logger.Warn("Model declares several services, using the first.",
			slog.String("service", ids[0]), slog.Int("count", len(ids)))
	}
	return &adapter{model: m, serviceID: ids[0], service: m.Shapes[ids[0]], logger: logger}, nil
}

func (a *adapter) Format() domain.SchemaFormat { return domain.FormatSmithy }

func (a *adapter) Provider(hint domain.Provider) domain.Provider {
	return hint.Or(domain.ProviderAWS)
}

// Enumerate walks the service's operations, then its resource tree. Operations
// bound to a resource take the resource's name as their resource hint.
func (a *adapter) Enumerate() ([]convert.Operation, error) {
	var ops []convert.Operation
	seen := make(map[string]bool)

	add := func(ref *Ref, resourceHint string) {
		if ref == nil || seen[ref.Target] {
			return
		}
		seen[ref.Target] = true
		shape, ok := a.model.Shapes[ref.Target]
		if !ok || shape.Type != "operation" {
			a.logger.Warn("Operation target not found in model, skipping.", slog.String("target", ref.Target))
			return
		}
		ops = append(ops, convert.Operation{
			ID:           ShapeName(ref.Target),
			Verb:         shape.Traits.HTTPMethod(),
			ResourceHint: resourceHint,
			Description:  shape.Traits.String(TraitDocumentation),
			Handle:       shape,
		})
	}

	if a.service == nil {
		return nil, nil
	}
	for i := range a.service.Operations {
		add(&a.service.Operations[i], "")
	}

	visited := make(map[string]bool)
	var walk func(refs []Ref)
	walk = func(refs []Ref) {
		for _, r := range refs {
			if visited[r.Target] {
				continue
			}
			visited[r.Target] = true
			res, ok := a.model.Shapes[r.Target]
			if !ok || res.Type != "resource" {
				a.logger.Warn("Resource target not found in model, skipping.", slog.String("target", r.Target))
				continue
			}
			hint := ShapeName(r.Target)
			for _, lifecycle := range []*Ref{res.Create, res.Put, res.Read, res.Update, res.Delete, res.List} {
				add(lifecycle, hint)
			}
			for i := range res.Operations {
				add(&res.Operations[i], hint)
			}
			for i := range res.CollectionOperations {
				add(&res.CollectionOperations[i], hint)
			}
			walk(res.Resources)
		}
	}
	walk(a.service.Resources)

	if len(ops) == 0 {
		a.logger.Info("Service shape binds no operations.", slog.String("service", a.serviceID))
	}
	return ops, nil
}

func (a *adapter) Inputs(op convert.Operation, s *convert.Scope) []convert.Node {
	shape := op.Handle.(*Shape)
	return a.structureMembers(shape.Input, s)
}

func (a *adapter) Outputs(op convert.Operation, s *convert.Scope) []convert.Node {
	shape := op.Handle.(*Shape)
	return a.structureMembers(shape.Output, s)
}

func (a *adapter) structureMembers(ref *Ref, s *convert.Scope) []convert.Node {
	if ref == nil || ref.Target == "smithy.api#Unit" {
		return nil
	}
	shape, ok := a.model.Shapes[ref.Target]
	if !ok {
		s.Unresolved(ref.Target)
		return nil
	}
	nodes := make([]convert.Node, 0, len(shape.Members))
	for _, m := range shape.Members {
		nodes = append(nodes, a.memberNode(m.Name, m.Member, s.Top(m.Name)))
	}
	return nodes
}

func (a *adapter) memberNode(name string, m Member, s *convert.Scope) convert.Node {
	n := convert.Node{
		Name:        name,
		Required:    m.Traits.Has(TraitRequired),
		Sensitive:   m.Traits.Has(TraitSensitive),
		Description: m.Traits.String(TraitDocumentation),
	}
	if target, ok := a.model.Shapes[m.Target]; ok {
		n.Sensitive = n.Sensitive || target.Traits.Has(TraitSensitive)
		if n.Description == "" {
			n.Description = target.Traits.String(TraitDocumentation)
		}
	}
	n.Type, n.TypeName, n.Children = a.resolve(m.Target, s)
	return n
}

// resolve maps a shape id to a FieldType. For structures, and lists of
// structures, it also returns the native type name and the member nodes.
func (a *adapter) resolve(target string, s *convert.Scope) (domain.FieldType, string, []convert.Node) {
	if t, ok := preludeType(target); ok {
		return t, "", nil
	}
	shape, ok := a.model.Shapes[target]
	if !ok {
		return s.Unresolved(target), "", nil
	}

	switch shape.Type {
	case "string":
		if values := shape.Traits.EnumValues(); len(values) > 0 {
			return domain.Enum(values...), "", nil
		}
		return domain.String(), "", nil
	case "blob":
		return domain.String(), "", nil
	case "boolean":
		return domain.Boolean(), "", nil
	case "byte", "short", "integer", "long", "bigInteger", "intEnum":
		return domain.Integer(), "", nil
	case "float", "double", "bigDecimal":
		return domain.Float(), "", nil
	case "timestamp":
		return domain.DateTime(), "", nil
	case "document":
		return domain.Map(domain.String(), domain.String()), "", nil
	case "enum":
		values := make([]string, 0, len(shape.Members))
		for _, m := range shape.Members {
			if v := m.Traits.String(TraitEnumValue); v != "" {
				values = append(values, v)
			} else {
				values = append(values, m.Name)
			}
		}
		return domain.Enum(values...), "", nil
	case "list", "set":
		if shape.Member == nil {
			return domain.List(domain.Fallback()), "", nil
		}
		if !s.Enter(target) {
			return domain.Fallback(), "", nil
		}
		defer s.Leave(target)
		elem, elemName, children := a.resolve(shape.Member.Target, s)
		return domain.List(elem), elemName, children
	case "map":
		if shape.Value == nil {
			return domain.Map(domain.String(), domain.Fallback()), "", nil
		}
		if !s.Enter(target) {
			return domain.Fallback(), "", nil
		}
		defer s.Leave(target)
		key := domain.String()
		if shape.Key != nil {
			key, _, _ = a.resolve(shape.Key.Target, s)
		}
		value, _, _ := a.resolve(shape.Value.Target, s)
		return domain.Map(key, value), "", nil
	case "structure", "union":
		if !s.Enter(target) {
			return domain.Fallback(), "", nil
		}
		defer s.Leave(target)
		children := make([]convert.Node, 0, len(shape.Members))
		for _, m := range shape.Members {
			s.Push(m.Name)
			children = append(children, a.memberNode(m.Name, m.Member, s))
			s.Pop()
		}
		return convert.ObjectOf(children), ShapeName(target), children
	}
	return s.Unsupported(fmt.Sprintf("%s (%s)", shape.Type, target)), "", nil
}

// preludeType maps shapes of the smithy.api namespace.
func preludeType(target string) (domain.FieldType, bool) {
	name, ok := strings.CutPrefix(target, "smithy.api#")
	if !ok {
		return nil, false
	}
	switch name {
	case "String", "Blob":
		return domain.String(), true
	case "Boolean", "PrimitiveBoolean":
		return domain.Boolean(), true
	case "Byte", "Short", "Integer", "Long", "BigInteger",
		"PrimitiveByte", "PrimitiveShort", "PrimitiveInteger", "PrimitiveLong":
		return domain.Integer(), true
	case "Float", "Double", "BigDecimal", "PrimitiveFloat", "PrimitiveDouble":
		return domain.Float(), true
	case "Timestamp":
		return domain.DateTime(), true
	case "Document":
		return domain.Map(domain.String(), domain.String()), true
	}
	return nil, false
}
