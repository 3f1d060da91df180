package convert

import (
	"fmt"

	"github.com/i2y/schemair/internal/classify"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/naming"
)

// complexMemberCount is the member count from which a single nested
// structure becomes a block instead of a plain Object attribute.
const complexMemberCount = 3

type extracted struct {
	resource   domain.ResourceDefinition
	dataSource *domain.DataSourceDefinition
	warnings   []domain.Warning
}

// extract resolves one bucket into a resource and, when it is readable, a
// data source.
func extract(a Adapter, b *Bucket, opts Options) extracted {
	root := NewScope(b.Resource, opts.MaxDepth)

	res := domain.ResourceDefinition{
		Name:       b.Resource,
		Fields:     []domain.FieldDefinition{},
		Outputs:    []domain.FieldDefinition{},
		Operations: operationsOf(b),
	}

	var inputs []Node
	if op, ok := b.Primary(classify.Create); ok {
		inputs = a.Inputs(op, root)
		res.Description = op.Description
	} else if op, ok := b.Primary(classify.Update); ok {
		inputs = a.Inputs(op, root)
	}
	res.Fields = toFields(inputs, false, root)
	res.Blocks = blocksOf(inputs, root)

	var ds *domain.DataSourceDefinition
	if read, ok := b.Primary(classify.Read); ok {
		res.Outputs = toFields(a.Outputs(read, root), true, root)
		if res.Description == "" {
			res.Description = read.Description
		}
		ds = &domain.DataSourceDefinition{
			Name:        b.Resource,
			Description: read.Description,
			Arguments:   toFields(a.Inputs(read, root), false, root),
			Attributes:  res.Outputs,
			Read:        *res.Operations.Read,
		}
	}
	res.IDField = idFieldOf(b.Resource, res.Fields, res.Outputs)

	return extracted{resource: res, dataSource: ds, warnings: root.Warnings()}
}

func operationsOf(b *Bucket) domain.Operations {
	mapping := func(c classify.Category) *domain.OperationMapping {
		op, ok := b.Primary(c)
		if !ok {
			return nil
		}
		m := &domain.OperationMapping{SDKOperation: naming.Normalize(op.ID)}
		for _, extra := range b.Additional(c) {
			m.AdditionalOperations = append(m.AdditionalOperations, naming.Normalize(extra.ID))
		}
		return m
	}
	ops := domain.Operations{
		Create: mapping(classify.Create),
		Read:   mapping(classify.Read),
		Update: mapping(classify.Update),
		Delete: mapping(classify.Delete),
	}
	if ops.Read != nil {
		// Importing an existing resource is a read by identifier.
		ops.Import = &domain.OperationMapping{SDKOperation: ops.Read.SDKOperation}
	}
	return ops
}

// toFields normalizes resolved nodes into field definitions. Output fields
// carry a response accessor and are immutable. Of several members with the
// same normalized name the first is kept.
func toFields(nodes []Node, output bool, s *Scope) []domain.FieldDefinition {
	fields := make([]domain.FieldDefinition, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		name := naming.Normalize(n.Name)
		if name == "" {
			s.Warn(domain.WarningDroppedField, fmt.Sprintf("member %q has no usable name", n.Name))
			continue
		}
		if seen[name] {
			s.Push(name)
			s.Warn(domain.WarningDroppedField, fmt.Sprintf("member %q normalizes to the name of an earlier member", n.Name))
			s.Pop()
			continue
		}
		seen[name] = true
		typ := n.Type
		if typ == nil {
			typ = domain.Fallback()
		}
		f := domain.FieldDefinition{
			Name:        name,
			Type:        typ,
			Required:    n.Required,
			Sensitive:   n.Sensitive,
			Immutable:   n.Immutable,
			Description: n.Description,
		}
		if output {
			f.Immutable = true
			f.ResponseAccessor = name
		}
		fields = append(fields, f)
	}
	return fields
}

// blocksOf derives nested blocks from resolved input members. A list of
// structures becomes a list block; a single structure becomes a single
// block when it has at least complexMemberCount members or nests another
// composite value.
func blocksOf(nodes []Node, s *Scope) []domain.BlockDefinition {
	var blocks []domain.BlockDefinition
	for _, n := range nodes {
		if b, ok := blockOf(n, s); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func blockOf(n Node, s *Scope) (domain.BlockDefinition, bool) {
	name := naming.Normalize(n.Name)
	if name == "" || len(n.Children) == 0 {
		return domain.BlockDefinition{}, false
	}
	var mode domain.NestingMode
	switch t := n.Type.(type) {
	case *domain.ListType:
		if _, ok := t.Element.(*domain.ObjectType); !ok {
			return domain.BlockDefinition{}, false
		}
		mode = domain.NestingList
	case *domain.ObjectType:
		if !isComplex(n) {
			return domain.BlockDefinition{}, false
		}
		mode = domain.NestingSingle
	default:
		return domain.BlockDefinition{}, false
	}

	var attrs []Node
	var nested []domain.BlockDefinition
	for _, c := range n.Children {
		if b, ok := blockOf(c, s); ok {
			nested = append(nested, b)
			continue
		}
		attrs = append(attrs, c)
	}

	b := domain.BlockDefinition{
		Name:              name,
		Description:       n.Description,
		Attributes:        toFields(attrs, false, s),
		Blocks:            nested,
		NestingMode:       mode,
		SDKTypeName:       n.TypeName,
		SDKAccessorMethod: naming.Pascal(n.Name),
	}
	if mode == domain.NestingSingle {
		b.MinItems, b.MaxItems = 1, 1
	}
	return b, true
}

func isComplex(n Node) bool {
	if len(n.Children) >= complexMemberCount {
		return true
	}
	for _, c := range n.Children {
		if domain.IsComposite(c.Type) {
			return true
		}
	}
	return false
}

// idFieldOf picks the identifier field of a resource by conventional name,
// preferring inputs over outputs.
func idFieldOf(resource string, fields, outputs []domain.FieldDefinition) string {
	candidates := []string{"id", resource + "_id", "name", resource + "_name", resource, "arn", resource + "_arn"}
	for _, c := range candidates {
		for _, set := range [][]domain.FieldDefinition{fields, outputs} {
			for _, f := range set {
				if f.Name == c {
					return c
				}
			}
		}
	}
	return ""
}
