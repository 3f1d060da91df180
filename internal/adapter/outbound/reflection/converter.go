package reflection

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// Converter implements the usecase.SchemaConverter interface for client snapshots.
type Converter struct {
	logger *slog.Logger
}

// NewConverter creates a new reflection Converter.
func NewConverter(logger *slog.Logger) *Converter {
	return &Converter{logger: logger.With("component", "reflection_converter")}
}

// Convert compiles a client snapshot into a ServiceDefinition. The service
// name and version default to the snapshot's.
func (c *Converter) Convert(schema domain.APISchema, opts convert.Options) (*domain.Result, error) {
	snap, ok := schema.ParsedData.(*Snapshot)
	if !ok || snap == nil || snap.Client == nil {
		return nil, domain.Malformed(domain.FormatReflection, "missing client snapshot", nil)
	}
	opts.NameFrom(snap.Name)
	if opts.Version == "" {
		opts.Version = snap.Version
	}
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	c.logger.Info("Converting client snapshot.",
		slog.String("source", schema.Source),
		slog.String("type", snap.Client.String()))
	return convert.Run(&adapter{client: snap.Client, logger: c.logger}, opts)
}

type adapter struct {
	client reflect.Type
	logger *slog.Logger
}

type methodHandle struct {
	in, out reflect.Type
}

func (a *adapter) Format() domain.SchemaFormat { return domain.FormatReflection }

func (a *adapter) Provider(hint domain.Provider) domain.Provider {
	return hint.Or(domain.ProviderAWS)
}

// Enumerate lists the exported methods shaped like
// M(ctx, *In, ...opt) (*Out, error), in method-set order.
func (a *adapter) Enumerate() ([]convert.Operation, error) {
	var ops []convert.Operation
	for i := 0; i < a.client.NumMethod(); i++ {
		m := a.client.Method(i)
		in, out, ok := operationShape(m.Type, a.client.Kind() != reflect.Interface)
		if !ok {
			a.logger.Debug("Skipping method with non-operation signature.", slog.String("method", m.Name))
			continue
		}
		ops = append(ops, convert.Operation{
			ID:     m.Name,
			Handle: methodHandle{in: in, out: out},
		})
	}
	return ops, nil
}

// operationShape returns the input and output struct types of an operation
// method. hasReceiver is true for method types taken from a concrete type.
func operationShape(t reflect.Type, hasReceiver bool) (in, out reflect.Type, ok bool) {
	first := 0
	if hasReceiver {
		first = 1
	}
	args := t.NumIn() - first
	if args < 2 || args > 3 || t.NumOut() != 2 {
		return nil, nil, false
	}
	if t.In(first) != contextType || !t.Out(1).Implements(errorType) {
		return nil, nil, false
	}
	if args == 3 && !t.IsVariadic() {
		return nil, nil, false
	}
	in, out = t.In(first+1), t.Out(0)
	if !isStructPtr(in) || !isStructPtr(out) {
		return nil, nil, false
	}
	return in.Elem(), out.Elem(), true
}

func isStructPtr(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

func (a *adapter) Inputs(op convert.Operation, s *convert.Scope) []convert.Node {
	return a.structNodes(op.Handle.(methodHandle).in, s, true)
}

func (a *adapter) Outputs(op convert.Operation, s *convert.Scope) []convert.Node {
	return a.structNodes(op.Handle.(methodHandle).out, s, true)
}

// structNodes lists the exported fields of t, flattening embedded structs.
// top selects whether every field starts a fresh top-level scope.
func (a *adapter) structNodes(t reflect.Type, s *convert.Scope, top bool) []convert.Node {
	var nodes []convert.Node
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, skip := jsonName(f)
		if skip {
			continue
		}
		if f.Anonymous && f.Tag.Get("json") == "" {
			et := f.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				nodes = append(nodes, a.structNodes(et, s, top)...)
				continue
			}
		}
		fs := s
		if top {
			fs = s.Top(name)
		} else {
			s.Push(name)
		}
		nodes = append(nodes, a.fieldNode(name, f, fs))
		if !top {
			s.Pop()
		}
	}
	return nodes
}

func (a *adapter) fieldNode(name string, f reflect.StructField, s *convert.Scope) convert.Node {
	n := convert.Node{
		Name:        name,
		Required:    hasOption(f.Tag.Get("validate"), "required") || f.Tag.Get("required") == "true",
		Sensitive:   f.Tag.Get("sensitive") == "true",
		Immutable:   f.Tag.Get("immutable") == "true",
		Description: f.Tag.Get("doc"),
	}
	n.Type, n.TypeName, n.Children = a.resolve(f.Type, s)
	return n
}

// jsonName returns the wire name of a field and whether it is skipped.
func jsonName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, false
}

func hasOption(tag, option string) bool {
	for _, part := range strings.Split(tag, ",") {
		if part == option {
			return true
		}
	}
	return false
}

// resolve maps a Go type to a FieldType. For structs, and slices of
// structs, it also returns the type name and the member nodes.
func (a *adapter) resolve(t reflect.Type, s *convert.Scope) (domain.FieldType, string, []convert.Node) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return domain.DateTime(), "", nil
	}
	if values, ok := enumValues(t); ok {
		return domain.Enum(values...), "", nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return domain.Boolean(), "", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return domain.Integer(), "", nil
	case reflect.Float32, reflect.Float64:
		return domain.Float(), "", nil
	case reflect.String:
		return domain.String(), "", nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return domain.String(), "", nil
		}
		elem, name, children := a.resolve(t.Elem(), s)
		return domain.List(elem), name, children
	case reflect.Map:
		key, _, _ := a.resolve(t.Key(), s)
		value, _, _ := a.resolve(t.Elem(), s)
		return domain.Map(key, value), "", nil
	case reflect.Struct:
		key := t.PkgPath() + "." + t.String()
		if !s.Enter(key) {
			return domain.Fallback(), "", nil
		}
		defer s.Leave(key)
		children := a.structNodes(t, s, false)
		return convert.ObjectOf(children), t.Name(), children
	}
	return s.Unsupported(fmt.Sprintf("%s (%s)", t.String(), t.Kind())), "", nil
}

// enumValues recognizes string types with a Values method listing their
// members, the enum convention of generated Go SDKs.
func enumValues(t reflect.Type) ([]string, bool) {
	if t.Kind() != reflect.String || t.Name() == "" {
		return nil, false
	}
	m, ok := t.MethodByName("Values")
	if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
		return nil, false
	}
	if out := m.Type.Out(0); out.Kind() != reflect.Slice || out.Elem() != t {
		return nil, false
	}
	res := m.Func.Call([]reflect.Value{reflect.Zero(t)})[0]
	values := make([]string, 0, res.Len())
	for i := 0; i < res.Len(); i++ {
		values = append(values, res.Index(i).String())
	}
	return values, true
}
