package proto

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"google.golang.org/genproto/googleapis/api/annotations"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
)

// Converter implements the usecase.SchemaConverter interface for protobuf
// service descriptors.
type Converter struct {
	logger *slog.Logger
}

// NewConverter creates a new protobuf Converter.
func NewConverter(logger *slog.Logger) *Converter {
	return &Converter{logger: logger.With("component", "proto_converter")}
}

// Convert compiles the services of a parsed protobuf Model into a single
// ServiceDefinition. The API version defaults to the proto package and the
// service name to the first service's name.
func (c *Converter) Convert(schema domain.APISchema, opts convert.Options) (*domain.Result, error) {
	model, ok := schema.ParsedData.(*Model)
	if !ok || model == nil {
		return nil, domain.Malformed(domain.FormatProto, "missing parsed protobuf model", nil)
	}
	var name string
	if len(model.Services) > 0 {
		if opts.Version == "" {
			opts.Version = model.Services[0].GetFile().GetPackage()
		}
		name = model.Services[0].GetName()
	}
	opts.NameFrom(name)
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	c.logger.Info("Converting protobuf services.",
		slog.String("source", schema.Source),
		slog.Int("service_count", len(model.Services)))
	return convert.Run(&adapter{model: model, logger: c.logger}, opts)
}

type adapter struct {
	model  *Model
	logger *slog.Logger
}

func (a *adapter) Format() domain.SchemaFormat { return domain.FormatProto }

func (a *adapter) Provider(hint domain.Provider) domain.Provider {
	return hint.Or(domain.ProviderGCP)
}

// Enumerate lists unary methods in declaration order. The HTTP verb comes
// from the google.api.http rule, and the resource hint from a
// google.api.resource annotation on the response message.
func (a *adapter) Enumerate() ([]convert.Operation, error) {
	var ops []convert.Operation
	for _, svc := range a.model.Services {
		for _, m := range svc.GetMethods() {
			if m.IsClientStreaming() || m.IsServerStreaming() {
				a.logger.Debug("Skipping streaming method.", slog.String("method", m.GetFullyQualifiedName()))
				continue
			}
			ops = append(ops, convert.Operation{
				ID:           m.GetName(),
				Verb:         httpVerb(m),
				ResourceHint: resourceType(m.GetOutputType()),
				Description:  comment(m.GetSourceInfo().GetLeadingComments()),
				Handle:       m,
			})
		}
	}
	return ops, nil
}

func httpVerb(m *desc.MethodDescriptor) string {
	opts := m.GetMethodOptions()
	if opts == nil {
		return ""
	}
	rule, ok := extensionOf(opts, annotations.E_Http).(*annotations.HttpRule)
	if !ok || rule == nil {
		return ""
	}
	switch rule.GetPattern().(type) {
	case *annotations.HttpRule_Get:
		return http.MethodGet
	case *annotations.HttpRule_Post:
		return http.MethodPost
	case *annotations.HttpRule_Put:
		return http.MethodPut
	case *annotations.HttpRule_Patch:
		return http.MethodPatch
	case *annotations.HttpRule_Delete:
		return http.MethodDelete
	}
	return ""
}

// resourceType returns the kind of a google.api.resource type such as
// "library.googleapis.com/Book".
func resourceType(msg *desc.MessageDescriptor) string {
	opts := msg.GetMessageOptions()
	if opts == nil {
		return ""
	}
	res, ok := extensionOf(opts, annotations.E_Resource).(*annotations.ResourceDescriptor)
	if !ok || res == nil || res.GetType() == "" {
		return ""
	}
	t := res.GetType()
	return t[strings.LastIndex(t, "/")+1:]
}

// extensionOf reads extension xt from an options message. Options compiled
// without the extension registered carry it as unknown fields, so they are
// decoded again against the global registry.
func extensionOf(opts proto.Message, xt protoreflect.ExtensionType) any {
	if proto.HasExtension(opts, xt) {
		return proto.GetExtension(opts, xt)
	}
	if len(opts.ProtoReflect().GetUnknown()) == 0 {
		return nil
	}
	raw, err := proto.Marshal(opts)
	if err != nil {
		return nil
	}
	fresh := opts.ProtoReflect().Type().New().Interface()
	if err := (proto.UnmarshalOptions{Resolver: protoregistry.GlobalTypes}).Unmarshal(raw, fresh); err != nil {
		return nil
	}
	if !proto.HasExtension(fresh, xt) {
		return nil
	}
	return proto.GetExtension(fresh, xt)
}

func comment(s string) string {
	return strings.TrimSpace(s)
}

func (a *adapter) Inputs(op convert.Operation, s *convert.Scope) []convert.Node {
	return a.messageNodes(op.Handle.(*desc.MethodDescriptor).GetInputType(), s)
}

func (a *adapter) Outputs(op convert.Operation, s *convert.Scope) []convert.Node {
	return a.messageNodes(op.Handle.(*desc.MethodDescriptor).GetOutputType(), s)
}

func (a *adapter) messageNodes(msg *desc.MessageDescriptor, s *convert.Scope) []convert.Node {
	fields := msg.GetFields()
	nodes := make([]convert.Node, 0, len(fields))
	for _, f := range fields {
		nodes = append(nodes, a.fieldNode(f, s.Top(f.GetName())))
	}
	return nodes
}

func (a *adapter) fieldNode(f *desc.FieldDescriptor, s *convert.Scope) convert.Node {
	behaviors := fieldBehaviors(f)
	n := convert.Node{
		Name:        f.GetName(),
		Required:    f.IsRequired() || slices.Contains(behaviors, annotations.FieldBehavior_REQUIRED),
		Immutable:   slices.Contains(behaviors, annotations.FieldBehavior_IMMUTABLE),
		Sensitive:   f.GetFieldOptions().GetDebugRedact(),
		Description: comment(f.GetSourceInfo().GetLeadingComments()),
	}
	n.Type, n.TypeName, n.Children = a.resolveField(f, s)
	return n
}

func fieldBehaviors(f *desc.FieldDescriptor) []annotations.FieldBehavior {
	opts := f.GetFieldOptions()
	if opts == nil {
		return nil
	}
	fb, _ := extensionOf(opts, annotations.E_FieldBehavior).([]annotations.FieldBehavior)
	return fb
}

// resolveField maps a field to a FieldType, honoring map and repeated
// cardinality.
func (a *adapter) resolveField(f *desc.FieldDescriptor, s *convert.Scope) (domain.FieldType, string, []convert.Node) {
	if f.IsMap() {
		entry := f.GetMessageType()
		key, _, _ := a.resolveSingular(entry.FindFieldByNumber(1), s)
		value, _, _ := a.resolveSingular(entry.FindFieldByNumber(2), s)
		return domain.Map(key, value), "", nil
	}
	t, name, children := a.resolveSingular(f, s)
	if f.IsRepeated() {
		return domain.List(t), name, children
	}
	return t, name, children
}

func (a *adapter) resolveSingular(f *desc.FieldDescriptor, s *convert.Scope) (domain.FieldType, string, []convert.Node) {
	switch f.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return domain.Float(), "", nil
	case descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_UINT32, descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32, descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32, descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32, descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return domain.Integer(), "", nil
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return domain.Boolean(), "", nil
	case descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return domain.String(), "", nil
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		values := f.GetEnumType().GetValues()
		names := make([]string, 0, len(values))
		for _, v := range values {
			names = append(names, v.GetName())
		}
		return domain.Enum(names...), "", nil
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return a.resolveMessage(f.GetMessageType(), s)
	}
	return s.Unsupported(f.GetType().String()), "", nil
}

// wellKnown maps the google.protobuf messages with a scalar meaning.
var wellKnown = map[string]func() domain.FieldType{
	"google.protobuf.Timestamp":   domain.DateTime,
	"google.protobuf.Duration":    domain.String,
	"google.protobuf.DoubleValue": domain.Float,
	"google.protobuf.FloatValue":  domain.Float,
	"google.protobuf.Int64Value":  domain.Integer,
	"google.protobuf.UInt64Value": domain.Integer,
	"google.protobuf.Int32Value":  domain.Integer,
	"google.protobuf.UInt32Value": domain.Integer,
	"google.protobuf.BoolValue":   domain.Boolean,
	"google.protobuf.StringValue": domain.String,
	"google.protobuf.BytesValue":  domain.String,
	"google.protobuf.Value":       domain.String,
	"google.protobuf.Struct":      func() domain.FieldType { return domain.Map(domain.String(), domain.String()) },
	"google.protobuf.ListValue":   func() domain.FieldType { return domain.List(domain.String()) },
	"google.protobuf.FieldMask":   func() domain.FieldType { return domain.List(domain.String()) },
}

func (a *adapter) resolveMessage(msg *desc.MessageDescriptor, s *convert.Scope) (domain.FieldType, string, []convert.Node) {
	full := msg.GetFullyQualifiedName()
	if mk, ok := wellKnown[full]; ok {
		return mk(), "", nil
	}
	if full == "google.protobuf.Any" {
		return s.Unsupported(full), "", nil
	}
	if !s.Enter(full) {
		return domain.Fallback(), "", nil
	}
	defer s.Leave(full)

	fields := msg.GetFields()
	children := make([]convert.Node, 0, len(fields))
	for _, f := range fields {
		s.Push(f.GetName())
		children = append(children, a.fieldNode(f, s))
		s.Pop()
	}
	return convert.ObjectOf(children), msg.GetName(), children
}
