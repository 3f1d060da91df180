package openapi

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
)

// Extensions honored on operations and schemas.
const (
	extGroupVersionKind = "x-kubernetes-group-version-kind"
	extIntOrString      = "x-kubernetes-int-or-string"
	extPreserveUnknown  = "x-kubernetes-preserve-unknown-fields"
	extSensitive        = "x-sensitive"
	extImmutable        = "x-immutable"
)

// methodOrder fixes the visiting order of the operations of one path.
var methodOrder = []string{
	http.MethodPost,
	http.MethodGet,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
}

// Converter implements the usecase.SchemaConverter interface for OpenAPI documents.
type Converter struct {
	logger *slog.Logger
}

// NewConverter creates a new OpenAPI Converter.
func NewConverter(logger *slog.Logger) *Converter {
	return &Converter{logger: logger.With("component", "openapi_converter")}
}

// Convert compiles a parsed OpenAPI document into a ServiceDefinition. The API
// version defaults to info.version and the service name to info.title.
func (c *Converter) Convert(schema domain.APISchema, opts convert.Options) (*domain.Result, error) {
	doc, ok := schema.ParsedData.(*openapi3.T)
	if !ok || doc == nil {
		return nil, domain.Malformed(domain.FormatOpenAPI, "missing parsed OpenAPI document", nil)
	}
	if doc.Paths == nil {
		return nil, domain.Malformed(domain.FormatOpenAPI, "document has no paths object", nil)
	}
	var title string
	if doc.Info != nil {
		title = doc.Info.Title
		if opts.Version == "" {
			opts.Version = doc.Info.Version
		}
	}
	opts.NameFrom(title)
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	c.logger.Info("Converting OpenAPI document.",
		slog.String("source", schema.Source),
		slog.Int("path_count", doc.Paths.Len()))
	return convert.Run(&adapter{doc: doc, logger: c.logger}, opts)
}

type adapter struct {
	doc    *openapi3.T
	logger *slog.Logger
}

type opHandle struct {
	path string
	item *openapi3.PathItem
	op   *openapi3.Operation
}

func (a *adapter) Format() domain.SchemaFormat { return domain.FormatOpenAPI }

func (a *adapter) Provider(hint domain.Provider) domain.Provider {
	return hint.Or(domain.ProviderKubernetes)
}

// Enumerate visits paths with the most path parameters first, so item
// endpoints claim the primary slots before collection endpoints. Ties sort
// lexically. Deprecated operations are skipped.
func (a *adapter) Enumerate() ([]convert.Operation, error) {
	paths := a.doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for p := range paths {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := paramCount(keys[i]), paramCount(keys[j])
		if pi != pj {
			return pi > pj
		}
		return keys[i] < keys[j]
	})

	var ops []convert.Operation
	for _, path := range keys {
		item := paths[path]
		if item == nil {
			continue
		}
		for _, method := range methodOrder {
			op := item.GetOperation(method)
			if op == nil {
				continue
			}
			if op.Deprecated {
				a.logger.Debug("Skipping deprecated operation.", slog.String("path", path), slog.String("method", method))
				continue
			}
			id := op.OperationID
			if id == "" {
				id = fallbackOperationID(method, path)
			}
			desc := op.Summary
			if desc == "" {
				desc = op.Description
			}
			ops = append(ops, convert.Operation{
				ID:           id,
				Verb:         method,
				ResourceHint: resourceHint(path, op),
				VerbFirst:    true,
				Description:  desc,
				Handle:       opHandle{path: path, item: item, op: op},
			})
		}
	}
	return ops, nil
}

func paramCount(path string) int {
	return strings.Count(path, "{")
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

func staticSegments(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" && !isParam(seg) {
			out = append(out, seg)
		}
	}
	return out
}

func fallbackOperationID(method, path string) string {
	parts := append([]string{strings.ToLower(method)}, staticSegments(path)...)
	return strings.Join(parts, "_")
}

// resourceHint prefers the Kubernetes kind of the operation and falls back
// to the last static path segment.
func resourceHint(path string, op *openapi3.Operation) string {
	if gvk, ok := op.Extensions[extGroupVersionKind].(map[string]any); ok {
		if kind, ok := gvk["kind"].(string); ok && kind != "" {
			return kind
		}
	}
	segs := staticSegments(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

func (a *adapter) Inputs(op convert.Operation, s *convert.Scope) []convert.Node {
	h := op.Handle.(opHandle)
	var nodes []convert.Node
	seen := make(map[string]bool)

	params := append(openapi3.Parameters{}, h.item.Parameters...)
	params = append(params, h.op.Parameters...)
	for _, pref := range params {
		if pref == nil || pref.Value == nil {
			if pref != nil {
				s.Unresolved(pref.Ref)
			}
			continue
		}
		p := pref.Value
		if p.In != openapi3.ParameterInPath || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		n := convert.Node{
			Name:        p.Name,
			Required:    true,
			Immutable:   true,
			Description: p.Description,
		}
		if p.Schema != nil {
			n.Type, n.TypeName, n.Children = a.resolve(p.Schema, s.Top(p.Name))
		} else {
			n.Type = domain.String()
		}
		nodes = append(nodes, n)
	}

	if h.op.RequestBody == nil {
		return nodes
	}
	if h.op.RequestBody.Value == nil {
		s.Unresolved(h.op.RequestBody.Ref)
		return nodes
	}
	body := h.op.RequestBody.Value
	media := pickMedia(body.Content)
	if media == nil || media.Schema == nil {
		return nodes
	}
	for _, n := range a.bodyNodes(media.Schema, body.Required, s) {
		if seen[n.Name] {
			continue
		}
		seen[n.Name] = true
		nodes = append(nodes, n)
	}
	return nodes
}

// Outputs reads the first of 200, 201 and the remaining 2xx responses, in
// that order, that carries content.
func (a *adapter) Outputs(op convert.Operation, s *convert.Scope) []convert.Node {
	h := op.Handle.(opHandle)
	if h.op.Responses == nil {
		return nil
	}
	codes := []string{"200", "201"}
	var rest []string
	for code := range h.op.Responses.Map() {
		if code == "200" || code == "201" {
			continue
		}
		if n, err := strconv.Atoi(code); err == nil && n >= 200 && n < 300 {
			rest = append(rest, code)
		}
	}
	sort.Strings(rest)
	codes = append(codes, rest...)

	for _, code := range codes {
		rref := h.op.Responses.Value(code)
		if rref == nil {
			continue
		}
		if rref.Value == nil {
			s.Unresolved(rref.Ref)
			continue
		}
		media := pickMedia(rref.Value.Content)
		if media == nil || media.Schema == nil {
			continue
		}
		return a.bodyNodes(media.Schema, true, s)
	}
	return nil
}

// pickMedia prefers application/json, then any JSON media type, then the
// first media type in sorted order.
func pickMedia(content openapi3.Content) *openapi3.MediaType {
	if len(content) == 0 {
		return nil
	}
	if m := content.Get("application/json"); m != nil {
		return m
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, "json") {
			return content[k]
		}
	}
	return content[keys[0]]
}

// bodyNodes flattens an object body into its properties. Any other body
// becomes a single member named "body".
func (a *adapter) bodyNodes(ref *openapi3.SchemaRef, required bool, s *convert.Scope) []convert.Node {
	if ref.Value == nil {
		s.Unresolved(ref.Ref)
		return nil
	}
	props, req := a.objectProperties(ref, map[*openapi3.Schema]bool{})
	if props == nil {
		n := convert.Node{Name: "body", Required: required, Description: ref.Value.Description}
		n.Type, n.TypeName, n.Children = a.resolve(ref, s.Top("body"))
		return []convert.Node{n}
	}
	names := sortedKeys(props)
	nodes := make([]convert.Node, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, a.propertyNode(name, props[name], req[name], s.Top(name)))
	}
	return nodes
}

// objectProperties returns the merged properties of an object schema,
// following allOf. It returns nil properties for non-object schemas.
func (a *adapter) objectProperties(ref *openapi3.SchemaRef, visited map[*openapi3.Schema]bool) (openapi3.Schemas, map[string]bool) {
	sch := ref.Value
	if sch == nil || visited[sch] {
		return nil, nil
	}
	visited[sch] = true
	if !isObject(sch) {
		return nil, nil
	}
	props := openapi3.Schemas{}
	req := map[string]bool{}
	for _, part := range sch.AllOf {
		if part == nil {
			continue
		}
		pp, pr := a.objectProperties(part, visited)
		for k, v := range pp {
			props[k] = v
		}
		for k := range pr {
			req[k] = true
		}
	}
	for k, v := range sch.Properties {
		props[k] = v
	}
	for _, k := range sch.Required {
		req[k] = true
	}
	if len(props) == 0 && len(sch.AllOf) == 0 && len(sch.Properties) == 0 {
		return nil, nil
	}
	return props, req
}

func isObject(sch *openapi3.Schema) bool {
	if len(sch.Properties) > 0 {
		return true
	}
	if len(sch.AllOf) > 0 {
		return true
	}
	return sch.Type != nil && sch.Type.Is(openapi3.TypeObject) && sch.AdditionalProperties.Schema == nil
}

func (a *adapter) propertyNode(name string, ref *openapi3.SchemaRef, required bool, s *convert.Scope) convert.Node {
	n := convert.Node{Name: name, Required: required}
	if ref == nil {
		n.Type = s.Unresolved("<nil>")
		return n
	}
	if sch := ref.Value; sch != nil {
		n.Description = sch.Description
		n.Sensitive = sch.Format == "password" || extBool(sch.Extensions, extSensitive)
		n.Immutable = extBool(sch.Extensions, extImmutable)
	}
	n.Type, n.TypeName, n.Children = a.resolve(ref, s)
	return n
}

// resolve maps a schema to a FieldType. For objects, and arrays of objects,
// it also returns the type name and the member nodes.
func (a *adapter) resolve(ref *openapi3.SchemaRef, s *convert.Scope) (domain.FieldType, string, []convert.Node) {
	if ref == nil {
		return s.Unresolved("<nil>"), "", nil
	}
	sch := ref.Value
	if sch == nil {
		return s.Unresolved(ref.Ref), "", nil
	}
	if extBool(sch.Extensions, extIntOrString) {
		return domain.String(), "", nil
	}
	// Inline schemas have no name to track; their field path keys them and
	// the depth bound stops self-referencing ones.
	key := ref.Ref
	if key == "" {
		key = "inline schema at " + s.Path()
	}

	if props, req := a.objectProperties(ref, map[*openapi3.Schema]bool{}); props != nil {
		if !s.Enter(key) {
			return domain.Fallback(), "", nil
		}
		defer s.Leave(key)
		children := make([]convert.Node, 0, len(props))
		for _, name := range sortedKeys(props) {
			s.Push(name)
			children = append(children, a.propertyNode(name, props[name], req[name], s))
			s.Pop()
		}
		return convert.ObjectOf(children), typeName(ref.Ref), children
	}

	if len(sch.OneOf) > 0 || len(sch.AnyOf) > 0 {
		return s.Unsupported("oneOf/anyOf composition"), "", nil
	}

	types := nonNullTypes(sch)
	switch len(types) {
	case 0:
		switch {
		case sch.Items != nil:
			types = []string{openapi3.TypeArray}
		case sch.AdditionalProperties.Schema != nil || extBool(sch.Extensions, extPreserveUnknown):
			types = []string{openapi3.TypeObject}
		default:
			return s.Unsupported("untyped schema"), "", nil
		}
	case 1:
	default:
		return s.Unsupported(strings.Join(types, "|")), "", nil
	}

	switch types[0] {
	case openapi3.TypeString:
		if len(sch.Enum) > 0 {
			values := make([]string, 0, len(sch.Enum))
			for _, v := range sch.Enum {
				if str, ok := v.(string); ok {
					values = append(values, str)
				}
			}
			return domain.Enum(values...), "", nil
		}
		if sch.Format == "date" || sch.Format == "date-time" {
			return domain.DateTime(), "", nil
		}
		return domain.String(), "", nil
	case openapi3.TypeInteger:
		return domain.Integer(), "", nil
	case openapi3.TypeNumber:
		return domain.Float(), "", nil
	case openapi3.TypeBoolean:
		return domain.Boolean(), "", nil
	case openapi3.TypeArray:
		if sch.Items == nil {
			return domain.List(domain.String()), "", nil
		}
		if !s.Enter(key) {
			return domain.Fallback(), "", nil
		}
		defer s.Leave(key)
		elem, name, children := a.resolve(sch.Items, s)
		return domain.List(elem), name, children
	case openapi3.TypeObject:
		if sch.AdditionalProperties.Schema == nil {
			return domain.Map(domain.String(), domain.String()), "", nil
		}
		if !s.Enter(key) {
			return domain.Fallback(), "", nil
		}
		defer s.Leave(key)
		value, _, _ := a.resolve(sch.AdditionalProperties.Schema, s)
		return domain.Map(domain.String(), value), "", nil
	}
	return s.Unsupported(types[0]), "", nil
}

func nonNullTypes(sch *openapi3.Schema) []string {
	if sch.Type == nil {
		return nil
	}
	var out []string
	for _, t := range sch.Type.Slice() {
		if t != "null" {
			out = append(out, t)
		}
	}
	return out
}

// typeName returns the schema name of a component reference:
// "#/components/schemas/io.k8s.api.core.v1.PodSpec" yields "PodSpec".
func typeName(ref string) string {
	if ref == "" {
		return ""
	}
	name := ref[strings.LastIndex(ref, "/")+1:]
	return name[strings.LastIndex(name, ".")+1:]
}

func sortedKeys(m openapi3.Schemas) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func extBool(ext map[string]any, key string) bool {
	switch v := ext[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
