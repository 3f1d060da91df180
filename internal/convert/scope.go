package convert

import (
	"fmt"
	"strings"
	"sync"

	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/naming"
)

// sink collects the warnings of one resource bucket.
type sink struct {
	mu       sync.Mutex
	resource string
	warnings []domain.Warning
}

func (k *sink) add(w domain.Warning) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if w.Resource == "" {
		w.Resource = k.resource
	}
	k.warnings = append(k.warnings, w)
}

// Scope is the cycle guard and warning context of one top-level field
// resolution. It is not safe for concurrent use; every resource and every
// top-level field gets its own.
type Scope struct {
	sink     *sink
	maxDepth int
	path     []string
	active   map[string]bool
	depth    int
}

// NewScope returns a root scope recording warnings for resource. Adapters
// receive scopes from the pipeline; NewScope exists for tests and callers
// resolving types outside a conversion.
func NewScope(resource string, maxDepth int) *Scope {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Scope{sink: &sink{resource: resource}, maxDepth: maxDepth}
}

// Top returns a fresh scope for resolving the top-level member name. The
// visited set starts empty; warnings go to the same resource.
func (s *Scope) Top(name string) *Scope {
	return &Scope{
		sink:     s.sink,
		maxDepth: s.maxDepth,
		path:     []string{naming.Normalize(name)},
		active:   make(map[string]bool),
	}
}

// Push extends the field path used in warnings. Call Pop when done.
func (s *Scope) Push(name string) { s.path = append(s.path, naming.Normalize(name)) }

// Pop undoes the last Push.
func (s *Scope) Pop() {
	if len(s.path) > 0 {
		s.path = s.path[:len(s.path)-1]
	}
}

// Path returns the dotted field path of the current position.
func (s *Scope) Path() string { return strings.Join(s.path, ".") }

// Enter marks key (a reference, type or message name) as being resolved.
// It reports false, and records a RecursionLimitExceeded warning, when key
// is already being resolved further up or the depth bound is reached. The
// caller must then substitute domain.Fallback and must not call Leave.
func (s *Scope) Enter(key string) bool {
	if s.active == nil {
		s.active = make(map[string]bool)
	}
	if s.active[key] {
		s.Warn(domain.WarningRecursionLimitExceeded, fmt.Sprintf("cyclic reference to %s", key))
		return false
	}
	if s.depth >= s.maxDepth {
		s.Warn(domain.WarningRecursionLimitExceeded, fmt.Sprintf("resolution depth %d exceeded at %s", s.maxDepth, key))
		return false
	}
	s.active[key] = true
	s.depth++
	return true
}

// Leave undoes a successful Enter.
func (s *Scope) Leave(key string) {
	delete(s.active, key)
	s.depth--
}

// Warn records a warning at the current field path.
func (s *Scope) Warn(kind domain.WarningKind, msg string) {
	s.sink.add(domain.Warning{Kind: kind, Field: s.Path(), Message: msg})
}

// Unresolved records an UnresolvedReference warning and returns the
// fallback type.
func (s *Scope) Unresolved(ref string) domain.FieldType {
	s.Warn(domain.WarningUnresolvedReference, fmt.Sprintf("reference %s does not resolve", ref))
	return domain.Fallback()
}

// Unsupported records an UnsupportedNativeType warning and returns the
// fallback type.
func (s *Scope) Unsupported(native string) domain.FieldType {
	s.Warn(domain.WarningUnsupportedNativeType, fmt.Sprintf("native type %s has no mapping", native))
	return domain.Fallback()
}

// Warnings returns the warnings recorded so far through s and its
// descendants.
func (s *Scope) Warnings() []domain.Warning {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	return append([]domain.Warning(nil), s.sink.warnings...)
}

// ObjectOf builds an Object type from resolved members. Member names are
// normalized; empty and duplicate names are dropped.
func ObjectOf(children []Node) domain.FieldType {
	members := make([]domain.ObjectMember, 0, len(children))
	seen := make(map[string]bool, len(children))
	for _, c := range children {
		name := naming.Normalize(c.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		members = append(members, domain.ObjectMember{Name: name, Type: c.Type})
	}
	return &domain.ObjectType{Members: members}
}
