// Package reflection compiles already-built Go SDK clients by inspecting
// their method sets at run time.
package reflection

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Scheme prefixes sources naming a registered client, as in "reflect://s3".
const Scheme = "reflect://"

// ErrClientNotRegistered is returned for sources naming an unknown client.
var ErrClientNotRegistered = errors.New("client not registered")

// Snapshot is the parsed form of a reflection source: the client type whose
// methods describe the API.
type Snapshot struct {
	Name    string
	Version string
	Client  reflect.Type
}

// Registry holds the clients that can be compiled by name.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Snapshot
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Snapshot)}
}

// Register records client under name. client may be a value or a typed nil
// pointer such as (*s3.Client)(nil). A nil pointer to an interface type
// registers the interface.
func (r *Registry) Register(name, version string, client any) error {
	if name == "" {
		return fmt.Errorf("client name must not be empty")
	}
	t := reflect.TypeOf(client)
	if t == nil {
		return fmt.Errorf("client %s has no type", name)
	}
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Interface {
		t = t.Elem()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = Snapshot{Name: name, Version: version, Client: t}
	return nil
}

// Lookup returns the snapshot registered under name.
func (r *Registry) Lookup(name string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClientNotRegistered, name)
	}
	return &s, nil
}

// Names lists the registered clients in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// signature renders the method set of t, one method per line. It serves as
// the raw form of a snapshot.
func signature(t reflect.Type) []byte {
	var b strings.Builder
	b.WriteString(t.String())
	b.WriteByte('\n')
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		b.WriteString(m.Name)
		b.WriteByte(' ')
		b.WriteString(m.Type.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
