package registry

import (
	"fmt"
	"sort"
)

// Descriptor describes a single capability exposed by the tool server.
// Descriptors are fixed at process start and never mutated afterwards.
type Descriptor struct {
	Name         string         `json:"name" yaml:"name"`
	DisplayName  string         `json:"display_name" yaml:"display_name"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	Category     string         `json:"category" yaml:"category"`
	AdminOnly    bool           `json:"admin_only,omitempty" yaml:"admin_only,omitempty"`
	RequiresAuth bool           `json:"requires_auth,omitempty" yaml:"requires_auth,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
}

// Registry is an immutable index of every capability known to the process.
type Registry struct {
	byName  map[string]Descriptor
	ordered []Descriptor
}

// New builds a registry from a definition set. Definitions are validated
// eagerly so that a bad set fails at process start, not at request time.
func New(defs []Descriptor) (*Registry, error) {
	byName := make(map[string]Descriptor, len(defs))
	ordered := make([]Descriptor, 0, len(defs))

	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("capability with empty name (display_name=%q)", d.DisplayName)
		}
		if _, exists := byName[d.Name]; exists {
			return nil, fmt.Errorf("duplicate capability %q", d.Name)
		}
		byName[d.Name] = d
		ordered = append(ordered, d)
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Category != ordered[j].Category {
			return ordered[i].Category < ordered[j].Category
		}
		return ordered[i].Name < ordered[j].Name
	})

	return &Registry{byName: byName, ordered: ordered}, nil
}

// MustNew is New for static definition sets loaded at process start.
func MustNew(defs []Descriptor) *Registry {
	r, err := New(defs)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns every registered capability.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// NonAdmin returns every capability an ordinary user may see.
func (r *Registry) NonAdmin() []Descriptor {
	out := make([]Descriptor, 0, len(r.ordered))
	for _, d := range r.ordered {
		if !d.AdminOnly {
			out = append(out, d)
		}
	}
	return out
}

// Public returns the capabilities visible without any authentication:
// non-admin capabilities that can also be invoked without a credential.
func (r *Registry) Public() []Descriptor {
	out := make([]Descriptor, 0, len(r.ordered))
	for _, d := range r.ordered {
		if !d.AdminOnly && !d.RequiresAuth {
			out = append(out, d)
		}
	}
	return out
}

// Get looks up a capability by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Has reports whether a capability is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// ByNames returns descriptors for the given names, preserving registry order.
// Unknown names are skipped.
func (r *Registry) ByNames(names map[string]struct{}) []Descriptor {
	out := make([]Descriptor, 0, len(names))
	for _, d := range r.ordered {
		if _, ok := names[d.Name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Names returns all registered capability names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.ordered))
	for _, d := range r.ordered {
		out = append(out, d.Name)
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.ordered)
}
