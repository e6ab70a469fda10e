package llmprovider

import "fmt"

// Registry resolves a provider name to the Provider registered under it.
// Agents reference providers by that name rather than hardwiring a
// concrete type.
type Registry struct {
	providers map[string]Provider
	def       string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under name, and makes it the default if none is set yet.
func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
	if r.def == "" {
		r.def = name
	}
}

func (r *Registry) SetDefault(name string) {
	r.def = name
}

// Get returns the named provider, or the registry default when name is empty.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.def
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("llmprovider: no provider registered for %q", name)
	}
	return p, nil
}

func (r *Registry) Len() int { return len(r.providers) }
