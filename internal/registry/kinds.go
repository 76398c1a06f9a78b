package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
)

// RegisterKind registers the factory for a compiled-in implementation.
// Registering the same kind twice is a programming error and panics.
func (r *Registry) RegisterKind(kind string, factory plugin.Factory) {
	if factory == nil {
		panic(fmt.Sprintf("plugin kind '%s' registered with a nil factory", kind))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kinds[kind]; exists {
		panic(fmt.Sprintf("plugin kind '%s' already registered", kind))
	}
	slog.Debug("Registering plugin kind.", "kind", kind)
	r.kinds[kind] = factory
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Factory returns the factory registered for kind.
func (r *Registry) Factory(kind string) (plugin.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.kinds[kind]
	return f, ok
}

// Instantiate builds a fresh, uninitialised instance of a catalogued plugin.
func (r *Registry) Instantiate(name string) (plugin.Plugin, error) {
	e, ok := r.Entry(name)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownPlugin, name)
	}
	if e.Kind == "" {
		return nil, fmt.Errorf("%w: plugin '%s' is not bound to an implementation", ErrUnknownKind, name)
	}
	f, ok := r.Factory(e.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: plugin '%s' is bound to kind '%s'", ErrUnknownKind, name, e.Kind)
	}
	p := f()
	if p == nil {
		return nil, fmt.Errorf("kind '%s' returned a nil plugin for '%s'", e.Kind, name)
	}
	return p, nil
}
