package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
)

var (
	// ErrDuplicateRegistration is returned when a plugin name is already catalogued.
	ErrDuplicateRegistration = errors.New("duplicate plugin registration")
	// ErrUnknownKind is returned when no implementation is registered for a kind.
	ErrUnknownKind = errors.New("unknown plugin kind")
	// ErrUnknownPlugin is returned when a name is not catalogued.
	ErrUnknownPlugin = errors.New("unknown plugin")
)

// Module is the interface that all compiled-in plugin modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Entry is a catalogued plugin: its descriptor and the binding to the
// implementation that backs it.
type Entry struct {
	Descriptor plugin.Descriptor
	// Kind names the compiled-in implementation. Defaults to the plugin name.
	Kind string
	// Config is passed to Initialize, below any caller-supplied values.
	Config plugin.Config
	// Origin records where the entry came from (a manifest path, "static").
	Origin       string
	RegisteredAt time.Time
}

// RegisterOption customises a catalogue entry.
type RegisterOption func(*Entry)

// WithKind binds the entry to the implementation registered under kind.
func WithKind(kind string) RegisterOption {
	return func(e *Entry) {
		if kind != "" {
			e.Kind = kind
		}
	}
}

// Unbound marks an entry whose instance is supplied by the caller rather than
// built from a compiled-in kind. Unbound entries cannot be instantiated.
func Unbound() RegisterOption {
	return func(e *Entry) { e.Kind = "" }
}

// WithConfig attaches default configuration to the entry.
func WithConfig(cfg plugin.Config) RegisterOption {
	return func(e *Entry) { e.Config = cfg }
}

// WithOrigin records where the entry came from.
func WithOrigin(origin string) RegisterOption {
	return func(e *Entry) { e.Origin = origin }
}

// Registry holds the catalogue and the compiled-in implementations.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	kinds   map[string]plugin.Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		kinds:   make(map[string]plugin.Factory),
	}
}

// Register catalogues a descriptor. The operation is atomic: on error the
// catalogue is unchanged.
func (r *Registry) Register(d plugin.Descriptor, opts ...RegisterOption) error {
	if err := d.Validate(); err != nil {
		return err
	}
	e := &Entry{Descriptor: d.Clone(), Kind: d.Name}
	for _, opt := range opts {
		opt(e)
	}
	e.Config = plugin.Config{}.Merge(e.Config)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[d.Name]; ok {
		return fmt.Errorf("%w: '%s' already registered as %s", ErrDuplicateRegistration, d.Name, existing.Descriptor)
	}
	e.RegisteredAt = time.Now()
	r.entries[d.Name] = e
	return nil
}

// Find returns the descriptor registered under name.
func (r *Registry) Find(name string) (plugin.Descriptor, bool) {
	e, ok := r.Entry(name)
	if !ok {
		return plugin.Descriptor{}, false
	}
	return e.Descriptor, true
}

// Entry returns a copy of the catalogue entry registered under name.
func (r *Registry) Entry(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Descriptor = e.Descriptor.Clone()
	out.Config = plugin.Config{}.Merge(e.Config)
	return out, true
}

// IsRegistered reports whether name is catalogued.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Len returns the number of catalogued plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns descriptors sorted by name. With roles given, only
// descriptors whose inferred role is among them are returned.
func (r *Registry) List(roles ...plugin.Role) []plugin.Descriptor {
	want := make(map[plugin.Role]bool, len(roles))
	for _, role := range roles {
		want[role] = true
	}

	r.mu.RLock()
	out := make([]plugin.Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if len(want) > 0 && !want[e.Descriptor.Role()] {
			continue
		}
		out = append(out, e.Descriptor.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CountByRole returns how many catalogued plugins carry each role.
func (r *Registry) CountByRole() map[plugin.Role]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[plugin.Role]int)
	for _, e := range r.entries {
		out[e.Descriptor.Role()]++
	}
	return out
}
