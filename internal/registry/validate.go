package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
)

// ValidateRegistry performs a strict parity check between the catalogue and
// the compiled-in implementations. Every problem is collected before
// returning.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	used := make(map[string]bool)
	for _, d := range r.List() {
		e, _ := r.Entry(d.Name)
		if e.Kind == "" {
			continue
		}
		used[e.Kind] = true

		f, ok := r.Factory(e.Kind)
		if !ok {
			errs = append(errs, fmt.Sprintf("plugin '%s': no implementation registered for kind '%s'", d.Name, e.Kind))
			continue
		}
		p := f()
		if p == nil {
			errs = append(errs, fmt.Sprintf("plugin '%s': kind '%s' returned a nil plugin", d.Name, e.Kind))
			continue
		}
		impl := p.Descriptor()
		if err := impl.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("plugin '%s': implementation '%s' reports an invalid descriptor: %v", d.Name, e.Kind, err))
			continue
		}
		if impl.Role() != d.Role() {
			errs = append(errs, fmt.Sprintf("plugin '%s': role mismatch. Catalogue declares '%s' but implementation '%s' provides '%s'", d.Name, d.Role(), e.Kind, impl.Role()))
		}
	}

	for _, kind := range r.Kinds() {
		if !used[kind] {
			logger.Debug("Plugin kind is registered but not catalogued.", "kind", kind)
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
