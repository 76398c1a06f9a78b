package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
)

// OriginStatic marks candidates produced from compiled-in kinds.
const OriginStatic = "static"

// Candidate is a plugin offered by a Source, not yet catalogued.
type Candidate struct {
	Descriptor plugin.Descriptor
	Kind       string
	Config     plugin.Config
	Origin     string
}

// Options converts the candidate's binding into registration options.
func (c Candidate) Options() []RegisterOption {
	return []RegisterOption{WithKind(c.Kind), WithConfig(c.Config), WithOrigin(c.Origin)}
}

// Source yields plugin candidates.
type Source interface {
	Name() string
	Candidates(ctx context.Context) ([]Candidate, error)
}

// Discover asks src for candidates and returns those whose names are not
// catalogued yet. Nothing is registered. A source may fail partially: the
// candidates it did produce are returned together with its error.
func (r *Registry) Discover(ctx context.Context, src Source) ([]Candidate, error) {
	logger := ctxlog.FromContext(ctx)
	all, err := src.Candidates(ctx)
	if err != nil {
		err = fmt.Errorf("discovery source '%s' failed: %w", src.Name(), err)
	}

	var fresh []Candidate
	for _, c := range all {
		if r.IsRegistered(c.Descriptor.Name) {
			logger.Debug("Skipping already registered candidate.", "plugin", c.Descriptor.Name, "source", src.Name())
			continue
		}
		fresh = append(fresh, c)
	}
	logger.Debug("Discovery source scanned.", "source", src.Name(), "candidates", len(all), "new", len(fresh))
	return fresh, err
}

type staticSource struct {
	r *Registry
}

// StaticSource offers one candidate per compiled-in kind, described by the
// descriptor its factory reports.
func StaticSource(r *Registry) Source {
	return staticSource{r: r}
}

func (s staticSource) Name() string { return OriginStatic }

func (s staticSource) Candidates(ctx context.Context) ([]Candidate, error) {
	var out []Candidate
	for _, kind := range s.r.Kinds() {
		f, _ := s.r.Factory(kind)
		p := f()
		if p == nil {
			return nil, fmt.Errorf("kind '%s' returned a nil plugin", kind)
		}
		out = append(out, Candidate{Descriptor: p.Descriptor(), Kind: kind, Origin: OriginStatic})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor.Name < out[j].Descriptor.Name })
	return out, nil
}

// SliceSource serves a fixed list of candidates.
type SliceSource struct {
	Label string
	Items []Candidate
}

func (s SliceSource) Name() string { return s.Label }

func (s SliceSource) Candidates(context.Context) ([]Candidate, error) {
	return s.Items, nil
}
