package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/ttrpgconv/internal/config"
	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/fsutil"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
)

// SourceName identifies manifest candidates in logs and errors.
const SourceName = "manifests"

// ManifestSource implements registry.Source over manifest files.
type ManifestSource struct {
	cfg     config.Discovery
	loaders []config.ManifestLoader
}

var _ registry.Source = (*ManifestSource)(nil)

// NewManifestSource creates a source scanning cfg.SearchPaths with the given
// loaders.
func NewManifestSource(cfg config.Discovery, loaders ...config.ManifestLoader) *ManifestSource {
	return &ManifestSource{cfg: cfg, loaders: loaders}
}

func (s *ManifestSource) Name() string { return SourceName }

// Candidates implements registry.Source.
func (s *ManifestSource) Candidates(ctx context.Context) ([]registry.Candidate, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := s.files(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out     []registry.Candidate
		errs    []error
		seen    = make(map[string]string)
		perRole = make(map[plugin.Role]int)
	)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		loader := s.loaderFor(file)
		if loader == nil {
			logger.Debug("No manifest loader for file, skipping.", "file", file)
			continue
		}
		manifests, err := loader.LoadManifests(ctx, file)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, m := range manifests {
			d := m.Descriptor()
			switch {
			case !m.Enabled:
				logger.Debug("Skipping disabled plugin manifest.", "plugin", m.Name, "file", file)
				continue
			case !s.matchesTags(d):
				logger.Debug("Skipping plugin without requested tags.", "plugin", m.Name, "tags", s.cfg.Tags)
				continue
			}
			if prev, dup := seen[m.Name]; dup {
				logger.Warn("Duplicate plugin manifest ignored.", "plugin", m.Name, "file", file, "first", prev)
				continue
			}
			role := d.Role()
			if s.cfg.MaxPerRole > 0 && perRole[role] >= s.cfg.MaxPerRole {
				logger.Warn("Per-role manifest cap reached, skipping plugin.", "plugin", m.Name, "role", role, "cap", s.cfg.MaxPerRole)
				continue
			}
			seen[m.Name] = file
			perRole[role]++

			kind := m.Kind
			if kind == "" {
				kind = m.Name
			}
			out = append(out, registry.Candidate{
				Descriptor: d,
				Kind:       kind,
				Config:     plugin.Config(m.Config),
				Origin:     file,
			})
		}
	}

	logger.Debug("Manifest discovery complete.", "files", len(files), "candidates", len(out), "errors", len(errs))
	return out, errors.Join(errs...)
}

func (s *ManifestSource) files(ctx context.Context) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	exts := s.extensions()
	if len(exts) == 0 {
		return nil, nil
	}

	var all []string
	seen := make(map[string]bool)
	for _, root := range s.cfg.SearchPaths {
		if !fsutil.Exists(root) {
			logger.Debug("Plugin search path does not exist, skipping.", "path", root)
			continue
		}
		found, err := fsutil.FindFiles(root, s.cfg.MaxDepth, exts...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plugin path %s: %w", root, err)
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				all = append(all, f)
			}
		}
	}
	return all, nil
}

// extensions returns the configured extensions some loader understands.
func (s *ManifestSource) extensions() []string {
	var out []string
	for _, ext := range s.cfg.Extensions {
		for _, l := range s.loaders {
			if containsSuffix(l.Extensions(), ext) {
				out = append(out, ext)
				break
			}
		}
	}
	return out
}

func (s *ManifestSource) loaderFor(file string) config.ManifestLoader {
	for _, l := range s.loaders {
		for _, ext := range l.Extensions() {
			if strings.HasSuffix(file, ext) {
				return l
			}
		}
	}
	return nil
}

func (s *ManifestSource) matchesTags(d plugin.Descriptor) bool {
	if len(s.cfg.Tags) == 0 {
		return true
	}
	for _, tag := range s.cfg.Tags {
		if d.HasCapability(tag) {
			return true
		}
	}
	return false
}

func containsSuffix(list []string, ext string) bool {
	for _, e := range list {
		if e == ext {
			return true
		}
	}
	return false
}
