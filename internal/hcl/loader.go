package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/ttrpgconv/internal/config"
	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/fsutil"
)

// Extension is the file suffix handled by this package.
const Extension = ".hcl"

// Loader is the HCL-specific implementation of config.Loader and
// config.ManifestLoader.
type Loader struct{}

var (
	_ config.Loader         = (*Loader)(nil)
	_ config.ManifestLoader = (*Loader)(nil)
)

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file found under paths and overlays the blocks onto
// config.Default. Files are applied in path order; later files win.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := config.Default()
	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	for _, file := range files {
		root, err := l.decodeFile(parser, file)
		if err != nil {
			return nil, err
		}
		if err := l.apply(ctx, model, root, file); err != nil {
			return nil, err
		}
	}

	logger.Debug("HCL loading complete.", "files", len(files), "plugins", len(model.Plugins))
	return model, nil
}

// Extensions implements config.ManifestLoader.
func (l *Loader) Extensions() []string {
	return []string{Extension}
}

// LoadManifests returns the plugin blocks of a single file. Other blocks are
// ignored.
func (l *Loader) LoadManifests(ctx context.Context, path string) ([]*config.PluginManifest, error) {
	root, err := l.decodeFile(hclparse.NewParser(), path)
	if err != nil {
		return nil, err
	}
	if root.Pipeline != nil || root.Manager != nil || root.Discovery != nil {
		ctxlog.FromContext(ctx).Debug("Ignoring settings blocks in manifest file.", "file", path)
	}
	out := make([]*config.PluginManifest, 0, len(root.Plugins))
	for _, p := range root.Plugins {
		m, err := translatePlugin(p, path)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (l *Loader) decodeFile(parser *hclparse.Parser, file string) (*fileRoot, error) {
	hclFile, diags := parser.ParseHCLFile(file)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
	}
	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
	}
	return &root, nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		path = fsutil.ExpandHome(path)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		found, err := fsutil.FindFilesByExtension(path, Extension)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return allFiles, nil
}
