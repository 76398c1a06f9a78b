package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given files or directories and
	// overlays it onto the default model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// ManifestLoader reads plugin manifests from individual files.
type ManifestLoader interface {
	// Extensions lists the file suffixes the loader understands.
	Extensions() []string
	// LoadManifests parses one file, which may declare several plugins.
	LoadManifests(ctx context.Context, path string) ([]*PluginManifest, error)
}
