package config

import (
	"runtime"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
)

// Model is the unified, format-agnostic representation of the application
// configuration.
type Model struct {
	Pipeline  Pipeline
	Manager   Manager
	Discovery Discovery
	// Plugins are manifests declared inline in configuration files.
	Plugins []*PluginManifest
}

// Pipeline holds the run settings.
type Pipeline struct {
	Name              string
	MaxParallel       int
	PerNodeTimeout    time.Duration
	ContinueOnError   bool
	ValidateBeforeRun bool
	// Select limits a run to the named plugins and their dependencies.
	// Empty means every catalogued plugin.
	Select []string
	// RequiredRoles overrides the default "at least one input" rule.
	RequiredRoles []plugin.Role
}

// Manager holds the plugin manager settings.
type Manager struct {
	ValidateOnRegister bool
	InitTimeout        time.Duration
	CacheDir           string
	// Active names plugins to place in their role slots at startup.
	Active []string
}

// Discovery controls where and how plugin manifests are found.
type Discovery struct {
	SearchPaths  []string
	Extensions   []string
	MaxDepth     int
	AllowDynamic bool
	// Tags keeps only manifests carrying at least one of these capabilities.
	Tags []string
	// MaxPerRole caps how many manifests of one role are accepted. Zero means
	// no cap.
	MaxPerRole int
}

// PluginManifest is a declarative plugin description.
type PluginManifest struct {
	Name         string
	Version      string
	Description  string
	Author       string
	Kind         string
	Capabilities []string
	Dependencies []string
	Config       map[string]any
	Enabled      bool
	// Source is the file the manifest was read from.
	Source string
}

// Descriptor converts the manifest into a plugin descriptor.
func (p *PluginManifest) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:         p.Name,
		Version:      p.Version,
		Description:  p.Description,
		Author:       p.Author,
		Capabilities: p.Capabilities,
		Dependencies: p.Dependencies,
	}
}

// Default values.
const (
	DefaultPipelineName   = "pipeline"
	DefaultPerNodeTimeout = 5 * time.Minute
	DefaultInitTimeout    = 30 * time.Second
	DefaultMaxDepth       = 3
)

// Default returns the model used when no configuration is supplied.
func Default() *Model {
	return &Model{
		Pipeline: Pipeline{
			Name:              DefaultPipelineName,
			MaxParallel:       runtime.NumCPU(),
			PerNodeTimeout:    DefaultPerNodeTimeout,
			ContinueOnError:   false,
			ValidateBeforeRun: true,
		},
		Manager: Manager{
			ValidateOnRegister: true,
			InitTimeout:        DefaultInitTimeout,
		},
		Discovery: Discovery{
			SearchPaths:  []string{"./plugins", "~/.ttrpgconv/plugins"},
			Extensions:   []string{".hcl", ".yaml", ".yml"},
			MaxDepth:     DefaultMaxDepth,
			AllowDynamic: true,
		},
	}
}
