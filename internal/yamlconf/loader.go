package yamlconf

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/specialistvlad/ttrpgconv/internal/config"
	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

//go:embed manifest.schema.json
var manifestSchema []byte

const schemaID = "manifest.schema.json"

type manifest struct {
	Name         string         `yaml:"name"`
	Version      string         `yaml:"version"`
	Description  string         `yaml:"description"`
	Author       string         `yaml:"author"`
	Kind         string         `yaml:"kind"`
	Capabilities []string       `yaml:"capabilities"`
	Dependencies []string       `yaml:"dependencies"`
	Enabled      *bool          `yaml:"enabled"`
	Config       map[string]any `yaml:"config"`
}

type manifestList struct {
	Plugins []manifest `yaml:"plugins"`
}

// Loader is the YAML implementation of config.ManifestLoader.
type Loader struct {
	schema *jsonschema.Schema
}

var _ config.ManifestLoader = (*Loader)(nil)

// NewLoader compiles the embedded manifest schema.
func NewLoader() (*Loader, error) {
	sch, err := CompileSchema(schemaID, manifestSchema)
	if err != nil {
		return nil, err
	}
	return &Loader{schema: sch}, nil
}

// CompileSchema compiles a JSON schema document registered under id.
func CompileSchema(id string, raw []byte) (*jsonschema.Schema, error) {
	unmarshaled, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(id, unmarshaled); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}
	sch, err := compiler.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
}

// Extensions implements config.ManifestLoader.
func (l *Loader) Extensions() []string {
	return []string{".yaml", ".yml"}
}

// LoadManifests reads, validates and decodes one manifest file.
func (l *Loader) LoadManifests(ctx context.Context, path string) ([]*config.PluginManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	manifests, err := l.Parse(raw, path)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("YAML manifest loaded.", "file", path, "plugins", len(manifests))
	return manifests, nil
}

// Parse validates and decodes manifest bytes. source is recorded on every
// returned manifest.
func (l *Loader) Parse(raw []byte, source string) ([]*config.PluginManifest, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML manifest %s: %w", source, err)
	}
	if err := ValidateValue(l.schema, doc); err != nil {
		return nil, fmt.Errorf("manifest %s does not match schema: %w", source, err)
	}

	var items []manifest
	if m, ok := doc.(map[string]any); ok && m["plugins"] != nil {
		var list manifestList
		if err := yaml.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("failed to decode manifest %s: %w", source, err)
		}
		items = list.Plugins
	} else {
		var single manifest
		if err := yaml.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("failed to decode manifest %s: %w", source, err)
		}
		items = []manifest{single}
	}

	out := make([]*config.PluginManifest, 0, len(items))
	for _, it := range items {
		pm := &config.PluginManifest{
			Name:         it.Name,
			Version:      it.Version,
			Description:  it.Description,
			Author:       it.Author,
			Kind:         it.Kind,
			Capabilities: it.Capabilities,
			Dependencies: it.Dependencies,
			Config:       it.Config,
			Enabled:      true,
			Source:       source,
		}
		if it.Enabled != nil {
			pm.Enabled = *it.Enabled
		}
		out = append(out, pm)
	}
	return out, nil
}

// ValidateValue validates a decoded YAML or JSON value against sch. The value
// is normalised through JSON first so numbers and maps have the shapes the
// validator expects.
func ValidateValue(sch *jsonschema.Schema, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("value cannot be represented as JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
