// Package schema_validator provides a validation plugin that checks decoded
// campaign documents against a JSON schema. Without configuration it uses a
// built-in schema for the common campaign shape.
package schema_validator

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/specialistvlad/ttrpgconv/internal/fsutil"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"github.com/specialistvlad/ttrpgconv/internal/yamlconf"
)

// Kind is the registry kind of the schema validator.
const Kind = "schema_validator"

// ErrInvalidDocument is returned when a document does not match the schema.
var ErrInvalidDocument = errors.New("document does not match schema")

//go:embed campaign.schema.json
var campaignSchema []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the schema_validator plugin kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(Kind, func() plugin.Plugin { return &Plugin{} })
}

// Plugin validates documents. Config keys: "schema" (an inline schema, as an
// object or a JSON string) or "schema_file" (a path).
type Plugin struct {
	mu     sync.RWMutex
	schema *jsonschema.Schema
}

var _ plugin.ValidationPlugin = (*Plugin)(nil)

func (p *Plugin) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:         Kind,
		Version:      "1.0.0",
		Description:  "Validates campaign documents against a JSON schema.",
		Capabilities: []string{"validation", "validation:jsonschema"},
	}
}

func (p *Plugin) Initialize(ctx context.Context, cfg plugin.Config) error {
	raw, id, err := schemaSource(cfg)
	if err != nil {
		return err
	}
	sch, err := yamlconf.CompileSchema(id, raw)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.schema = sch
	return nil
}

func (p *Plugin) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.schema = nil
	return nil
}

func (p *Plugin) HealthCheck(ctx context.Context) plugin.Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.schema == nil {
		return plugin.Degraded("no schema compiled")
	}
	return plugin.Healthy()
}

// ValidateDocument checks doc against the compiled schema.
func (p *Plugin) ValidateDocument(ctx context.Context, doc any) error {
	p.mu.RLock()
	sch := p.schema
	p.mu.RUnlock()
	if sch == nil {
		return fmt.Errorf("schema_validator plugin is not initialised")
	}
	if err := yamlconf.ValidateValue(sch, doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// schemaSource picks the schema bytes and a resource id for them.
func schemaSource(cfg plugin.Config) ([]byte, string, error) {
	if path := cfg.String("schema_file", ""); path != "" {
		raw, err := os.ReadFile(fsutil.ExpandHome(path))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read schema file: %w", err)
		}
		return raw, path, nil
	}
	switch s := cfg["schema"].(type) {
	case nil:
		return campaignSchema, "campaign.schema.json", nil
	case string:
		return []byte(s), "inline.schema.json", nil
	case map[string]any:
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode inline schema: %w", err)
		}
		return raw, "inline.schema.json", nil
	default:
		return nil, "", fmt.Errorf("config key 'schema': unsupported value of type %T", s)
	}
}
