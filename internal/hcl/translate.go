package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/config"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
)

// apply overlays the blocks present in root onto model.
func (l *Loader) apply(ctx context.Context, model *config.Model, root *fileRoot, file string) error {
	if p := root.Pipeline; p != nil {
		if err := applyPipeline(&model.Pipeline, p); err != nil {
			return fmt.Errorf("%s: pipeline block: %w", file, err)
		}
	}
	if m := root.Manager; m != nil {
		if err := applyManager(&model.Manager, m); err != nil {
			return fmt.Errorf("%s: manager block: %w", file, err)
		}
	}
	if d := root.Discovery; d != nil {
		applyDiscovery(&model.Discovery, d)
	}
	for _, p := range root.Plugins {
		m, err := translatePlugin(p, file)
		if err != nil {
			return err
		}
		model.Plugins = append(model.Plugins, m)
	}
	return nil
}

func applyPipeline(dst *config.Pipeline, b *pipelineBlock) error {
	if b.Name != nil {
		dst.Name = *b.Name
	}
	if b.MaxParallel != nil {
		if *b.MaxParallel < 1 {
			return fmt.Errorf("max_parallel must be positive, got %d", *b.MaxParallel)
		}
		dst.MaxParallel = *b.MaxParallel
	}
	if b.PerNodeTimeout != nil {
		d, err := parseDuration("per_node_timeout", *b.PerNodeTimeout)
		if err != nil {
			return err
		}
		dst.PerNodeTimeout = d
	}
	if b.ContinueOnError != nil {
		dst.ContinueOnError = *b.ContinueOnError
	}
	if b.ValidateBeforeRun != nil {
		dst.ValidateBeforeRun = *b.ValidateBeforeRun
	}
	if b.Plugins != nil {
		dst.Select = b.Plugins
	}
	if b.RequiredRoles != nil {
		roles := make([]plugin.Role, 0, len(b.RequiredRoles))
		for _, s := range b.RequiredRoles {
			r, err := plugin.ParseRole(s)
			if err != nil {
				return err
			}
			roles = append(roles, r)
		}
		dst.RequiredRoles = roles
	}
	return nil
}

func applyManager(dst *config.Manager, b *managerBlock) error {
	if b.ValidateOnRegister != nil {
		dst.ValidateOnRegister = *b.ValidateOnRegister
	}
	if b.InitTimeout != nil {
		d, err := parseDuration("init_timeout", *b.InitTimeout)
		if err != nil {
			return err
		}
		dst.InitTimeout = d
	}
	if b.CacheDir != nil {
		dst.CacheDir = *b.CacheDir
	}
	if b.Active != nil {
		dst.Active = b.Active
	}
	return nil
}

func applyDiscovery(dst *config.Discovery, b *discoveryBlock) {
	if b.SearchPaths != nil {
		dst.SearchPaths = b.SearchPaths
	}
	if b.Extensions != nil {
		dst.Extensions = b.Extensions
	}
	if b.MaxDepth != nil {
		dst.MaxDepth = *b.MaxDepth
	}
	if b.AllowDynamic != nil {
		dst.AllowDynamic = *b.AllowDynamic
	}
	if b.Tags != nil {
		dst.Tags = b.Tags
	}
	if b.MaxPerRole != nil {
		dst.MaxPerRole = *b.MaxPerRole
	}
}

// translatePlugin converts the HCL-specific plugin schema into the agnostic model.
func translatePlugin(b *pluginBlock, file string) (*config.PluginManifest, error) {
	m := &config.PluginManifest{
		Name:         b.Name,
		Version:      b.Version,
		Description:  b.Description,
		Author:       b.Author,
		Kind:         b.Kind,
		Capabilities: b.Capabilities,
		Dependencies: b.DependsOn,
		Enabled:      true,
		Source:       file,
	}
	if b.Enabled != nil {
		m.Enabled = *b.Enabled
	}
	if b.Config != nil {
		val, diags := b.Config.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s: plugin '%s': invalid config: %w", file, b.Name, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("%s: plugin '%s': %w", file, b.Name, err)
		}
		if native != nil {
			cfg, ok := native.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: plugin '%s': config must be an object, got %T", file, b.Name, native)
			}
			m.Config = cfg
		}
	}
	return m, nil
}

func parseDuration(attr, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", attr, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", attr)
	}
	return d, nil
}
