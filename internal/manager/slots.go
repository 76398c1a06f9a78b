package manager

import (
	"context"
	"fmt"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/lifecycle"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
)

// OriginSlot marks catalogue entries created by slot registration.
const OriginSlot = "slot"

// RegisterAssetPlugin makes p the active asset plugin.
func (m *Manager) RegisterAssetPlugin(ctx context.Context, p plugin.AssetPlugin) error {
	return m.activate(ctx, plugin.RoleAsset, p)
}

// RegisterValidationPlugin makes p the active validation plugin.
func (m *Manager) RegisterValidationPlugin(ctx context.Context, p plugin.ValidationPlugin) error {
	return m.activate(ctx, plugin.RoleValidation, p)
}

// RegisterLoggingPlugin makes p the active logging plugin. It receives node
// and run events from every subsequent pipeline run.
func (m *Manager) RegisterLoggingPlugin(ctx context.Context, p plugin.LoggingPlugin) error {
	return m.activate(ctx, plugin.RoleLogging, p)
}

// RegisterExportPlugin makes p the active export plugin.
func (m *Manager) RegisterExportPlugin(ctx context.Context, p plugin.ExportPlugin) error {
	return m.activate(ctx, plugin.RoleExport, p)
}

// AssetPlugin returns the active asset plugin, or nil.
func (m *Manager) AssetPlugin() plugin.AssetPlugin {
	p, _ := m.slot(plugin.RoleAsset).(plugin.AssetPlugin)
	return p
}

// ValidationPlugin returns the active validation plugin, or nil.
func (m *Manager) ValidationPlugin() plugin.ValidationPlugin {
	p, _ := m.slot(plugin.RoleValidation).(plugin.ValidationPlugin)
	return p
}

// LoggingPlugin returns the active logging plugin, or nil.
func (m *Manager) LoggingPlugin() plugin.LoggingPlugin {
	p, _ := m.slot(plugin.RoleLogging).(plugin.LoggingPlugin)
	return p
}

// ExportPlugin returns the active export plugin, or nil.
func (m *Manager) ExportPlugin() plugin.ExportPlugin {
	p, _ := m.slot(plugin.RoleExport).(plugin.ExportPlugin)
	return p
}

// ActivateSlot instantiates the catalogued plugin name and places it in the
// slot matching its role.
func (m *Manager) ActivateSlot(ctx context.Context, name string) error {
	p, err := m.registry.Instantiate(name)
	if err != nil {
		return err
	}
	role := p.Descriptor().Role()
	switch role {
	case plugin.RoleAsset, plugin.RoleValidation, plugin.RoleLogging, plugin.RoleExport:
		return m.activate(ctx, role, p)
	default:
		return fmt.Errorf("%w: plugin '%s' has role %s, which has no slot", ErrRoleMismatch, name, role)
	}
}

// activate catalogues p when needed, loads and starts it under its own name
// and stores it in the slot. A previous occupant is torn down.
func (m *Manager) activate(ctx context.Context, role plugin.Role, p plugin.Plugin) error {
	logger := ctxlog.FromContext(ctx)
	d := p.Descriptor()
	if got := d.Role(); got != role {
		return fmt.Errorf("%w: plugin '%s' has role %s, slot is %s", ErrRoleMismatch, d.Name, got, role)
	}
	if !m.registry.IsRegistered(d.Name) {
		if err := m.Register(ctx, d, registry.WithOrigin(OriginSlot), registry.Unbound()); err != nil {
			return err
		}
	}

	if err := m.lifecycle.Add(d.Name, p, m.pluginConfig(d.Name)); err != nil {
		return err
	}
	if err := m.lifecycle.Load(ctx, d.Name, nil); err != nil {
		if terr := m.lifecycle.Teardown(ctx, d.Name); terr != nil {
			logger.Warn("Cleanup after failed slot activation failed.", "plugin", d.Name, "error", terr)
		}
		return err
	}
	if err := m.lifecycle.Start(ctx, d.Name); err != nil {
		return err
	}

	m.mu.Lock()
	previous, occupied := m.slots[role]
	m.slots[role] = d.Name
	m.mu.Unlock()

	if occupied && previous != d.Name {
		logger.Info("Replacing active plugin.", "role", role, "previous", previous, "plugin", d.Name)
		if err := m.lifecycle.Teardown(ctx, previous); err != nil {
			logger.Warn("Teardown of replaced plugin failed.", "plugin", previous, "error", err)
		}
	}
	logger.Debug("Plugin activated.", "role", role, "plugin", d.Name)
	return nil
}

func (m *Manager) slot(role plugin.Role) plugin.Plugin {
	m.mu.RLock()
	name, ok := m.slots[role]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if st, err := m.lifecycle.State(name); err != nil || st != lifecycle.StateRunning {
		return nil
	}
	p, _ := m.lifecycle.Plugin(name)
	return p
}

func (m *Manager) clearSlot(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for role, n := range m.slots {
		if n == name {
			delete(m.slots, role)
		}
	}
}
