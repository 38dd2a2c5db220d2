package api

import (
	"context"

	"github.com/raven-automation/ravenctl/internal/core"
)

// CapPlugin names the plugin capability.
const CapPlugin = "plugin"

// PluginCapability covers plugin manifest listing and lookup.
type PluginCapability struct {
	b *Base
}

// PluginMethods is the plugin capability factory.
func PluginMethods() Factory {
	return Factory{Name: CapPlugin, New: func(b *Base) Capability {
		return &PluginCapability{b: b}
	}}
}

// Name implements Capability.
func (p *PluginCapability) Name() string { return CapPlugin }

// ListPlugins returns the installed plugin manifests keyed by slug. Empty
// on failure.
func (p *PluginCapability) ListPlugins(ctx context.Context) map[string]core.PluginManifest {
	return DecodeOr(p.b.Request(ctx, "/plugins", nil), map[string]core.PluginManifest{})
}

// GetPlugin returns a single plugin manifest by name, or nil when unknown.
func (p *PluginCapability) GetPlugin(ctx context.Context, name string) *core.PluginManifest {
	return DecodeOr[*core.PluginManifest](p.b.Request(ctx, "/plugins/"+name, nil), nil)
}
