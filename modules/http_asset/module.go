// Package http_asset provides an asset plugin that downloads referenced
// assets (maps, tokens, handouts) over HTTP into the cache directory and
// returns their local paths.
package http_asset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/fsutil"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
)

// Kind is the registry kind of the HTTP asset plugin.
const Kind = "http_asset"

// DefaultTimeout bounds a single download.
const DefaultTimeout = 30 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the http_asset plugin kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(Kind, func() plugin.Plugin { return &Plugin{} })
}

// Plugin fetches assets over HTTP. Config keys: "cache_dir", "base_url",
// "timeout".
type Plugin struct {
	mu       sync.RWMutex
	client   *http.Client
	baseURL  *url.URL
	cacheDir string
}

var _ plugin.AssetPlugin = (*Plugin)(nil)

func (p *Plugin) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:         Kind,
		Version:      "1.0.0",
		Description:  "Downloads campaign assets over HTTP into the cache directory.",
		Capabilities: []string{"asset", "asset:http"},
	}
}

// Initialize creates the HTTP client and the cache directory.
func (p *Plugin) Initialize(ctx context.Context, cfg plugin.Config) error {
	timeout, err := cfg.Duration("timeout", DefaultTimeout)
	if err != nil {
		return err
	}

	var base *url.URL
	if raw := cfg.String("base_url", ""); raw != "" {
		base, err = url.Parse(raw)
		if err != nil {
			return fmt.Errorf("failed to parse base_url: %w", err)
		}
	}

	dir := fsutil.ExpandHome(cfg.String(plugin.CacheDirKey, filepath.Join(os.TempDir(), "ttrpgconv", "assets")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
	p.baseURL = base
	p.cacheDir = dir
	ctxlog.FromContext(ctx).Debug("HTTP asset plugin initialised.", "cache_dir", dir, "timeout", timeout)
	return nil
}

// Cleanup closes idle connections. It is safe to call before Initialize.
func (p *Plugin) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.CloseIdleConnections()
		p.client = nil
	}
	return nil
}

func (p *Plugin) HealthCheck(ctx context.Context) plugin.Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return plugin.Degraded("not initialised")
	}
	if !fsutil.Exists(p.cacheDir) {
		return plugin.Unhealthy(fmt.Sprintf("cache directory %s is missing", p.cacheDir))
	}
	return plugin.Healthy()
}

// FetchAsset downloads ref (absolute, or relative to base_url) unless it is
// already cached, and returns the local path.
func (p *Plugin) FetchAsset(ctx context.Context, ref string) (string, error) {
	p.mu.RLock()
	client, base, dir := p.client, p.baseURL, p.cacheDir
	p.mu.RUnlock()
	if client == nil {
		return "", fmt.Errorf("http_asset plugin is not initialised")
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("failed to parse asset reference: %w", err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("asset reference '%s' is not an http(s) URL", ref)
	}

	target := filepath.Join(dir, cacheName(u))
	logger := ctxlog.FromContext(ctx).With("url", u.String(), "path", target)
	if fsutil.Exists(target) {
		logger.Debug("Asset served from cache.")
		return target, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching %s: unexpected status %s", u, resp.Status)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to store asset: %w", err)
	}
	logger.Info("Asset downloaded.", "status", resp.Status)
	return target, nil
}

// cacheName derives a stable file name from the URL, keeping the extension.
func cacheName(u *url.URL) string {
	sum := sha256.Sum256([]byte(u.String()))
	return hex.EncodeToString(sum[:8]) + path.Ext(u.Path)
}
