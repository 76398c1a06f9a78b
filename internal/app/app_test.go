package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/ttrpgconv/internal/config"
	"github.com/specialistvlad/ttrpgconv/internal/hcl"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
	"github.com/specialistvlad/ttrpgconv/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Helpers ---

type fixture struct {
	dir    string
	config string
}

// newFixture lays out a campaign file, a configuration file and a plugin
// manifest directory:
//
//	yaml_import -> campaign_check -> foundry_export
func newFixture(t *testing.T, extraHCL string) fixture {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write("campaign.yaml", "name: Abomination Vaults\nsystem: pf2e\n")
	write("plugins/foundry.yaml", fmt.Sprintf(`
name: foundry_export
version: "2.0.0"
kind: yaml_export
capabilities: [export, "export:foundry"]
dependencies: [campaign_check]
config:
  output_dir: %q
`, filepath.Join(dir, "foundry")))
	write("ttrpgconv.hcl", fmt.Sprintf(`
pipeline {
  name         = "campaign"
  max_parallel = 2
  plugins      = ["foundry_export"]
}

manager {
  cache_dir = %q
  active    = ["console"]
}

discovery {
  search_paths = [%q]
}

plugin "yaml_import" {
  config = {
    path = %q
  }
}

plugin "campaign_check" {
  version      = "1.0.0"
  kind         = "schema_validator"
  capabilities = ["validation"]
  depends_on   = ["yaml_import"]
}
%s
`, filepath.Join(dir, "cache"), filepath.Join(dir, "plugins"), filepath.Join(dir, "campaign.yaml"), extraHCL))

	return fixture{dir: dir, config: filepath.Join(dir, "ttrpgconv.hcl")}
}

func newTestApp(t *testing.T, f fixture) (*App, *testutil.SafeBuffer) {
	t.Helper()
	out := &testutil.SafeBuffer{}
	cfg, err := NewConfig(Config{ConfigPaths: []string{f.config}, LogLevel: "debug"})
	require.NoError(t, err)
	a, err := NewApp(out, cfg, hcl.NewLoader())
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close(context.Background())
		if os.Getenv("TTRPGCONV_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), out.String())
		}
	})
	return a, out
}

// --- Tests ---

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, "")
	a, out := newTestApp(t, f)

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, []string{"campaign_check", "foundry_export", "yaml_import"}, report.Executed)
	assert.Equal(t, []scheduler.Batch{{"yaml_import"}, {"campaign_check"}, {"foundry_export"}}, report.Batches)

	assert.DirExists(t, filepath.Join(f.dir, "foundry"), "export plugin was initialised with its manifest config")
	assert.Contains(t, out.String(), "node_finished node=yaml_import status=completed")
	assert.Contains(t, out.String(), "run_finished status=succeeded")
	assert.NotNil(t, a.Manager().LoggingPlugin())
}

func TestRun_FailingPluginStopsDependents(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, os.Remove(filepath.Join(f.dir, "campaign.yaml")))
	a, _ := newTestApp(t, f)

	report, err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "execution failed")
	require.NotNil(t, report)
	assert.Equal(t, []string{"yaml_import"}, report.Failed)
	assert.Equal(t, []string{"campaign_check", "foundry_export"}, report.Skipped)
}

func TestPlan(t *testing.T) {
	a, _ := newTestApp(t, newFixture(t, ""))

	batches, err := a.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []scheduler.Batch{{"yaml_import"}, {"campaign_check"}, {"foundry_export"}}, batches)
	assert.Empty(t, a.Manager().Lifecycle().Instances(), "planning loads nothing")
}

func TestPlugins_ListsEveryOrigin(t *testing.T) {
	f := newFixture(t, "")
	a, _ := newTestApp(t, f)

	byName := make(map[string]string)
	for _, e := range a.Plugins(context.Background()) {
		byName[e.Descriptor.Name] = e.Origin
	}
	assert.Equal(t, "static", byName["console"])
	assert.Equal(t, "static", byName["yaml_import"])
	assert.Equal(t, f.config, byName["campaign_check"])
	assert.Equal(t, filepath.Join(f.dir, "plugins", "foundry.yaml"), byName["foundry_export"])
	assert.Len(t, byName, 8)
}

func TestDiscover_ReportsBrokenManifests(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "plugins", "broken.yaml"), []byte("name: broken\n"), 0o644))
	a, out := newTestApp(t, f)

	_, err := a.Plan(context.Background())
	require.NoError(t, err, "discovery problems do not block planning")
	assert.Contains(t, out.String(), "Plugin discovery reported problems.")

	n, err := a.Discover(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "does not match schema")
	assert.Zero(t, n, "everything valid was already registered")
}

func TestHealthEndpoints(t *testing.T) {
	a, _ := newTestApp(t, newFixture(t, ""))
	_, err := a.Run(context.Background())
	require.NoError(t, err)

	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)

	code, body = get("/health/plugins")
	assert.Equal(t, http.StatusOK, code)
	var health map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["console"]["state"])

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `ttrpgconv_pipeline_runs_total{outcome="succeeded"} 1`)
	assert.Contains(t, body, `ttrpgconv_plugins_instances{state="running"} 1`)
}

func TestNewApp_Errors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.hcl")
	require.NoError(t, os.WriteFile(path, []byte("pipeline {\n"), 0o644))

	cfg, err := NewConfig(Config{ConfigPaths: []string{path}})
	require.NoError(t, err)
	_, err = NewApp(io.Discard, cfg, hcl.NewLoader())
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestNewApp_OverrideWins(t *testing.T) {
	f := newFixture(t, "")
	cfg, err := NewConfig(Config{
		ConfigPaths: []string{f.config},
		Override:    func(m *config.Model) { m.Pipeline.Select = []string{"campaign_check"} },
	})
	require.NoError(t, err)
	a, err := NewApp(io.Discard, cfg, hcl.NewLoader())
	require.NoError(t, err)
	defer a.Close(context.Background())

	batches, err := a.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []scheduler.Batch{{"yaml_import"}, {"campaign_check"}}, batches)
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = NewConfig(Config{LogFormat: "xml"})
	assert.ErrorContains(t, err, "invalid log format")
	_, err = NewConfig(Config{LogLevel: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
	_, err = NewConfig(Config{HealthcheckPort: 70000})
	assert.Error(t, err)
}

func TestPlan_DefaultSelectionSkipsUndeclaredKinds(t *testing.T) {
	f := newFixture(t, "")
	cfg, err := NewConfig(Config{
		ConfigPaths: []string{f.config},
		Override:    func(m *config.Model) { m.Pipeline.Select = nil },
	})
	require.NoError(t, err)
	a, err := NewApp(io.Discard, cfg, hcl.NewLoader())
	require.NoError(t, err)
	defer a.Close(context.Background())

	batches, err := a.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []scheduler.Batch{{"yaml_import"}, {"campaign_check"}, {"foundry_export"}}, batches)
}
