package schema_validator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument_BuiltInSchema(t *testing.T) {
	ctx := context.Background()
	p := &Plugin{}
	require.NoError(t, p.Initialize(ctx, nil))
	assert.Equal(t, plugin.Healthy(), p.HealthCheck(ctx))

	good := map[string]any{
		"name":   "Curse of the Crimson Throne",
		"system": "pf1e",
		"scenes": []any{map[string]any{"name": "Korvosa"}},
	}
	assert.NoError(t, p.ValidateDocument(ctx, good))

	bad := map[string]any{"name": "No system"}
	err := p.ValidateDocument(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	require.NoError(t, p.Cleanup(ctx))
	assert.ErrorContains(t, p.ValidateDocument(ctx, good), "not initialised")
}

func TestInitialize_InlineSchema(t *testing.T) {
	ctx := context.Background()
	p := &Plugin{}
	require.NoError(t, p.Initialize(ctx, plugin.Config{"schema": map[string]any{
		"type":     "object",
		"required": []any{"level"},
	}}))
	assert.NoError(t, p.ValidateDocument(ctx, map[string]any{"level": 3}))
	assert.ErrorIs(t, p.ValidateDocument(ctx, map[string]any{}), ErrInvalidDocument)

	p = &Plugin{}
	require.NoError(t, p.Initialize(ctx, plugin.Config{"schema": `{"type": "array"}`}))
	assert.NoError(t, p.ValidateDocument(ctx, []any{1, 2}))
	assert.Error(t, p.ValidateDocument(ctx, "text"))
}

func TestInitialize_SchemaFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "actor.schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": "object", "required": ["hp"]}`), 0o644))

	p := &Plugin{}
	require.NoError(t, p.Initialize(ctx, plugin.Config{"schema_file": path}))
	assert.NoError(t, p.ValidateDocument(ctx, map[string]any{"hp": 12}))

	err := (&Plugin{}).Initialize(ctx, plugin.Config{"schema_file": filepath.Join(t.TempDir(), "missing.json")})
	assert.ErrorContains(t, err, "failed to read schema file")

	err = (&Plugin{}).Initialize(ctx, plugin.Config{"schema": 42})
	assert.ErrorContains(t, err, "unsupported value")
}
