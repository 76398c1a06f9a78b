package socketio_events

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	f, ok := r.Factory(Kind)
	require.True(t, ok)
	d := f().Descriptor()
	require.NoError(t, d.Validate())
	assert.Equal(t, plugin.RoleLogging, d.Role())
	assert.True(t, d.HasCapability("logging:socketio"))
}

func TestInitialize_RequiresURL(t *testing.T) {
	p := &Plugin{}
	err := p.Initialize(context.Background(), plugin.Config{})
	assert.ErrorContains(t, err, "requires a 'url'")
	assert.NoError(t, p.Cleanup(context.Background()))
}

func TestInitialize_UnreachableServer(t *testing.T) {
	p := &Plugin{}
	start := time.Now()
	err := p.Initialize(context.Background(), plugin.Config{
		"url":     "http://" + closedAddr(t) + "/socket.io/",
		"timeout": "500ms",
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, plugin.HealthDegraded, p.HealthCheck(context.Background()).State)
	assert.ErrorContains(t, p.LogEvent(context.Background(), plugin.Event{Kind: "node_finished"}), "not connected")
	assert.NoError(t, p.Cleanup(context.Background()))
}

func TestEventPayload(t *testing.T) {
	got, err := eventPayload(plugin.Event{RunID: "r1", Kind: "node_finished", Node: "a", Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, "r1", got["run_id"])
	assert.Equal(t, "node_finished", got["kind"])
	assert.Equal(t, "a", got["node"])
	assert.NotContains(t, got, "error")
}
