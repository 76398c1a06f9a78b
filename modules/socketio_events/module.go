// Package socketio_events provides a logging plugin that forwards
// orchestration events to a socket.io server, so a remote dashboard can follow
// a conversion run live.
package socketio_events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Kind is the registry kind of the socket.io event sink.
const Kind = "socketio_events"

const (
	// DefaultEvent is the event name events are emitted under.
	DefaultEvent = "ttrpgconv:event"
	// DefaultConnectTimeout bounds the initial connection.
	DefaultConnectTimeout = 10 * time.Second
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the socketio_events plugin kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(Kind, func() plugin.Plugin { return &Plugin{} })
}

// Plugin emits events over a socket.io connection. Config keys: "url"
// (required), "namespace", "event", "timeout", "insecure_skip_verify".
type Plugin struct {
	mu    sync.Mutex
	io    *socket.Socket
	event string
}

var _ plugin.LoggingPlugin = (*Plugin)(nil)

func (p *Plugin) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:         Kind,
		Version:      "1.0.0",
		Description:  "Forwards pipeline events to a socket.io server.",
		Capabilities: []string{"logging", "logging:socketio"},
	}
}

// Initialize connects to the server and waits for the connection to be
// acknowledged.
func (p *Plugin) Initialize(ctx context.Context, cfg plugin.Config) error {
	rawURL := cfg.String("url", "")
	if rawURL == "" {
		return fmt.Errorf("socketio_events requires a 'url'")
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout, err := cfg.Duration("timeout", DefaultConnectTimeout)
	if err != nil {
		return err
	}
	namespace := cfg.String("namespace", "/")

	logger := ctxlog.FromContext(ctx).With("plugin", Kind, "url", rawURL)

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	opts.SetReconnection(false)
	if cfg.Bool("insecure_skip_verify", false) {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected to event sink.", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.io = io
	p.event = cfg.String("event", DefaultEvent)
	return nil
}

// Cleanup disconnects. It is safe to call when Initialize failed.
func (p *Plugin) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.io != nil {
		p.io.Disconnect()
		p.io = nil
	}
	return nil
}

func (p *Plugin) HealthCheck(ctx context.Context) plugin.Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.io == nil:
		return plugin.Degraded("not connected")
	case !p.io.Connected():
		return plugin.Unhealthy("connection lost")
	default:
		return plugin.Healthy()
	}
}

// LogEvent emits ev as a JSON object.
func (p *Plugin) LogEvent(ctx context.Context, ev plugin.Event) error {
	payload, err := eventPayload(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.io == nil {
		return fmt.Errorf("socketio_events plugin is not connected")
	}
	return p.io.Emit(p.event, payload)
}

// eventPayload converts ev into the generic map the socket.io encoder sends.
func eventPayload(ev plugin.Event) (map[string]any, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
