// Package mcp routes tool calls to plugin connectors. Dispatch is by
// plugin name only; the set of connectors is closed at startup.
package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/siteagent/siteagent/internal/orchestrator"
)

const DefaultToolTimeout = 30 * time.Second

// Connector is one plugin backend. Execute runs a single tool call
// against the upstream service using the registration's credentials.
type Connector interface {
	Tools() []orchestrator.ToolDefinition
	Execute(ctx context.Context, tool string, input map[string]any, credentials json.RawMessage) (any, error)
}

// Registry maps normalized plugin names to connectors and implements
// orchestrator.ToolExecutor. Every dispatched call runs under the
// registry's per-call timeout.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
	timeout    time.Duration
}

type RegistryOption func(*Registry)

// WithToolTimeout overrides the per-call deadline.
func WithToolTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		connectors: make(map[string]Connector),
		timeout:    DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a connector to a plugin name. Later registrations for
// the same normalized name win.
func (r *Registry) Register(name string, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[normalizeName(name)] = c
}

// Connector resolves a plugin name. Matching ignores case and
// surrounding whitespace.
func (r *Registry) Connector(name string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[normalizeName(name)]
	if !ok {
		return nil, &UnsupportedPluginError{Plugin: name}
	}
	return c, nil
}

// ExecuteTool dispatches one call to the connector registered for the
// plugin, with the per-call timeout applied.
func (r *Registry) ExecuteTool(ctx context.Context, plugin, tool string, input map[string]any, credentials json.RawMessage) (any, error) {
	c, err := r.Connector(plugin)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return c.Execute(callCtx, tool, input, credentials)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
