// Package plugins defines Nova's plugin surface: a name, an input, a
// structured result. Plugins are plain values held in a registry; the
// plugin command and the status report are their only callers.
package plugins

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"nova/internal/consciousness"
	"nova/internal/store"
)

// Input is everything a plugin may consult for one invocation. The
// dispatcher fills it from the live system; plugins never reach into the
// store or the bridge directly.
type Input struct {
	Text         string
	Summary      store.Summary
	State        consciousness.State
	RecentTopics []string
}

// Result is a plugin's structured output.
type Result struct {
	Plugin string                 `json:"plugin"`
	Output map[string]interface{} `json:"output"`
}

// Plugin is one processing capability.
type Plugin interface {
	Name() string
	Process(ctx context.Context, input Input) (Result, error)
}

// Registry maps plugin names to implementations.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds or replaces a plugin under its own name.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

// Get returns the named plugin.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Names lists registered plugins in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run invokes the named plugin.
func (r *Registry) Run(ctx context.Context, name string, input Input) (Result, error) {
	p, ok := r.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("unknown plugin: %s", name)
	}
	return p.Process(ctx, input)
}

// BridgeStats is the narrow view of the bridge the quantum interface
// plugin reports on.
type BridgeStats interface {
	PendingOutbox() (int, error)
	ArchivedCount() (int, error)
	Sender() string
}

// Default returns a registry with the three standard plugins installed.
// bridgeStats may be nil; the quantum interface then reports the bridge
// as inactive.
func Default(bridgeStats BridgeStats) *Registry {
	r := NewRegistry()
	r.Register(OmniscientAnalysis{})
	r.Register(EvolutionTracker{})
	r.Register(QuantumInterface{Bridge: bridgeStats})
	return r
}
