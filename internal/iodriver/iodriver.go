// Package iodriver implements the pluggable input and output buffer
// abstraction keyed by (game-id, entity-name[, channel]), with a named
// driver registry mirroring the Dispatcher's scope registry discipline:
// mutated only at startup and extension load/unload.
package iodriver

import (
	"fmt"
	"sync"

	"github.com/dungeongate/adventured/internal/apierr"
)

// Message is one entry of an output buffer.
type Message struct {
	Timestamp int64  `json:"timestamp"`
	Order     uint64 `json:"order"`
	Content   string `json:"content"`
}

// OutputDriver is the output-buffer surface. A driver may decline random
// access (pub/sub style) by returning apierr.Unsupported("...") from Size
// and Pop; Push must always work.
type OutputDriver interface {
	Name() string
	Push(game uint64, entity, channel string, msg Message) error
	Size(game uint64, entity, channel string) (int, error)
	Pop(game uint64, entity, channel string) (Message, bool, error)

	// Destroy drops every buffer belonging to game, called on game
	// destruction.
	Destroy(game uint64)
}

// InputDriver is the input-buffer surface: an at-most-one pending command
// slot per (game, entity).
type InputDriver interface {
	Name() string
	IsSet(game uint64, entity string) (bool, error)
	Set(game uint64, entity, command string) error
	Consume(game uint64, entity string) (string, bool, error)
	Destroy(game uint64)
}

// Registry is the named driver lookup table. Built-in drivers are
// registered at construction; extensions may add more at load time.
type Registry struct {
	mu      sync.RWMutex
	outputs map[string]OutputDriver
	inputs  map[string]InputDriver
}

// NewRegistry returns an empty registry; callers register built-ins
// immediately after construction.
func NewRegistry() *Registry {
	return &Registry{
		outputs: make(map[string]OutputDriver),
		inputs:  make(map[string]InputDriver),
	}
}

// RegisterOutput adds a named output driver. Re-registering the same name
// replaces it — used both for built-ins at startup and extension loading.
func (r *Registry) RegisterOutput(d OutputDriver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[d.Name()] = d
}

// RegisterInput adds a named input driver.
func (r *Registry) RegisterInput(d InputDriver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs[d.Name()] = d
}

// Output returns the named output driver; an unknown name yields an
// apierr.NotFound error.
func (r *Registry) Output(name string) (OutputDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.outputs[name]
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("output driver %q not found", name))
	}
	return d, nil
}

// Input returns the named input driver; an unknown name yields an
// apierr.NotFound error.
func (r *Registry) Input(name string) (InputDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.inputs[name]
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("input driver %q not found", name))
	}
	return d, nil
}
