// Package adapters turns JSON source definitions into file content. Each
// source type registers a factory keyed by its "type" field.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Source produces the full content of one file
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Factory builds a Source from its raw JSON definition
type Factory func(raw []byte) (Source, error)

// ErrNoType is returned for a definition without a "type" field
var ErrNoType = errors.New("source definition has no type")

// Registry maps source types to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register ties a factory to a "type" key. The first registration of a
// key wins; later ones are ignored.
func (r *Registry) Register(sourceType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[sourceType]; !exists {
		r.factories[sourceType] = f
	}
}

// Types lists the registered source types
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}

// NewSource picks the factory based on the "type" field of raw
func (r *Registry) NewSource(raw []byte) (Source, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	if meta.Type == "" {
		return nil, ErrNoType
	}
	r.mu.RLock()
	f, ok := r.factories[meta.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no factory for %q", meta.Type)
	}
	return f(raw)
}
