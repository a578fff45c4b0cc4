package config

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps adapter names to constructors for one provider kind
// (speech-to-text, synthesis, language model). Adapter packages register
// themselves from init so the hosts pick up every compiled-in adapter
// without a central switch.
type Registry[T any] struct {
	kind string

	mu        sync.RWMutex
	factories map[string]func(cfg *Config) (T, error)
}

// NewRegistry creates an empty registry; kind only labels error messages.
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]func(cfg *Config) (T, error)),
	}
}

// Register binds name to a constructor. Registering the same name twice is a
// wiring bug and panics at init time.
func (r *Registry[T]) Register(name string, factory func(cfg *Config) (T, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("config: duplicate %s adapter %q", r.kind, name))
	}
	r.factories[name] = factory
}

// New constructs the named adapter from cfg.
func (r *Registry[T]) New(name string, cfg *Config) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("config: unknown %s adapter %q (have %v)", r.kind, name, r.Names())
	}
	return factory(cfg)
}

// Names returns the registered adapter names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
