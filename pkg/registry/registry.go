// Package registry maps function names to handler implementations so that
// definition files can refer to Go code by name.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/mosaic/pkg/domain"
)

// ErrUnknownFunc is returned when a name has no registered function.
var ErrUnknownFunc = errors.New("unknown handler function")

// Registry manages the available handler functions.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]domain.HandlerFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fns: make(map[string]domain.HandlerFunc),
	}
}

// Register adds a function to the registry.
// If a function with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn domain.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (domain.HandlerFunc, error) {
	r.mu.RLock()
	fn, ok := r.fns[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunc, name)
	}
	return fn, nil
}

// Names lists the registered functions, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
