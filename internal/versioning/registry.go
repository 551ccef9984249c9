package versioning

import (
	"context"
	"fmt"
	"sync"

	"github.com/rpattn/versioned/internal/domain"
)

// LoaderFunc materializes a referenced record from its id.
type LoaderFunc func(ctx context.Context, id string) (any, error)

// Registry maps Ref kinds to loader functions. It replaces the dynamic class
// resolution a polymorphic reference column would otherwise require: every
// kind that can appear as a changer registers how to load itself.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]LoaderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: map[string]LoaderFunc{}}
}

// Register associates a kind with a loader. Re-registering a kind replaces
// the previous loader.
func (r *Registry) Register(kind string, loader LoaderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[kind] = loader
}

// Load materializes the record the ref points at.
func (r *Registry) Load(ctx context.Context, ref domain.Ref) (any, error) {
	r.mu.RLock()
	loader, ok := r.loaders[ref.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no loader registered for kind %q", ref.Kind)
	}
	return loader(ctx, ref.ID)
}
