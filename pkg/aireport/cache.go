package aireport

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ModelLoader is the slice of the repository the catalog needs.
type ModelLoader interface {
	GetModel(ctx context.Context, id uuid.UUID) (*AIModel, error)
}

// Catalog is a lazily-populated, process-lifetime cache of model catalog
// entries keyed by model id. Acquire loads a model once and serves it from
// memory afterwards; weights themselves live behind the inference backend,
// which keeps its own per-model state warm.
type Catalog struct {
	loader ModelLoader

	mu      sync.RWMutex
	entries map[uuid.UUID]*AIModel
}

func NewCatalog(loader ModelLoader) *Catalog {
	return &Catalog{
		loader:  loader,
		entries: make(map[uuid.UUID]*AIModel),
	}
}

// Acquire returns the catalog entry for a model id, loading it on first use.
func (c *Catalog) Acquire(ctx context.Context, id uuid.UUID) (*AIModel, error) {
	c.mu.RLock()
	model, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		return model, nil
	}

	model, err := c.loader.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[id] = model
	c.mu.Unlock()
	return model, nil
}
