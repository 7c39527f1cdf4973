package inventory

import (
	"context"
	"slices"
	"sync"
)

// MemBackend holds the collection in process memory. It copies on every load and
// save so callers never share a slice with it.
type MemBackend struct {
	mu       sync.RWMutex
	products []Product
}

func NewMemBackend(seed ...Product) *MemBackend {
	return &MemBackend{products: slices.Clone(seed)}
}

func (b *MemBackend) Ping(context.Context) error { return nil }

func (b *MemBackend) Load(context.Context) ([]Product, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Product, len(b.products))
	copy(out, b.products)
	return out, nil
}

func (b *MemBackend) Save(_ context.Context, products []Product) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.products = slices.Clone(products)
	return nil
}
