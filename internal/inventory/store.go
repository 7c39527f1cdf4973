package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("product not found")
	ErrPersist  = errors.New("persist products")
)

// Backend is the durable home of the collection. Load and Save always move the
// whole ordered collection; Save must replace the prior form atomically.
type Backend interface {
	Load(ctx context.Context) ([]Product, error)
	Save(ctx context.Context, products []Product) error
	Ping(ctx context.Context) error
}

// Store owns the collection for one load-mutate-persist cycle. Cycles are
// serialized by a process-wide mutex, which keeps id allocation and
// read-modify-write correct inside one process. Several processes sharing one
// backend still race: the last writer wins.
type Store struct {
	backend Backend
	log     *zap.Logger
	metrics *StoreMetrics

	mu sync.Mutex
}

// NewStore wires a backend. log and metrics may be nil.
func NewStore(b Backend, log *zap.Logger, metrics *StoreMetrics) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: b, log: log, metrics: metrics}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Load reads the persisted collection. Read and decode failures are logged and
// answered with an empty collection; they never reach the caller.
func (s *Store) Load(ctx context.Context) []Product {
	products, err := s.backend.Load(ctx)
	if err != nil {
		s.log.Warn("load products failed, using empty collection", zap.Error(err))
		s.metrics.loadFailed()
		return []Product{}
	}
	if products == nil {
		products = []Product{}
	}
	return products
}

// Persist writes the full collection. A failed write is returned wrapped in
// ErrPersist.
func (s *Store) Persist(ctx context.Context, products []Product) error {
	if err := s.backend.Save(ctx, products); err != nil {
		s.log.Error("persist products failed", zap.Error(err), zap.Int("count", len(products)))
		s.metrics.persisted(false)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.metrics.persisted(true)
	return nil
}

// NextID is one past the largest id, or 1 for an empty collection.
func NextID(products []Product) int {
	next := 1
	for _, p := range products {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	return next
}

// FindIndex returns the position of the record with id, or -1.
func FindIndex(products []Product, id int) int {
	return slices.IndexFunc(products, func(p Product) bool { return p.ID == id })
}

func (s *Store) List(ctx context.Context) []Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Load(ctx)
}

func (s *Store) ListInStock(ctx context.Context) []Product {
	return inStockOnly(s.List(ctx))
}

func (s *Store) Get(ctx context.Context, id int) (Product, error) {
	products := s.List(ctx)

	i := FindIndex(products, id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	return products[i], nil
}

// Create assigns the next id to p, appends it and rewrites the collection.
func (s *Store) Create(ctx context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := s.Load(ctx)
	p.ID = NextID(products)
	products = append(products, p)

	if err := s.Persist(ctx, products); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Update runs apply against the stored record with id and persists the result.
// An error from apply aborts the cycle untouched and is returned as is. The id
// of the record cannot be changed by apply.
func (s *Store) Update(ctx context.Context, id int, apply func(Product) (Product, error)) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := s.Load(ctx)
	i := FindIndex(products, id)
	if i < 0 {
		return Product{}, ErrNotFound
	}

	updated, err := apply(products[i])
	if err != nil {
		return Product{}, err
	}
	updated.ID = products[i].ID
	products[i] = updated

	if err := s.Persist(ctx, products); err != nil {
		return Product{}, err
	}
	return updated, nil
}

// Delete removes exactly one record and returns its state before removal.
func (s *Store) Delete(ctx context.Context, id int) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := s.Load(ctx)
	i := FindIndex(products, id)
	if i < 0 {
		return Product{}, ErrNotFound
	}

	removed := products[i]
	products = slices.Delete(products, i, i+1)

	if err := s.Persist(ctx, products); err != nil {
		return Product{}, err
	}
	return removed, nil
}
