package storage

import (
	"context"
	"sync"

	"github.com/guttosm/pricefinder/internal/domain/models"
)

type productBrand struct {
	productID int64
	brandID   int64
}

// MemoryStore is a thread-safe in-memory CandidateStore.
// Records without an ID get a sequential one on Add.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	prices map[productBrand][]models.Price
}

// compile-time assertion that MemoryStore implements CandidateStore
var _ CandidateStore = (*MemoryStore)(nil)

// NewMemoryStore constructs a store pre-loaded with prices.
func NewMemoryStore(prices ...models.Price) *MemoryStore {
	s := &MemoryStore{prices: make(map[productBrand][]models.Price)}
	s.Add(prices...)
	return s
}

// Add stores prices, keeping insertion order per product/brand pair.
func (s *MemoryStore) Add(prices ...models.Price) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range prices {
		if p.ID == 0 {
			s.nextID++
			p.ID = s.nextID
		} else if p.ID > s.nextID {
			s.nextID = p.ID
		}
		key := productBrand{productID: p.ProductID, brandID: p.BrandID}
		s.prices[key] = append(s.prices[key], p)
	}
}

// Len returns the number of stored prices.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ps := range s.prices {
		n += len(ps)
	}
	return n
}

func (s *MemoryStore) FindCandidates(ctx context.Context, productID, brandID int64) ([]models.Price, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.prices[productBrand{productID: productID, brandID: brandID}]
	out := make([]models.Price, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
