package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xraph/bazaar"
	"github.com/xraph/bazaar/config"
	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/product"
	"github.com/xraph/bazaar/settlement"
)

type Store struct {
	mu sync.RWMutex

	// Config singleton
	cfg *config.Config

	// Product storage
	products      map[int64]*product.Product
	hashIndex     map[string]int64 // contentHash -> productID
	lastByCreator map[string]int64 // creator -> most recent productID (single slot)
	nextProductID int64

	// Settlement records (append-only)
	settlements []*settlement.Record
}

func New() *Store {
	return &Store{
		products:      make(map[int64]*product.Product),
		hashIndex:     make(map[string]int64),
		lastByCreator: make(map[string]int64),
		nextProductID: 1,
	}
}

// Config Store implementation

func (s *Store) GetConfig(_ context.Context) (*config.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg == nil {
		return nil, bazaar.ErrNotFound
	}
	return s.cfg.Clone(), nil
}

func (s *Store) SaveConfig(_ context.Context, c *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = c.Clone()
	return nil
}

// Product Store implementation

func (s *Store) CreateProduct(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.hashIndex[p.ContentHash]; exists {
		return bazaar.ErrDuplicateHash
	}

	p.ID = s.nextProductID
	s.nextProductID++

	s.products[p.ID] = p.Clone()
	s.hashIndex[p.ContentHash] = p.ID
	s.lastByCreator[p.Creator.String()] = p.ID
	return nil
}

func (s *Store) GetProduct(_ context.Context, productID int64) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.products[productID]; ok {
		return p.Clone(), nil
	}
	return nil, bazaar.ErrProductNotFound
}

// GetProductIDByHash returns 0 with no error for an unknown hash; reads are
// total.
func (s *Store) GetProductIDByHash(_ context.Context, contentHash string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hashIndex[contentHash], nil
}

func (s *Store) LastProductIDByCreator(_ context.Context, creator id.AccountID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastByCreator[creator.String()], nil
}

func (s *Store) UpdateProductPrices(_ context.Context, productID int64, prices []product.Price) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return bazaar.ErrProductNotFound
	}
	p.Prices = slices.Clone(prices)
	p.Touch()
	return nil
}

func (s *Store) ListProducts(_ context.Context, opts product.ListOpts) ([]*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*product.Product, 0)
	for pid := int64(1); pid < s.nextProductID; pid++ {
		p, ok := s.products[pid]
		if !ok {
			continue
		}
		if !opts.Creator.IsNil() && p.Creator.String() != opts.Creator.String() {
			continue
		}
		result = append(result, p.Clone())
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Settlement Store implementation

func (s *Store) CreateSettlement(_ context.Context, r *settlement.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settlements = append(s.settlements, r)
	return nil
}

func (s *Store) ListSettlements(_ context.Context, opts settlement.ListOpts) ([]*settlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*settlement.Record, 0)
	for _, r := range s.settlements {
		if opts.Kind != "" && r.Kind != opts.Kind {
			continue
		}
		if opts.ProductID != 0 && r.ProductID != opts.ProductID {
			continue
		}
		if !opts.Payer.IsNil() && r.Payer.String() != opts.Payer.String() {
			continue
		}
		result = append(result, r)
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
