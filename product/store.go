package product

import (
	"context"

	"github.com/xraph/bazaar/id"
)

type Store interface {
	// Create assigns the next product id (starting at 1, strictly
	// increasing) and persists the product. Fails on a duplicate content
	// hash without consuming an id.
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, productID int64) (*Product, error)
	GetIDByHash(ctx context.Context, contentHash string) (int64, error)
	// LastIDByCreator returns the id of the creator's most recent product.
	// This is a single slot: a second deploy by the same creator overwrites
	// the pointer to the first.
	LastIDByCreator(ctx context.Context, creator id.AccountID) (int64, error)
	UpdatePrices(ctx context.Context, productID int64, prices []Price) error
	List(ctx context.Context, opts ListOpts) ([]*Product, error)
}

type ListOpts struct {
	Creator id.AccountID
	Limit   int
	Offset  int
}
