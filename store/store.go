package store

import (
	"context"

	"github.com/xraph/bazaar/config"
	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/product"
	"github.com/xraph/bazaar/settlement"
)

// Store is the unified storage interface for all Bazaar entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Config methods
	GetConfig(ctx context.Context) (*config.Config, error)
	SaveConfig(ctx context.Context, c *config.Config) error

	// Product methods
	CreateProduct(ctx context.Context, p *product.Product) error
	GetProduct(ctx context.Context, productID int64) (*product.Product, error)
	GetProductIDByHash(ctx context.Context, contentHash string) (int64, error)
	LastProductIDByCreator(ctx context.Context, creator id.AccountID) (int64, error)
	UpdateProductPrices(ctx context.Context, productID int64, prices []product.Price) error
	ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error)

	// Settlement methods
	CreateSettlement(ctx context.Context, r *settlement.Record) error
	ListSettlements(ctx context.Context, opts settlement.ListOpts) ([]*settlement.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
