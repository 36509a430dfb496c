// Package mongo implements the Bazaar store on MongoDB via the Grove ORM.
// Product price lists live as embedded documents; the configuration is a
// single well-known document kept current with upserts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	bazaar "github.com/xraph/bazaar"
	"github.com/xraph/bazaar/config"
	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/product"
	"github.com/xraph/bazaar/settlement"
	bazaarstore "github.com/xraph/bazaar/store"
)

// Collection name constants.
const (
	colConfig      = "bazaar_config"
	colProducts    = "bazaar_products"
	colSettlements = "bazaar_settlements"
)

// compile-time interface check
var _ bazaarstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all bazaar collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("bazaar/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Config Store ====================

func (s *Store) GetConfig(ctx context.Context) (*config.Config, error) {
	var m configModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": configDocID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bazaar.ErrNotFound
		}
		return nil, fmt.Errorf("bazaar/mongo: get config: %w", err)
	}
	return fromConfigModel(&m)
}

func (s *Store) SaveConfig(ctx context.Context, c *config.Config) error {
	m := toConfigModel(c)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": configDocID}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":                     m.ID,
			"deploy_cost_amount":      m.DeployCostAmount,
			"deploy_cost_currency":    m.DeployCostCurrency,
			"fee_percentage":          m.FeePercentage,
			"fee_recipient":           m.FeeRecipient,
			"discount_currency":       m.DiscountCurrency,
			"discount_cost_amount":    m.DiscountCostAmount,
			"discount_cost_currency":  m.DiscountCostCurrency,
			"discount_fee_percentage": m.DiscountFeePercentage,
			"approved_currencies":     m.ApprovedCurrencies,
			"transfers_allowed":       m.TransfersAllowed,
			"paused":                  m.Paused,
			"created_at":              m.CreatedAt,
			"updated_at":              m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bazaar/mongo: save config: %w", err)
	}
	return nil
}

// ==================== Product Store ====================

// CreateProduct assigns the next product id and inserts the product. The
// unique index on content_hash backstops the duplicate check.
func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	existing, err := s.GetProductIDByHash(ctx, p.ContentHash)
	if err != nil {
		return err
	}
	if existing != 0 {
		return bazaar.ErrDuplicateHash
	}

	next, err := s.nextProductID(ctx)
	if err != nil {
		return err
	}
	p.ID = next

	m := toProductModel(p)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bazaar/mongo: create product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, productID int64) (*product.Product, error) {
	var m productModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": productID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bazaar.ErrProductNotFound
		}
		return nil, fmt.Errorf("bazaar/mongo: get product: %w", err)
	}
	return fromProductModel(&m)
}

// GetProductIDByHash returns 0 with no error when the hash is unregistered.
func (s *Store) GetProductIDByHash(ctx context.Context, contentHash string) (int64, error) {
	var m productModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"content_hash": contentHash}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("bazaar/mongo: get product by hash: %w", err)
	}
	return m.ID, nil
}

// LastProductIDByCreator returns 0 with no error when the creator has never
// deployed.
func (s *Store) LastProductIDByCreator(ctx context.Context, creator id.AccountID) (int64, error) {
	var m productModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"creator": creator.String()}).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("bazaar/mongo: last product by creator: %w", err)
	}
	return m.ID, nil
}

func (s *Store) UpdateProductPrices(ctx context.Context, productID int64, prices []product.Price) error {
	res, err := s.mdb.NewUpdate((*productModel)(nil)).
		Filter(bson.M{"_id": productID}).
		Set("prices", toPriceModels(prices)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bazaar/mongo: update product prices: %w", err)
	}
	if res.MatchedCount() == 0 {
		return bazaar.ErrProductNotFound
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	filter := bson.M{}
	if !opts.Creator.IsNil() {
		filter["creator"] = opts.Creator.String()
	}

	var models []productModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bazaar/mongo: list products: %w", err)
	}

	result := make([]*product.Product, len(models))
	for i := range models {
		p, err := fromProductModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// nextProductID computes the next id from the highest assigned one.
func (s *Store) nextProductID(ctx context.Context) (int64, error) {
	var m productModel
	err := s.mdb.NewFind(&m).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("bazaar/mongo: next product id: %w", err)
	}
	return m.ID + 1, nil
}

// ==================== Settlement Store ====================

func (s *Store) CreateSettlement(ctx context.Context, r *settlement.Record) error {
	m := toSettlementModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bazaar/mongo: create settlement: %w", err)
	}
	return nil
}

func (s *Store) ListSettlements(ctx context.Context, opts settlement.ListOpts) ([]*settlement.Record, error) {
	filter := bson.M{}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if opts.ProductID != 0 {
		filter["product_id"] = opts.ProductID
	}
	if !opts.Payer.IsNil() {
		filter["payer"] = opts.Payer.String()
	}

	var models []settlementModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bazaar/mongo: list settlements: %w", err)
	}

	result := make([]*settlement.Record, len(models))
	for i := range models {
		r, err := fromSettlementModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// migrationIndexes declares the index set per collection.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colConfig: {},
		colProducts: {
			{
				Keys:    bson.D{{Key: "content_hash", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "creator", Value: 1}, {Key: "_id", Value: -1}}},
		},
		colSettlements: {
			{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "payer", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func now() time.Time {
	return time.Now().UTC()
}
