// Package postgres implements the Bazaar store on PostgreSQL via the Grove
// ORM. Products are stored with their price lists as JSONB documents; the
// configuration lives in a single well-known row.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	bazaar "github.com/xraph/bazaar"
	"github.com/xraph/bazaar/config"
	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/product"
	"github.com/xraph/bazaar/settlement"
	bazaarstore "github.com/xraph/bazaar/store"
)

// compile-time interface check
var _ bazaarstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("bazaar/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bazaar/postgres: migration failed: %w", err)
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
	m := new(configModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", configRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bazaar.ErrNotFound
		}
		return nil, err
	}
	return fromConfigModel(m)
}

func (s *Store) SaveConfig(ctx context.Context, c *config.Config) error {
	m := toConfigModel(c)
	_, err := s.pg.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("deploy_cost_amount = EXCLUDED.deploy_cost_amount").
		Set("deploy_cost_currency = EXCLUDED.deploy_cost_currency").
		Set("fee_percentage = EXCLUDED.fee_percentage").
		Set("fee_recipient = EXCLUDED.fee_recipient").
		Set("discount_currency = EXCLUDED.discount_currency").
		Set("discount_cost_amount = EXCLUDED.discount_cost_amount").
		Set("discount_cost_currency = EXCLUDED.discount_cost_currency").
		Set("discount_fee_percentage = EXCLUDED.discount_fee_percentage").
		Set("approved_currencies = EXCLUDED.approved_currencies").
		Set("transfers_allowed = EXCLUDED.transfers_allowed").
		Set("paused = EXCLUDED.paused").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Product Store ====================

// CreateProduct assigns the next product id and inserts the product. The
// unique index on content_hash backstops the duplicate check under
// concurrent writers.
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
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bazaar/postgres: create product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, productID int64) (*product.Product, error) {
	m := new(productModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", productID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bazaar.ErrProductNotFound
		}
		return nil, err
	}
	return fromProductModel(m)
}

// GetProductIDByHash returns 0 with no error when the hash is unregistered.
func (s *Store) GetProductIDByHash(ctx context.Context, contentHash string) (int64, error) {
	m := new(productModel)
	err := s.pg.NewSelect(m).
		Where("content_hash = $1", contentHash).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return m.ID, nil
}

// LastProductIDByCreator returns 0 with no error when the creator has never
// deployed.
func (s *Store) LastProductIDByCreator(ctx context.Context, creator id.AccountID) (int64, error) {
	m := new(productModel)
	err := s.pg.NewSelect(m).
		Where("creator = $1", creator.String()).
		OrderExpr("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return m.ID, nil
}

func (s *Store) UpdateProductPrices(ctx context.Context, productID int64, prices []product.Price) error {
	raw, err := json.Marshal(prices)
	if err != nil {
		return err
	}

	res, err := s.pg.NewUpdate((*productModel)(nil)).
		Set("prices = $1", json.RawMessage(raw)).
		Set("updated_at = $2", now()).
		Where("id = $3", productID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bazaar/postgres: update product prices: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return bazaar.ErrProductNotFound
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	var models []productModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.Creator.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("creator = $%d", argIdx), opts.Creator.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bazaar/postgres: list products: %w", err)
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

// nextProductID computes the next id from the highest assigned one. Ids
// start at 1 and are never reused; failed inserts never consume one.
func (s *Store) nextProductID(ctx context.Context) (int64, error) {
	m := new(productModel)
	err := s.pg.NewSelect(m).
		OrderExpr("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 1, nil
		}
		return 0, err
	}
	return m.ID + 1, nil
}

// ==================== Settlement Store ====================

func (s *Store) CreateSettlement(ctx context.Context, r *settlement.Record) error {
	m := toSettlementModel(r)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bazaar/postgres: create settlement: %w", err)
	}
	return nil
}

func (s *Store) ListSettlements(ctx context.Context, opts settlement.ListOpts) ([]*settlement.Record, error) {
	var models []settlementModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
	}
	if opts.ProductID != 0 {
		argIdx++
		q = q.Where(fmt.Sprintf("product_id = $%d", argIdx), opts.ProductID)
	}
	if !opts.Payer.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("payer = $%d", argIdx), opts.Payer.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bazaar/postgres: list settlements: %w", err)
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func now() time.Time {
	return time.Now().UTC()
}
