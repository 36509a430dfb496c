package bazaar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/bazaar/auth"
	"github.com/xraph/bazaar/config"
	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/ledger"
	"github.com/xraph/bazaar/plugin"
	"github.com/xraph/bazaar/product"
	"github.com/xraph/bazaar/settlement"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/token"
	"github.com/xraph/bazaar/types"
)

// Engine is the product registry and settlement engine.
//
// Every mutating entry point runs as one atomic unit of work: validation
// reads first, then ledger transfers, then state mutation, then the event.
// A non-blocking guard excludes overlapping guarded calls — a nested call
// triggered from inside a ledger transfer (or a concurrent caller) fails
// immediately with ErrReentrantCall and the in-flight call proceeds
// untouched. Callers that lose the race simply retry on a fresh call.
type Engine struct {
	store   store.Store
	ledger  ledger.Ledger
	issuer  token.Issuer
	mover   token.Mover
	authz   auth.Authorizer
	plugins *plugin.Registry
	logger  *slog.Logger

	// admin receives Manager and Admin grants at Start when no Authorizer
	// was injected.
	admin id.AccountID

	// callMu is the settlement guard. TryLock on entry; a failed TryLock is
	// a reentrant (or overlapping) call.
	callMu sync.Mutex

	// skipMigrate makes Start skip store.Migrate; config seeding, role
	// grants, and plugin init still run.
	skipMigrate bool
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	bank := token.NewBank()
	e := &Engine{
		store:   s,
		ledger:  ledger.NewInMemory(),
		issuer:  bank,
		mover:   bank,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	// Capability checks must work from construction, not only after Start:
	// the engine may be resolved from a DI container before its lifecycle
	// hooks run.
	if e.authz == nil {
		rm := auth.NewRoleMap()
		if !e.admin.IsNil() {
			rm.Grant(e.admin, auth.RoleManager)
			rm.Grant(e.admin, auth.RoleAdmin)
		}
		e.authz = rm
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithLedger sets the value-transfer collaborator.
func WithLedger(l ledger.Ledger) Option {
	return func(e *Engine) {
		e.ledger = l
	}
}

// WithTokenIssuer sets the access-token issuance collaborator.
func WithTokenIssuer(i token.Issuer) Option {
	return func(e *Engine) {
		e.issuer = i
		if m, ok := i.(token.Mover); ok {
			e.mover = m
		}
	}
}

// WithAuthorizer sets the capability-check collaborator.
func WithAuthorizer(a auth.Authorizer) Option {
	return func(e *Engine) {
		e.authz = a
	}
}

// WithAdmin sets the default admin identity. When no Authorizer is injected,
// construction grants this identity the Manager and Admin roles on a fresh
// RoleMap.
func WithAdmin(admin id.AccountID) Option {
	return func(e *Engine) {
		e.admin = admin
	}
}

// WithSkipMigrate makes Start skip schema migration. Use when migrations are
// managed externally; the rest of the Start sequence still runs.
func WithSkipMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// Start migrates the store, creates the initial configuration if absent, and
// initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	if _, err := e.store.GetConfig(ctx); err != nil {
		if !IsNotFound(err) {
			return err
		}
		if err := e.store.SaveConfig(ctx, config.New()); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("bazaar started", "admin", e.admin.String())

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Configuration management
// ──────────────────────────────────────────────────

// SetDeploymentConfig sets the global deployment cost and currency.
// Requires the Manager capability.
func (e *Engine) SetDeploymentConfig(ctx context.Context, caller id.AccountID, cost types.Money) error {
	if err := e.requireRole(ctx, caller, auth.RoleManager); err != nil {
		return err
	}
	// A negative cost would reverse the deployment charge.
	if cost.Amount < 0 {
		return ErrInvalidAmount
	}

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}

	cfg.DeploymentCost = cost
	cfg.Touch()
	if err := e.store.SaveConfig(ctx, cfg); err != nil {
		return err
	}

	e.logger.Info("deployment config updated",
		"cost", cost.Amount,
		"currency", cost.Currency,
	)
	e.plugins.EmitDeploymentConfigUpdated(ctx, cfg.Clone())
	return nil
}

// SetFeeConfig sets the fee percentage and recipient. Requires the Manager
// capability. The recipient must be a real identity.
func (e *Engine) SetFeeConfig(ctx context.Context, caller id.AccountID, percentage int64, recipient id.AccountID) error {
	if err := e.requireRole(ctx, caller, auth.RoleManager); err != nil {
		return err
	}
	if recipient.IsNil() {
		return ErrInvalidRecipient
	}
	if percentage < 0 || percentage > 100 {
		return ErrInvalidPercentage
	}

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}

	cfg.FeePercentage = percentage
	cfg.FeeRecipient = recipient
	cfg.Touch()
	if err := e.store.SaveConfig(ctx, cfg); err != nil {
		return err
	}

	e.logger.Info("fee config updated",
		"percentage", percentage,
		"recipient", recipient.String(),
	)
	e.plugins.EmitFeeConfigUpdated(ctx, cfg.Clone())
	return nil
}

// SetDiscountConfig sets the discount currency, discounted deployment cost,
// and discounted fee percentage. Requires the Manager capability.
func (e *Engine) SetDiscountConfig(ctx context.Context, caller id.AccountID, currency string, cost types.Money, percentage int64) error {
	if err := e.requireRole(ctx, caller, auth.RoleManager); err != nil {
		return err
	}
	if percentage < 0 || percentage > 100 {
		return ErrInvalidPercentage
	}
	if cost.Amount < 0 {
		return ErrInvalidAmount
	}

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}

	cfg.DiscountCurrency = currency
	cfg.DiscountDeploymentCost = cost
	cfg.DiscountFeePercentage = percentage
	cfg.Touch()
	if err := e.store.SaveConfig(ctx, cfg); err != nil {
		return err
	}

	e.logger.Info("discount config set",
		"currency", currency,
		"cost", cost.Amount,
		"percentage", percentage,
	)
	e.plugins.EmitDiscountConfigSet(ctx, cfg.Clone())
	return nil
}

// ApproveCurrency adds a currency to the approved set. Requires the Manager
// capability. Approving an already-approved currency is a no-op.
func (e *Engine) ApproveCurrency(ctx context.Context, caller id.AccountID, currency string) error {
	if err := e.requireRole(ctx, caller, auth.RoleManager); err != nil {
		return err
	}

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}

	cfg.Approve(currency)
	cfg.Touch()
	if err := e.store.SaveConfig(ctx, cfg); err != nil {
		return err
	}

	e.logger.Info("currency approved", "currency", currency)
	e.plugins.EmitCurrencyApproved(ctx, currency)
	return nil
}

// DisapproveCurrency removes a currency from the approved set. Requires the
// Manager capability. Existing product prices in the currency are kept; only
// new price lists and new subscriptions are blocked.
func (e *Engine) DisapproveCurrency(ctx context.Context, caller id.AccountID, currency string) error {
	if err := e.requireRole(ctx, caller, auth.RoleManager); err != nil {
		return err
	}

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}

	cfg.Disapprove(currency)
	cfg.Touch()
	if err := e.store.SaveConfig(ctx, cfg); err != nil {
		return err
	}

	e.logger.Info("currency removed", "currency", currency)
	e.plugins.EmitCurrencyRemoved(ctx, currency)
	return nil
}

// SetTransfersAllowed flips the access-token transfer gate. Requires the
// Manager capability.
func (e *Engine) SetTransfersAllowed(ctx context.Context, caller id.AccountID, allowed bool) error {
	if err := e.requireRole(ctx, caller, auth.RoleManager); err != nil {
		return err
	}

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}

	cfg.TransfersAllowed = allowed
	cfg.Touch()
	if err := e.store.SaveConfig(ctx, cfg); err != nil {
		return err
	}

	e.logger.Info("transfers allowed set", "allowed", allowed)
	e.plugins.EmitTransfersAllowedSet(ctx, allowed)
	return nil
}

// Pause gates every settlement and price update until Unpause. Requires the
// Admin capability. Reads are never gated.
func (e *Engine) Pause(ctx context.Context, caller id.AccountID) error {
	return e.setPaused(ctx, caller, true)
}

// Unpause lifts the pause gate. Requires the Admin capability.
func (e *Engine) Unpause(ctx context.Context, caller id.AccountID) error {
	return e.setPaused(ctx, caller, false)
}

func (e *Engine) setPaused(ctx context.Context, caller id.AccountID, paused bool) error {
	if err := e.requireRole(ctx, caller, auth.RoleAdmin); err != nil {
		return err
	}

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}

	cfg.Paused = paused
	cfg.Touch()
	if err := e.store.SaveConfig(ctx, cfg); err != nil {
		return err
	}

	e.logger.Info("pause state changed", "paused", paused)
	if paused {
		e.plugins.EmitPaused(ctx)
	} else {
		e.plugins.EmitUnpaused(ctx)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// GetConfig returns a snapshot of the current configuration.
func (e *Engine) GetConfig(ctx context.Context) (*config.Config, error) {
	return e.store.GetConfig(ctx)
}

// ApprovedCurrencies returns the ordered approved-currency list.
func (e *Engine) ApprovedCurrencies(ctx context.Context) ([]string, error) {
	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.ApprovedCurrencies, nil
}

// GetProduct retrieves a product by id.
func (e *Engine) GetProduct(ctx context.Context, productID int64) (*product.Product, error) {
	return e.store.GetProduct(ctx, productID)
}

// Prices returns the product's ordered price list. Unknown products yield an
// empty list, not an error.
func (e *Engine) Prices(ctx context.Context, productID int64) ([]product.Price, error) {
	p, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		if IsNotFound(err) {
			return []product.Price{}, nil
		}
		return nil, err
	}
	return p.Prices, nil
}

// HashOf returns the content hash of a product. Unknown products yield the
// empty string.
func (e *Engine) HashOf(ctx context.Context, productID int64) (string, error) {
	p, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return p.ContentHash, nil
}

// IDOf returns the product id registered for a content hash, or 0 when the
// hash is unknown.
func (e *Engine) IDOf(ctx context.Context, contentHash string) (int64, error) {
	return e.store.GetProductIDByHash(ctx, contentHash)
}

// LastProductOf returns the id of the creator's most recently deployed
// product, or 0 when the creator has none. This is a single slot: a second
// deploy by the same creator overwrites the pointer to the first.
func (e *Engine) LastProductOf(ctx context.Context, creator id.AccountID) (int64, error) {
	return e.store.LastProductIDByCreator(ctx, creator)
}

// ListProducts lists products.
func (e *Engine) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	return e.store.ListProducts(ctx, opts)
}

// ListSettlements lists settlement records.
func (e *Engine) ListSettlements(ctx context.Context, opts settlement.ListOpts) ([]*settlement.Record, error) {
	return e.store.ListSettlements(ctx, opts)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (e *Engine) requireRole(ctx context.Context, identity id.AccountID, role auth.Role) error {
	ok, err := e.authz.HasRole(ctx, identity, role)
	if err != nil {
		return fmt.Errorf("bazaar: role check: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s requires %s", ErrUnauthorized, identity, role)
	}
	return nil
}

// enterGuard acquires the settlement guard without blocking. A held guard
// means another guarded call is in flight on this engine — most importantly
// a re-entry triggered from inside a ledger transfer of the current call.
func (e *Engine) enterGuard() error {
	if !e.callMu.TryLock() {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) exitGuard() {
	e.callMu.Unlock()
}

// loadConfig reads a fresh configuration snapshot. Settlement never caches
// config across calls.
func (e *Engine) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return config.New(), nil
		}
		return nil, err
	}
	return cfg, nil
}
