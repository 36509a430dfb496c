// Package plugin provides an extensible plugin system for Bazaar.
// Plugins hook into lifecycle events — the library's event surface for
// external indexers. Each event fires exactly once per successful
// state-changing call, after all state mutations of that call.
package plugin

import "context"

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Config lifecycle hooks
// ──────────────────────────────────────────────────

// OnDeploymentConfigUpdated is called when the deployment cost or currency
// changes. cfg carries the full new *config.Config.
type OnDeploymentConfigUpdated interface {
	Plugin
	OnDeploymentConfigUpdated(ctx context.Context, cfg interface{}) error
}

// OnFeeConfigUpdated is called when the fee percentage or recipient changes.
type OnFeeConfigUpdated interface {
	Plugin
	OnFeeConfigUpdated(ctx context.Context, cfg interface{}) error
}

// OnDiscountConfigSet is called when discount terms are set.
type OnDiscountConfigSet interface {
	Plugin
	OnDiscountConfigSet(ctx context.Context, cfg interface{}) error
}

// OnCurrencyApproved is called when a currency joins the approved set.
type OnCurrencyApproved interface {
	Plugin
	OnCurrencyApproved(ctx context.Context, currency string) error
}

// OnCurrencyRemoved is called when a currency leaves the approved set.
type OnCurrencyRemoved interface {
	Plugin
	OnCurrencyRemoved(ctx context.Context, currency string) error
}

// OnTransfersAllowedSet is called when the access-token transfer gate flips.
type OnTransfersAllowedSet interface {
	Plugin
	OnTransfersAllowedSet(ctx context.Context, allowed bool) error
}

// OnPaused is called when the system pauses.
type OnPaused interface {
	Plugin
	OnPaused(ctx context.Context) error
}

// OnUnpaused is called when the system unpauses.
type OnUnpaused interface {
	Plugin
	OnUnpaused(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Product lifecycle hooks
// ──────────────────────────────────────────────────

// OnProductDeployed is called after a successful deployment settlement.
type OnProductDeployed interface {
	Plugin
	OnProductDeployed(ctx context.Context, creator string, contentHash string, productID int64) error
}

// OnPriceUpdated is called after a successful reprice. newPrices carries the
// full replacement price list ([]product.Price).
type OnPriceUpdated interface {
	Plugin
	OnPriceUpdated(ctx context.Context, creator string, productID int64, newPrices interface{}) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed is called after a successful subscription settlement.
type OnSubscribed interface {
	Plugin
	OnSubscribed(ctx context.Context, subscriber string, productID int64) error
}

// OnAccessTransferred is called after access-token units move between
// identities.
type OnAccessTransferred interface {
	Plugin
	OnAccessTransferred(ctx context.Context, from, to string, productID int64, qty int64) error
}
