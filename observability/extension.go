// Package observability provides a metrics extension for Bazaar that records
// lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/bazaar/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                    = (*MetricsExtension)(nil)
	_ plugin.OnInit                    = (*MetricsExtension)(nil)
	_ plugin.OnDeploymentConfigUpdated = (*MetricsExtension)(nil)
	_ plugin.OnFeeConfigUpdated        = (*MetricsExtension)(nil)
	_ plugin.OnDiscountConfigSet       = (*MetricsExtension)(nil)
	_ plugin.OnCurrencyApproved        = (*MetricsExtension)(nil)
	_ plugin.OnCurrencyRemoved         = (*MetricsExtension)(nil)
	_ plugin.OnTransfersAllowedSet     = (*MetricsExtension)(nil)
	_ plugin.OnPaused                  = (*MetricsExtension)(nil)
	_ plugin.OnUnpaused                = (*MetricsExtension)(nil)
	_ plugin.OnProductDeployed         = (*MetricsExtension)(nil)
	_ plugin.OnPriceUpdated            = (*MetricsExtension)(nil)
	_ plugin.OnSubscribed              = (*MetricsExtension)(nil)
	_ plugin.OnAccessTransferred       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Bazaar plugin to automatically track settlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Config metrics
	DeploymentConfigUpdated Counter
	FeeConfigUpdated        Counter
	DiscountConfigSet       Counter
	CurrencyApproved        Counter
	CurrencyRemoved         Counter
	TransferGateFlipped     Counter
	Paused                  Counter
	Unpaused                Counter

	// Product metrics
	ProductsDeployed Counter
	PricesUpdated    Counter
	PriceListSize    Histogram

	// Subscription metrics
	Subscriptions     Counter
	AccessTransfers   Counter
	AccessTransferQty Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Config metrics
		DeploymentConfigUpdated: factory.Counter("bazaar.config.deployment.updated"),
		FeeConfigUpdated:        factory.Counter("bazaar.config.fee.updated"),
		DiscountConfigSet:       factory.Counter("bazaar.config.discount.set"),
		CurrencyApproved:        factory.Counter("bazaar.config.currency.approved"),
		CurrencyRemoved:         factory.Counter("bazaar.config.currency.removed"),
		TransferGateFlipped:     factory.Counter("bazaar.config.transfers.flipped"),
		Paused:                  factory.Counter("bazaar.config.paused"),
		Unpaused:                factory.Counter("bazaar.config.unpaused"),

		// Product metrics
		ProductsDeployed: factory.Counter("bazaar.product.deployed"),
		PricesUpdated:    factory.Counter("bazaar.product.prices.updated"),
		PriceListSize:    factory.Histogram("bazaar.product.prices.size"),

		// Subscription metrics
		Subscriptions:     factory.Counter("bazaar.subscription.created"),
		AccessTransfers:   factory.Counter("bazaar.access.transferred"),
		AccessTransferQty: factory.Histogram("bazaar.access.transfer.qty"),

		// Error metrics
		StoreErrors:  factory.Counter("bazaar.store.errors"),
		PluginErrors: factory.Counter("bazaar.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Config lifecycle hooks
// ──────────────────────────────────────────────────

// OnDeploymentConfigUpdated implements plugin.OnDeploymentConfigUpdated.
func (m *MetricsExtension) OnDeploymentConfigUpdated(_ context.Context, _ interface{}) error {
	m.DeploymentConfigUpdated.Inc()
	return nil
}

// OnFeeConfigUpdated implements plugin.OnFeeConfigUpdated.
func (m *MetricsExtension) OnFeeConfigUpdated(_ context.Context, _ interface{}) error {
	m.FeeConfigUpdated.Inc()
	return nil
}

// OnDiscountConfigSet implements plugin.OnDiscountConfigSet.
func (m *MetricsExtension) OnDiscountConfigSet(_ context.Context, _ interface{}) error {
	m.DiscountConfigSet.Inc()
	return nil
}

// OnCurrencyApproved implements plugin.OnCurrencyApproved.
func (m *MetricsExtension) OnCurrencyApproved(_ context.Context, _ string) error {
	m.CurrencyApproved.Inc()
	return nil
}

// OnCurrencyRemoved implements plugin.OnCurrencyRemoved.
func (m *MetricsExtension) OnCurrencyRemoved(_ context.Context, _ string) error {
	m.CurrencyRemoved.Inc()
	return nil
}

// OnTransfersAllowedSet implements plugin.OnTransfersAllowedSet.
func (m *MetricsExtension) OnTransfersAllowedSet(_ context.Context, _ bool) error {
	m.TransferGateFlipped.Inc()
	return nil
}

// OnPaused implements plugin.OnPaused.
func (m *MetricsExtension) OnPaused(_ context.Context) error {
	m.Paused.Inc()
	return nil
}

// OnUnpaused implements plugin.OnUnpaused.
func (m *MetricsExtension) OnUnpaused(_ context.Context) error {
	m.Unpaused.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Product lifecycle hooks
// ──────────────────────────────────────────────────

// OnProductDeployed implements plugin.OnProductDeployed.
func (m *MetricsExtension) OnProductDeployed(_ context.Context, _ string, _ string, _ int64) error {
	m.ProductsDeployed.Inc()
	return nil
}

// OnPriceUpdated implements plugin.OnPriceUpdated.
func (m *MetricsExtension) OnPriceUpdated(_ context.Context, _ string, _ int64, newPrices interface{}) error {
	m.PricesUpdated.Inc()
	if prices, ok := newPrices.([]interface{}); ok {
		m.PriceListSize.Observe(float64(len(prices)))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed implements plugin.OnSubscribed.
func (m *MetricsExtension) OnSubscribed(_ context.Context, _ string, _ int64) error {
	m.Subscriptions.Inc()
	return nil
}

// OnAccessTransferred implements plugin.OnAccessTransferred.
func (m *MetricsExtension) OnAccessTransferred(_ context.Context, _, _ string, _ int64, qty int64) error {
	m.AccessTransfers.Inc()
	m.AccessTransferQty.Observe(float64(qty))
	return nil
}
