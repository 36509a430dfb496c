package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                    []OnInit
	onShutdown                []OnShutdown
	onDeploymentConfigUpdated []OnDeploymentConfigUpdated
	onFeeConfigUpdated        []OnFeeConfigUpdated
	onDiscountConfigSet       []OnDiscountConfigSet
	onCurrencyApproved        []OnCurrencyApproved
	onCurrencyRemoved         []OnCurrencyRemoved
	onTransfersAllowedSet     []OnTransfersAllowedSet
	onPaused                  []OnPaused
	onUnpaused                []OnUnpaused
	onProductDeployed         []OnProductDeployed
	onPriceUpdated            []OnPriceUpdated
	onSubscribed              []OnSubscribed
	onAccessTransferred       []OnAccessTransferred
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnDeploymentConfigUpdated); ok {
		r.onDeploymentConfigUpdated = append(r.onDeploymentConfigUpdated, v)
	}
	if v, ok := p.(OnFeeConfigUpdated); ok {
		r.onFeeConfigUpdated = append(r.onFeeConfigUpdated, v)
	}
	if v, ok := p.(OnDiscountConfigSet); ok {
		r.onDiscountConfigSet = append(r.onDiscountConfigSet, v)
	}
	if v, ok := p.(OnCurrencyApproved); ok {
		r.onCurrencyApproved = append(r.onCurrencyApproved, v)
	}
	if v, ok := p.(OnCurrencyRemoved); ok {
		r.onCurrencyRemoved = append(r.onCurrencyRemoved, v)
	}
	if v, ok := p.(OnTransfersAllowedSet); ok {
		r.onTransfersAllowedSet = append(r.onTransfersAllowedSet, v)
	}
	if v, ok := p.(OnPaused); ok {
		r.onPaused = append(r.onPaused, v)
	}
	if v, ok := p.(OnUnpaused); ok {
		r.onUnpaused = append(r.onUnpaused, v)
	}
	if v, ok := p.(OnProductDeployed); ok {
		r.onProductDeployed = append(r.onProductDeployed, v)
	}
	if v, ok := p.(OnPriceUpdated); ok {
		r.onPriceUpdated = append(r.onPriceUpdated, v)
	}
	if v, ok := p.(OnSubscribed); ok {
		r.onSubscribed = append(r.onSubscribed, v)
	}
	if v, ok := p.(OnAccessTransferred); ok {
		r.onAccessTransferred = append(r.onAccessTransferred, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnDeploymentConfigUpdated)(nil)).Elem(), "OnDeploymentConfigUpdated")
	checkInterface(reflect.TypeOf((*OnFeeConfigUpdated)(nil)).Elem(), "OnFeeConfigUpdated")
	checkInterface(reflect.TypeOf((*OnDiscountConfigSet)(nil)).Elem(), "OnDiscountConfigSet")
	checkInterface(reflect.TypeOf((*OnProductDeployed)(nil)).Elem(), "OnProductDeployed")
	checkInterface(reflect.TypeOf((*OnPriceUpdated)(nil)).Elem(), "OnPriceUpdated")
	checkInterface(reflect.TypeOf((*OnSubscribed)(nil)).Elem(), "OnSubscribed")
	checkInterface(reflect.TypeOf((*OnAccessTransferred)(nil)).Elem(), "OnAccessTransferred")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDeploymentConfigUpdated calls OnDeploymentConfigUpdated for all plugins that implement it.
func (r *Registry) EmitDeploymentConfigUpdated(ctx context.Context, cfg interface{}) {
	r.mu.RLock()
	plugins := r.onDeploymentConfigUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDeploymentConfigUpdated(ctx, cfg)
		}); err != nil {
			r.logger.Warn("plugin OnDeploymentConfigUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFeeConfigUpdated calls OnFeeConfigUpdated for all plugins that implement it.
func (r *Registry) EmitFeeConfigUpdated(ctx context.Context, cfg interface{}) {
	r.mu.RLock()
	plugins := r.onFeeConfigUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFeeConfigUpdated(ctx, cfg)
		}); err != nil {
			r.logger.Warn("plugin OnFeeConfigUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDiscountConfigSet calls OnDiscountConfigSet for all plugins that implement it.
func (r *Registry) EmitDiscountConfigSet(ctx context.Context, cfg interface{}) {
	r.mu.RLock()
	plugins := r.onDiscountConfigSet
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDiscountConfigSet(ctx, cfg)
		}); err != nil {
			r.logger.Warn("plugin OnDiscountConfigSet failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCurrencyApproved calls OnCurrencyApproved for all plugins that implement it.
func (r *Registry) EmitCurrencyApproved(ctx context.Context, currency string) {
	r.mu.RLock()
	plugins := r.onCurrencyApproved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCurrencyApproved(ctx, currency)
		}); err != nil {
			r.logger.Warn("plugin OnCurrencyApproved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCurrencyRemoved calls OnCurrencyRemoved for all plugins that implement it.
func (r *Registry) EmitCurrencyRemoved(ctx context.Context, currency string) {
	r.mu.RLock()
	plugins := r.onCurrencyRemoved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCurrencyRemoved(ctx, currency)
		}); err != nil {
			r.logger.Warn("plugin OnCurrencyRemoved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTransfersAllowedSet calls OnTransfersAllowedSet for all plugins that implement it.
func (r *Registry) EmitTransfersAllowedSet(ctx context.Context, allowed bool) {
	r.mu.RLock()
	plugins := r.onTransfersAllowedSet
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransfersAllowedSet(ctx, allowed)
		}); err != nil {
			r.logger.Warn("plugin OnTransfersAllowedSet failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaused calls OnPaused for all plugins that implement it.
func (r *Registry) EmitPaused(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onPaused
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaused(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnPaused failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUnpaused calls OnUnpaused for all plugins that implement it.
func (r *Registry) EmitUnpaused(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onUnpaused
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUnpaused(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnUnpaused failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitProductDeployed calls OnProductDeployed for all plugins that implement it.
func (r *Registry) EmitProductDeployed(ctx context.Context, creator, contentHash string, productID int64) {
	r.mu.RLock()
	plugins := r.onProductDeployed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnProductDeployed(ctx, creator, contentHash, productID)
		}); err != nil {
			r.logger.Warn("plugin OnProductDeployed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPriceUpdated calls OnPriceUpdated for all plugins that implement it.
func (r *Registry) EmitPriceUpdated(ctx context.Context, creator string, productID int64, newPrices interface{}) {
	r.mu.RLock()
	plugins := r.onPriceUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPriceUpdated(ctx, creator, productID, newPrices)
		}); err != nil {
			r.logger.Warn("plugin OnPriceUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscribed calls OnSubscribed for all plugins that implement it.
func (r *Registry) EmitSubscribed(ctx context.Context, subscriber string, productID int64) {
	r.mu.RLock()
	plugins := r.onSubscribed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscribed(ctx, subscriber, productID)
		}); err != nil {
			r.logger.Warn("plugin OnSubscribed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessTransferred calls OnAccessTransferred for all plugins that implement it.
func (r *Registry) EmitAccessTransferred(ctx context.Context, from, to string, productID, qty int64) {
	r.mu.RLock()
	plugins := r.onAccessTransferred
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessTransferred(ctx, from, to, productID, qty)
		}); err != nil {
			r.logger.Warn("plugin OnAccessTransferred failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
