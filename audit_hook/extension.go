// Package audithook bridges Bazaar lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/bazaar/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                    = (*Extension)(nil)
	_ plugin.OnDeploymentConfigUpdated = (*Extension)(nil)
	_ plugin.OnFeeConfigUpdated        = (*Extension)(nil)
	_ plugin.OnDiscountConfigSet       = (*Extension)(nil)
	_ plugin.OnCurrencyApproved        = (*Extension)(nil)
	_ plugin.OnCurrencyRemoved         = (*Extension)(nil)
	_ plugin.OnTransfersAllowedSet     = (*Extension)(nil)
	_ plugin.OnPaused                  = (*Extension)(nil)
	_ plugin.OnUnpaused                = (*Extension)(nil)
	_ plugin.OnProductDeployed         = (*Extension)(nil)
	_ plugin.OnPriceUpdated            = (*Extension)(nil)
	_ plugin.OnSubscribed              = (*Extension)(nil)
	_ plugin.OnAccessTransferred       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Bazaar lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Config lifecycle hooks
// ──────────────────────────────────────────────────

// OnDeploymentConfigUpdated implements plugin.OnDeploymentConfigUpdated.
func (e *Extension) OnDeploymentConfigUpdated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionDeploymentConfigUpdated, SeverityInfo, OutcomeSuccess,
		ResourceConfig, "", CategoryGovernance, nil,
		"event", "deployment_config_updated",
	)
}

// OnFeeConfigUpdated implements plugin.OnFeeConfigUpdated.
func (e *Extension) OnFeeConfigUpdated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionFeeConfigUpdated, SeverityInfo, OutcomeSuccess,
		ResourceConfig, "", CategoryGovernance, nil,
		"event", "fee_config_updated",
	)
}

// OnDiscountConfigSet implements plugin.OnDiscountConfigSet.
func (e *Extension) OnDiscountConfigSet(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionDiscountConfigSet, SeverityInfo, OutcomeSuccess,
		ResourceConfig, "", CategoryGovernance, nil,
		"event", "discount_config_set",
	)
}

// OnCurrencyApproved implements plugin.OnCurrencyApproved.
func (e *Extension) OnCurrencyApproved(ctx context.Context, currency string) error {
	return e.record(ctx, ActionCurrencyApproved, SeverityInfo, OutcomeSuccess,
		ResourceConfig, currency, CategoryGovernance, nil,
		"currency", currency,
	)
}

// OnCurrencyRemoved implements plugin.OnCurrencyRemoved.
func (e *Extension) OnCurrencyRemoved(ctx context.Context, currency string) error {
	return e.record(ctx, ActionCurrencyRemoved, SeverityWarning, OutcomeSuccess,
		ResourceConfig, currency, CategoryGovernance, nil,
		"currency", currency,
	)
}

// OnTransfersAllowedSet implements plugin.OnTransfersAllowedSet.
func (e *Extension) OnTransfersAllowedSet(ctx context.Context, allowed bool) error {
	return e.record(ctx, ActionTransfersAllowedSet, SeverityInfo, OutcomeSuccess,
		ResourceConfig, "", CategoryGovernance, nil,
		"allowed", allowed,
	)
}

// OnPaused implements plugin.OnPaused.
func (e *Extension) OnPaused(ctx context.Context) error {
	return e.record(ctx, ActionPaused, SeverityWarning, OutcomeSuccess,
		ResourceConfig, "", CategoryGovernance, nil,
		"event", "paused",
	)
}

// OnUnpaused implements plugin.OnUnpaused.
func (e *Extension) OnUnpaused(ctx context.Context) error {
	return e.record(ctx, ActionUnpaused, SeverityInfo, OutcomeSuccess,
		ResourceConfig, "", CategoryGovernance, nil,
		"event", "unpaused",
	)
}

// ──────────────────────────────────────────────────
// Product lifecycle hooks
// ──────────────────────────────────────────────────

// OnProductDeployed implements plugin.OnProductDeployed.
func (e *Extension) OnProductDeployed(ctx context.Context, creator, contentHash string, productID int64) error {
	return e.record(ctx, ActionProductDeployed, SeverityInfo, OutcomeSuccess,
		ResourceProduct, strconv.FormatInt(productID, 10), CategoryCatalog, nil,
		"creator", creator,
		"content_hash", contentHash,
		"product_id", productID,
	)
}

// OnPriceUpdated implements plugin.OnPriceUpdated.
func (e *Extension) OnPriceUpdated(ctx context.Context, creator string, productID int64, _ interface{}) error {
	return e.record(ctx, ActionPriceUpdated, SeverityInfo, OutcomeSuccess,
		ResourceProduct, strconv.FormatInt(productID, 10), CategoryCatalog, nil,
		"creator", creator,
		"product_id", productID,
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed implements plugin.OnSubscribed.
func (e *Extension) OnSubscribed(ctx context.Context, subscriber string, productID int64) error {
	return e.record(ctx, ActionSubscribed, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, strconv.FormatInt(productID, 10), CategorySettlement, nil,
		"subscriber", subscriber,
		"product_id", productID,
	)
}

// OnAccessTransferred implements plugin.OnAccessTransferred.
func (e *Extension) OnAccessTransferred(ctx context.Context, from, to string, productID, qty int64) error {
	return e.record(ctx, ActionAccessTransferred, SeverityInfo, OutcomeSuccess,
		ResourceAccess, strconv.FormatInt(productID, 10), CategoryAccess, nil,
		"from", from,
		"to", to,
		"product_id", productID,
		"qty", qty,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
