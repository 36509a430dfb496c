package audithook

// Action constants for audit events.
const (
	// Config actions
	ActionDeploymentConfigUpdated = "config.deployment.updated"
	ActionFeeConfigUpdated        = "config.fee.updated"
	ActionDiscountConfigSet       = "config.discount.set"
	ActionCurrencyApproved        = "config.currency.approved"
	ActionCurrencyRemoved         = "config.currency.removed"
	ActionTransfersAllowedSet     = "config.transfers.set"
	ActionPaused                  = "config.paused"
	ActionUnpaused                = "config.unpaused"

	// Product actions
	ActionProductDeployed = "product.deployed"
	ActionPriceUpdated    = "product.price.updated"

	// Subscription actions
	ActionSubscribed        = "subscription.created"
	ActionAccessTransferred = "access.transferred"
)

// Resource constants for audit events.
const (
	ResourceConfig       = "config"
	ResourceProduct      = "product"
	ResourceSubscription = "subscription"
	ResourceAccess       = "access"
)

// Category constants for audit events.
const (
	CategoryGovernance = "governance"
	CategoryCatalog    = "catalog"
	CategorySettlement = "settlement"
	CategoryAccess     = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
