// Package config defines the global settlement configuration shared by every
// Bazaar operation: deployment pricing, fee routing, discount terms, and the
// approved-currency set.
package config

import (
	"slices"

	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/types"
)

// Config is the singleton settlement configuration. It is created once at
// engine initialization and thereafter replaced field-group by field-group
// through the engine's manager-gated mutators; there are no partial updates
// within a group and no deletion.
type Config struct {
	types.Entity

	// DeploymentCost is the amount charged for every product deployment,
	// always denominated in DeploymentCost.Currency. A zero cost means
	// deployment is not yet configured and every deploy fails.
	DeploymentCost types.Money `json:"deployment_cost"`

	// FeePercentage is the share of each subscription price routed to
	// FeeRecipient, in whole percent (0-100).
	FeePercentage int64 `json:"fee_percentage"`

	// FeeRecipient receives deployment charges and subscription fees.
	FeeRecipient id.AccountID `json:"fee_recipient"`

	// DiscountCurrency, when non-empty, activates discount terms: a deployer
	// holding at least DiscountDeploymentCost of this currency (and listing
	// it in their price list) pays the discounted deployment amount, and
	// subscriptions paid in this currency use DiscountFeePercentage.
	DiscountCurrency       string      `json:"discount_currency,omitempty"`
	DiscountDeploymentCost types.Money `json:"discount_deployment_cost,omitempty"`
	DiscountFeePercentage  int64       `json:"discount_fee_percentage,omitempty"`

	// ApprovedCurrencies is the ordered, deduplicated list of currencies a
	// product may price in. Approval is checked when prices are set, never
	// retroactively.
	ApprovedCurrencies []string `json:"approved_currencies"`

	// TransfersAllowed gates moving already-issued access tokens between
	// identities. Issuance itself is never gated.
	TransfersAllowed bool `json:"transfers_allowed"`

	// Paused gates every mutating entry point. Reads are never gated.
	Paused bool `json:"paused"`
}

// New returns a zero-valued Config with fresh timestamps. Deployment stays
// unconfigured (zero cost) until a manager sets it.
func New() *Config {
	return &Config{Entity: types.NewEntity()}
}

// HasDiscount reports whether discount terms are configured.
func (c *Config) HasDiscount() bool {
	return c.DiscountCurrency != ""
}

// IsApproved reports whether currency is in the approved set.
func (c *Config) IsApproved(currency string) bool {
	return slices.Contains(c.ApprovedCurrencies, currency)
}

// Approve adds currency to the approved set. Adding an already-approved
// currency is a no-op; the list never grows duplicates.
func (c *Config) Approve(currency string) {
	if !c.IsApproved(currency) {
		c.ApprovedCurrencies = append(c.ApprovedCurrencies, currency)
	}
}

// Disapprove removes currency from the approved set. Removing an unknown
// currency is a no-op. Products that already priced in the currency keep
// their prices; only new price lists and new subscriptions are affected.
func (c *Config) Disapprove(currency string) {
	c.ApprovedCurrencies = slices.DeleteFunc(c.ApprovedCurrencies, func(s string) bool {
		return s == currency
	})
}

// FeeFor returns the fee percentage applied to a subscription paid in the
// given currency: the discount percentage when the currency matches the
// configured discount currency, the base percentage otherwise.
func (c *Config) FeeFor(currency string) int64 {
	if c.HasDiscount() && currency == c.DiscountCurrency {
		return c.DiscountFeePercentage
	}
	return c.FeePercentage
}

// Clone returns a deep copy. Settlement reads a fresh snapshot per call and
// must never observe concurrent mutation through shared slices.
func (c *Config) Clone() *Config {
	cp := *c
	cp.ApprovedCurrencies = slices.Clone(c.ApprovedCurrencies)
	return &cp
}
