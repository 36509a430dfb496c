// Package settlement defines the persistent record written for every
// successful deploy or subscribe settlement, giving external indexers a
// query surface over value movements.
package settlement

import (
	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/types"
)

type Kind string

const (
	KindDeploy    Kind = "deploy"
	KindSubscribe Kind = "subscribe"
)

// Record captures one settled call: who paid, what moved where, and which
// product it concerned. Records are append-only.
type Record struct {
	types.Entity

	ID        id.SettlementID `json:"id"`
	Kind      Kind            `json:"kind"`
	ProductID int64           `json:"product_id"`

	// Payer is the caller whose balance funded the settlement.
	Payer id.AccountID `json:"payer"`

	// FeeAmount went to the fee recipient. For deployments this is the full
	// charge; for free-tier subscriptions it is zero.
	FeeAmount    types.Money  `json:"fee_amount"`
	FeeRecipient id.AccountID `json:"fee_recipient"`

	// CreatorAmount is the remainder routed to the product creator on
	// subscription; always zero for deployments.
	CreatorAmount types.Money  `json:"creator_amount,omitempty"`
	Creator       id.AccountID `json:"creator,omitempty"`

	// Discounted marks deployments that settled at the discount amount and
	// subscriptions that used the discount fee percentage.
	Discounted bool `json:"discounted,omitempty"`
}

type ListOpts struct {
	Kind      Kind
	ProductID int64
	Payer     id.AccountID
	Limit     int
	Offset    int
}
