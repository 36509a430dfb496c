// Package ledger defines the external value-transfer collaborator: the
// service that tracks currency balances and moves value between identities.
// Bazaar never implements money movement itself; it validates, asks the
// ledger to transfer, and only then mutates its own state. An in-memory
// implementation is provided for tests and development.
package ledger

import (
	"context"

	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/types"
)

// Ledger moves value between identities and answers balance queries.
//
// Transfer must only be called after the payer has authorized the engine to
// move the amount; a declined transfer aborts the entire enclosing
// settlement. Implementations may invoke arbitrary third-party code during a
// transfer (hooks, callbacks) — the engine treats every Transfer as a
// potential reentrancy point.
type Ledger interface {
	Transfer(ctx context.Context, currency string, from, to id.AccountID, amount types.Money) error
	BalanceOf(ctx context.Context, currency string, holder id.AccountID) (types.Money, error)
}
