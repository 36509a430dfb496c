// Package token defines the access-token issuance collaborator. Possession
// of one or more units of a product id signals an active subscription to
// that product. Tokens are fungible per product id: an identity may hold
// many units of the same id.
package token

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/bazaar/id"
)

// ErrInsufficientUnits is returned when a transfer exceeds the sender's
// holdings of a product id.
var ErrInsufficientUnits = errors.New("token: insufficient units")

// Issuer mints access-token units. Issuance is assumed to never fail once
// reached; the engine performs it after all transfers have succeeded.
type Issuer interface {
	Issue(ctx context.Context, recipient id.AccountID, productID int64, qty int64) error
}

// Mover transfers already-issued units between identities. The engine checks
// the transfers-allowed gate before calling Move; implementations need not.
type Mover interface {
	Move(ctx context.Context, from, to id.AccountID, productID int64, qty int64) error
}

// Bank is an in-memory fungible-per-id token ledger and the default Issuer.
// Moving already-issued units between identities goes through the engine,
// which applies the transfers-allowed gate before calling Move.
type Bank struct {
	mu       sync.RWMutex
	holdings map[int64]map[string]int64 // productID -> holder -> units
}

// NewBank creates an empty token bank.
func NewBank() *Bank {
	return &Bank{holdings: make(map[int64]map[string]int64)}
}

// Issue mints qty units of productID to recipient.
func (b *Bank) Issue(_ context.Context, recipient id.AccountID, productID int64, qty int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(productID, recipient, qty)
	return nil
}

// Move transfers qty units of productID between identities.
func (b *Bank) Move(_ context.Context, from, to id.AccountID, productID int64, qty int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balance(productID, from) < qty {
		return ErrInsufficientUnits
	}
	b.credit(productID, from, -qty)
	b.credit(productID, to, qty)
	return nil
}

// BalanceOf returns holder's units of productID.
func (b *Bank) BalanceOf(_ context.Context, holder id.AccountID, productID int64) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balance(productID, holder), nil
}

func (b *Bank) balance(productID int64, holder id.AccountID) int64 {
	holders := b.holdings[productID]
	if holders == nil {
		return 0
	}
	return holders[holder.String()]
}

func (b *Bank) credit(productID int64, holder id.AccountID, delta int64) {
	holders := b.holdings[productID]
	if holders == nil {
		holders = make(map[string]int64)
		b.holdings[productID] = holders
	}
	holders[holder.String()] += delta
}
