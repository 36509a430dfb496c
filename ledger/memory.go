package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/types"
)

// ErrInsufficientBalance is returned when a transfer exceeds the payer's
// balance.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

// TransferHook runs inside InMemory.Transfer after balances have moved.
// Tests use it to simulate third-party code executing mid-transfer
// (the reentrancy window).
type TransferHook func(ctx context.Context, currency string, from, to id.AccountID, amount types.Money) error

// InMemory is a Ledger backed by per-currency balance maps. It is the
// default collaborator for tests and local development.
type InMemory struct {
	mu       sync.RWMutex
	balances map[string]map[string]int64 // currency -> holder -> amount
	hook     TransferHook
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[string]map[string]int64)}
}

// SetTransferHook installs a hook invoked during every Transfer.
// A hook error fails the transfer and restores both balances.
func (l *InMemory) SetTransferHook(h TransferHook) { l.hook = h }

// Mint credits amount of currency to holder.
func (l *InMemory) Mint(currency string, holder id.AccountID, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(currency, holder, amount)
}

// Transfer moves amount of currency from one holder to another, then runs
// the installed hook, if any. The hook observes post-transfer balances; if
// it fails, the transfer is undone before the error is returned.
func (l *InMemory) Transfer(ctx context.Context, currency string, from, to id.AccountID, amount types.Money) error {
	if amount.Amount == 0 {
		return nil
	}

	l.mu.Lock()
	if l.balance(currency, from) < amount.Amount {
		l.mu.Unlock()
		return ErrInsufficientBalance
	}
	l.credit(currency, from, -amount.Amount)
	l.credit(currency, to, amount.Amount)
	hook := l.hook
	l.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, currency, from, to, amount); err != nil {
			l.mu.Lock()
			l.credit(currency, to, -amount.Amount)
			l.credit(currency, from, amount.Amount)
			l.mu.Unlock()
			return err
		}
	}

	return nil
}

// BalanceOf returns holder's balance of currency. Unknown holders have a
// zero balance.
func (l *InMemory) BalanceOf(_ context.Context, currency string, holder id.AccountID) (types.Money, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return types.Money{Amount: l.balance(currency, holder), Currency: currency}, nil
}

func (l *InMemory) balance(currency string, holder id.AccountID) int64 {
	holders := l.balances[currency]
	if holders == nil {
		return 0
	}
	return holders[holder.String()]
}

func (l *InMemory) credit(currency string, holder id.AccountID, delta int64) {
	holders := l.balances[currency]
	if holders == nil {
		holders = make(map[string]int64)
		l.balances[currency] = holders
	}
	holders[holder.String()] += delta
}
