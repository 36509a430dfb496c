// Package product defines the product registry model: creator-owned,
// access-gated products identified by a globally unique content hash and a
// monotonically assigned integer id, each carrying a multi-currency price
// list.
package product

import (
	"slices"

	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/types"
)

// Price is one (currency, amount) entry of a product's price list.
type Price struct {
	Currency string      `json:"currency"`
	Amount   types.Money `json:"amount"`
}

// Product is a priced, access-gated offering. ID and Creator are immutable
// after deployment; Prices may be fully replaced by the creator.
type Product struct {
	types.Entity

	// ID is assigned by the store on successful insert: ≥1, strictly
	// increasing, never reused. Failed deploys do not consume ids.
	ID int64 `json:"id"`

	// Creator is the identity that deployed the product.
	Creator id.AccountID `json:"creator"`

	// ContentHash is the creator-supplied content identifier,
	// globally unique across products.
	ContentHash string `json:"content_hash"`

	// Prices is the ordered accepted-currency list with one price per
	// currency. Order is insertion order; currencies never repeat.
	Prices []Price `json:"prices"`
}

// Clone returns a deep copy. Store reads hand out copies so callers can
// never mutate registry state through a shared Prices slice.
func (p *Product) Clone() *Product {
	cp := *p
	cp.Prices = slices.Clone(p.Prices)
	return &cp
}

// PriceFor returns the product's price in the given currency and whether the
// currency is accepted at all.
func (p *Product) PriceFor(currency string) (types.Money, bool) {
	for _, pr := range p.Prices {
		if pr.Currency == currency {
			return pr.Amount, true
		}
	}
	return types.Money{}, false
}

// Accepts reports whether currency is in the product's currency list.
func (p *Product) Accepts(currency string) bool {
	_, ok := p.PriceFor(currency)
	return ok
}

// Currencies returns the ordered accepted-currency list.
func (p *Product) Currencies() []string {
	out := make([]string, len(p.Prices))
	for i, pr := range p.Prices {
		out[i] = pr.Currency
	}
	return out
}

// DedupPrices collapses repeated currencies in a raw price list: the currency
// list keeps first-appearance order, the price for a repeated currency is the
// last one supplied.
func DedupPrices(list []Price) []Price {
	index := make(map[string]int, len(list))
	out := make([]Price, 0, len(list))
	for _, pr := range list {
		if i, seen := index[pr.Currency]; seen {
			out[i].Amount = pr.Amount
			continue
		}
		index[pr.Currency] = len(out)
		out = append(out, pr)
	}
	return out
}
