package bazaar_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	bazaar "github.com/xraph/bazaar"
	"github.com/xraph/bazaar/auth"
	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/ledger"
	"github.com/xraph/bazaar/product"
	"github.com/xraph/bazaar/settlement"
	"github.com/xraph/bazaar/store"
	"github.com/xraph/bazaar/store/memory"
	"github.com/xraph/bazaar/token"
	"github.com/xraph/bazaar/types"
)

type fixture struct {
	engine *bazaar.Engine
	ledger *ledger.InMemory
	bank   *token.Bank
	admin  id.AccountID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	l := ledger.NewInMemory()
	bank := token.NewBank()
	admin := id.NewAccountID()

	e := bazaar.New(memory.New(),
		bazaar.WithLedger(l),
		bazaar.WithTokenIssuer(bank),
		bazaar.WithAdmin(admin),
		bazaar.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return &fixture{engine: e, ledger: l, bank: bank, admin: admin}
}

// configure sets up a standard environment: deployment costs 100 usd paid to
// the fee recipient, subscriptions carry a 10% fee, and usd plus eur are
// approved.
func (f *fixture) configure(t *testing.T, ctx context.Context, feeRecipient id.AccountID) {
	t.Helper()

	if err := f.engine.SetDeploymentConfig(ctx, f.admin, types.USD(100)); err != nil {
		t.Fatalf("SetDeploymentConfig: %v", err)
	}
	if err := f.engine.SetFeeConfig(ctx, f.admin, 10, feeRecipient); err != nil {
		t.Fatalf("SetFeeConfig: %v", err)
	}
	for _, c := range []string{"usd", "eur"} {
		if err := f.engine.ApproveCurrency(ctx, f.admin, c); err != nil {
			t.Fatalf("ApproveCurrency(%s): %v", c, err)
		}
	}
}

func (f *fixture) balance(t *testing.T, currency string, holder id.AccountID) int64 {
	t.Helper()
	m, err := f.ledger.BalanceOf(context.Background(), currency, holder)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	return m.Amount
}

func (f *fixture) units(t *testing.T, holder id.AccountID, productID int64) int64 {
	t.Helper()
	n, err := f.bank.BalanceOf(context.Background(), holder, productID)
	if err != nil {
		t.Fatalf("Bank.BalanceOf: %v", err)
	}
	return n
}

func usdPrices(amount int64) []product.Price {
	return []product.Price{{Currency: "usd", Amount: types.USD(amount)}}
}

func TestDeploy(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfigured deployment fails", func(t *testing.T) {
		f := newFixture(t)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)

		_, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
		if !errors.Is(err, bazaar.ErrDeploymentNotConfigured) {
			t.Fatalf("expected ErrDeploymentNotConfigured, got %v", err)
		}
	})

	t.Run("unapproved currency fails before any transfer", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)

		_, err := f.engine.Deploy(ctx, creator, "hash-a", []product.Price{
			{Currency: "jpy", Amount: types.JPY(500)},
		})
		if !errors.Is(err, bazaar.ErrCurrencyNotApproved) {
			t.Fatalf("expected ErrCurrencyNotApproved, got %v", err)
		}
		if got := f.balance(t, "usd", creator); got != 1000 {
			t.Fatalf("creator balance changed on failed deploy: %d", got)
		}

		// The failed deploy must not consume an id.
		pid, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		if pid != 1 {
			t.Fatalf("expected first id 1, got %d", pid)
		}
	})

	t.Run("insufficient balance leaves registry untouched", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 40) // below the 100 cost

		_, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
		if !errors.Is(err, bazaar.ErrTransferFailed) {
			t.Fatalf("expected ErrTransferFailed, got %v", err)
		}
		if got, _ := f.engine.IDOf(ctx, "hash-a"); got != 0 {
			t.Fatalf("hash registered on failed deploy: %d", got)
		}
	})

	t.Run("successful deploy charges, registers, records", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)

		pid, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		if pid != 1 {
			t.Fatalf("expected id 1, got %d", pid)
		}
		if got := f.balance(t, "usd", creator); got != 900 {
			t.Fatalf("creator balance = %d, want 900", got)
		}
		if got := f.balance(t, "usd", recipient); got != 100 {
			t.Fatalf("recipient balance = %d, want 100", got)
		}
		if got, _ := f.engine.IDOf(ctx, "hash-a"); got != pid {
			t.Fatalf("IDOf = %d, want %d", got, pid)
		}
		if got, _ := f.engine.HashOf(ctx, pid); got != "hash-a" {
			t.Fatalf("HashOf = %q", got)
		}

		recs, err := f.engine.ListSettlements(ctx, settlement.ListOpts{Kind: settlement.KindDeploy})
		if err != nil {
			t.Fatalf("ListSettlements: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("settlement records = %d, want 1", len(recs))
		}
		if recs[0].FeeAmount.Amount != 100 || recs[0].Payer.String() != creator.String() {
			t.Fatalf("unexpected settlement record: %+v", recs[0])
		}
	})

	t.Run("duplicate hash rejected", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		other := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)
		f.ledger.Mint("usd", other, 1000)

		if _, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50)); err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		_, err := f.engine.Deploy(ctx, other, "hash-a", usdPrices(60))
		if !errors.Is(err, bazaar.ErrDuplicateHash) {
			t.Fatalf("expected ErrDuplicateHash, got %v", err)
		}
		if got := f.balance(t, "usd", other); got != 1000 {
			t.Fatalf("other charged on duplicate deploy: %d", got)
		}
	})

	t.Run("ids are strictly increasing", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)

		first, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		second, err := f.engine.Deploy(ctx, creator, "hash-b", usdPrices(50))
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		if second != first+1 {
			t.Fatalf("ids not sequential: %d then %d", first, second)
		}
	})

	t.Run("duplicate currencies collapse to the last price", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)

		pid, err := f.engine.Deploy(ctx, creator, "hash-a", []product.Price{
			{Currency: "usd", Amount: types.USD(50)},
			{Currency: "eur", Amount: types.EUR(70)},
			{Currency: "usd", Amount: types.USD(80)},
		})
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}

		prices, err := f.engine.Prices(ctx, pid)
		if err != nil {
			t.Fatalf("Prices: %v", err)
		}
		if len(prices) != 2 {
			t.Fatalf("price list length = %d, want 2", len(prices))
		}
		if prices[0].Currency != "usd" || prices[0].Amount.Amount != 80 {
			t.Fatalf("first entry = %+v, want usd 80", prices[0])
		}
		if prices[1].Currency != "eur" || prices[1].Amount.Amount != 70 {
			t.Fatalf("second entry = %+v, want eur 70", prices[1])
		}
	})

	t.Run("paused blocks deploy", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)

		if err := f.engine.Pause(ctx, f.admin); err != nil {
			t.Fatalf("Pause: %v", err)
		}
		if _, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50)); !errors.Is(err, bazaar.ErrPaused) {
			t.Fatalf("expected ErrPaused, got %v", err)
		}

		if err := f.engine.Unpause(ctx, f.admin); err != nil {
			t.Fatalf("Unpause: %v", err)
		}
		if _, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50)); err != nil {
			t.Fatalf("Deploy after unpause: %v", err)
		}
	})
}

func TestDeployDiscount(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, id.AccountID, id.AccountID) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		// Discount terms: holders of at least 500 eur pay 40 instead of 100.
		if err := f.engine.SetDiscountConfig(ctx, f.admin, "eur", types.EUR(40), 5); err != nil {
			t.Fatalf("SetDiscountConfig: %v", err)
		}
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)
		return f, recipient, creator
	}

	prices := []product.Price{
		{Currency: "usd", Amount: types.USD(50)},
		{Currency: "eur", Amount: types.EUR(60)},
	}

	t.Run("eligible holder pays the discounted amount in the base currency", func(t *testing.T) {
		f, recipient, creator := setup(t)
		f.ledger.Mint("eur", creator, 40) // exactly the threshold

		if _, err := f.engine.Deploy(ctx, creator, "hash-a", prices); err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		// Charged 40, but in usd: the discount changes the amount, never
		// the currency.
		if got := f.balance(t, "usd", creator); got != 960 {
			t.Fatalf("creator usd balance = %d, want 960", got)
		}
		if got := f.balance(t, "eur", creator); got != 40 {
			t.Fatalf("creator eur balance touched: %d", got)
		}
		if got := f.balance(t, "usd", recipient); got != 40 {
			t.Fatalf("recipient usd balance = %d, want 40", got)
		}

		recs, _ := f.engine.ListSettlements(ctx, settlement.ListOpts{Kind: settlement.KindDeploy})
		if len(recs) != 1 || !recs[0].Discounted {
			t.Fatalf("expected a discounted settlement record, got %+v", recs)
		}
	})

	t.Run("holder below the threshold pays full price", func(t *testing.T) {
		f, _, creator := setup(t)
		f.ledger.Mint("eur", creator, 39)

		if _, err := f.engine.Deploy(ctx, creator, "hash-a", prices); err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		if got := f.balance(t, "usd", creator); got != 900 {
			t.Fatalf("creator usd balance = %d, want 900", got)
		}
	})

	t.Run("discount requires the currency in the price list", func(t *testing.T) {
		f, _, creator := setup(t)
		f.ledger.Mint("eur", creator, 10000) // rich, but the list is usd-only

		if _, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50)); err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		if got := f.balance(t, "usd", creator); got != 900 {
			t.Fatalf("creator usd balance = %d, want 900", got)
		}
	})

	t.Run("raising the balance never raises the charge", func(t *testing.T) {
		// Discount monotonicity: for a fixed config and price list, a
		// bigger discount-currency balance can only lower the charge.
		f1, _, poor := setup(t)
		f1.ledger.Mint("eur", poor, 10)
		if _, err := f1.engine.Deploy(ctx, poor, "hash-a", prices); err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		chargedPoor := 1000 - f1.balance(t, "usd", poor)

		f2, _, rich := setup(t)
		f2.ledger.Mint("eur", rich, 10000)
		if _, err := f2.engine.Deploy(ctx, rich, "hash-a", prices); err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		chargedRich := 1000 - f2.balance(t, "usd", rich)

		if chargedRich > chargedPoor {
			t.Fatalf("richer holder charged more: %d > %d", chargedRich, chargedPoor)
		}
	})
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	deploy := func(t *testing.T, f *fixture, prices []product.Price) (id.AccountID, int64) {
		t.Helper()
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)
		pid, err := f.engine.Deploy(ctx, creator, "hash-a", prices)
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		return creator, pid
	}

	t.Run("price splits exactly between fee recipient and creator", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator, pid := deploy(t, f, usdPrices(50))
		creatorBefore := f.balance(t, "usd", creator)
		recipientBefore := f.balance(t, "usd", recipient)

		sub := id.NewAccountID()
		f.ledger.Mint("usd", sub, 200)

		if err := f.engine.Subscribe(ctx, sub, "usd", pid); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		if got := f.balance(t, "usd", sub); got != 150 {
			t.Fatalf("subscriber balance = %d, want 150", got)
		}
		if got := f.balance(t, "usd", recipient) - recipientBefore; got != 5 {
			t.Fatalf("fee received = %d, want 5", got)
		}
		if got := f.balance(t, "usd", creator) - creatorBefore; got != 45 {
			t.Fatalf("creator share = %d, want 45", got)
		}
		if got := f.units(t, sub, pid); got != 1 {
			t.Fatalf("access units = %d, want 1", got)
		}
	})

	t.Run("fee plus creator share always equals the price", func(t *testing.T) {
		// 33 at 10% floors to a 3 fee; the creator gets the exact rest.
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator, pid := deploy(t, f, usdPrices(33))
		creatorBefore := f.balance(t, "usd", creator)

		sub := id.NewAccountID()
		f.ledger.Mint("usd", sub, 33)

		if err := f.engine.Subscribe(ctx, sub, "usd", pid); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		if got := f.balance(t, "usd", sub); got != 0 {
			t.Fatalf("subscriber balance = %d, want 0", got)
		}
		if got := f.balance(t, "usd", recipient); got-100 != 3 { // 100 deployment charge sits there already
			t.Fatalf("fee = %d, want 3", got-100)
		}
		if got := f.balance(t, "usd", creator) - creatorBefore; got != 30 {
			t.Fatalf("creator share = %d, want 30", got)
		}
	})

	t.Run("discount currency uses the discount fee percentage", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		if err := f.engine.SetDiscountConfig(ctx, f.admin, "eur", types.EUR(40), 2); err != nil {
			t.Fatalf("SetDiscountConfig: %v", err)
		}
		creator, pid := deploy(t, f, []product.Price{
			{Currency: "usd", Amount: types.USD(50)},
			{Currency: "eur", Amount: types.EUR(100)},
		})

		sub := id.NewAccountID()
		f.ledger.Mint("eur", sub, 100)

		if err := f.engine.Subscribe(ctx, sub, "eur", pid); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		if got := f.balance(t, "eur", recipient); got != 2 {
			t.Fatalf("discounted fee = %d, want 2", got)
		}
		if got := f.balance(t, "eur", creator); got != 98 {
			t.Fatalf("creator share = %d, want 98", got)
		}
	})

	t.Run("zero price issues access with no transfers", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		_, pid := deploy(t, f, usdPrices(0))

		sub := id.NewAccountID() // holds nothing at all

		if err := f.engine.Subscribe(ctx, sub, "usd", pid); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		if got := f.units(t, sub, pid); got != 1 {
			t.Fatalf("access units = %d, want 1", got)
		}
	})

	t.Run("currency not offered by the product", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		_, pid := deploy(t, f, usdPrices(50))

		sub := id.NewAccountID()
		f.ledger.Mint("eur", sub, 200)

		err := f.engine.Subscribe(ctx, sub, "eur", pid)
		if !errors.Is(err, bazaar.ErrCurrencyNotForProduct) {
			t.Fatalf("expected ErrCurrencyNotForProduct, got %v", err)
		}
	})

	t.Run("currency disapproved after deployment", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		_, pid := deploy(t, f, usdPrices(50))

		if err := f.engine.DisapproveCurrency(ctx, f.admin, "usd"); err != nil {
			t.Fatalf("DisapproveCurrency: %v", err)
		}

		sub := id.NewAccountID()
		f.ledger.Mint("usd", sub, 200)

		err := f.engine.Subscribe(ctx, sub, "usd", pid)
		if !errors.Is(err, bazaar.ErrCurrencyNotApproved) {
			t.Fatalf("expected ErrCurrencyNotApproved, got %v", err)
		}
	})

	t.Run("creator share failure refunds the fee", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator, pid := deploy(t, f, usdPrices(50))
		creatorBefore := f.balance(t, "usd", creator)
		recipientBefore := f.balance(t, "usd", recipient)

		sub := id.NewAccountID()
		f.ledger.Mint("usd", sub, 5) // covers the fee but not the creator share

		err := f.engine.Subscribe(ctx, sub, "usd", pid)
		if !errors.Is(err, bazaar.ErrTransferFailed) {
			t.Fatalf("expected ErrTransferFailed, got %v", err)
		}
		if got := f.balance(t, "usd", sub); got != 5 {
			t.Fatalf("subscriber balance = %d, want 5 (fee refunded)", got)
		}
		if got := f.balance(t, "usd", recipient); got != recipientBefore {
			t.Fatalf("recipient kept the fee of a failed subscription")
		}
		if got := f.balance(t, "usd", creator); got != creatorBefore {
			t.Fatalf("creator balance changed on failed subscription")
		}
		if got := f.units(t, sub, pid); got != 0 {
			t.Fatalf("access issued on failed subscription: %d units", got)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)

		sub := id.NewAccountID()
		err := f.engine.Subscribe(ctx, sub, "usd", 42)
		if !errors.Is(err, bazaar.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
	})

	t.Run("paused blocks subscribe", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		_, pid := deploy(t, f, usdPrices(50))

		if err := f.engine.Pause(ctx, f.admin); err != nil {
			t.Fatalf("Pause: %v", err)
		}
		sub := id.NewAccountID()
		f.ledger.Mint("usd", sub, 200)
		if err := f.engine.Subscribe(ctx, sub, "usd", pid); !errors.Is(err, bazaar.ErrPaused) {
			t.Fatalf("expected ErrPaused, got %v", err)
		}
	})
}

func TestReentrancy(t *testing.T) {
	ctx := context.Background()

	t.Run("deploy reentered from a transfer", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)

		var inner []error
		f.ledger.SetTransferHook(func(hctx context.Context, _ string, _, _ id.AccountID, _ types.Money) error {
			_, err := f.engine.Deploy(hctx, creator, "hash-nested", usdPrices(10))
			inner = append(inner, err)
			return nil // the in-flight call proceeds untouched
		})

		pid, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
		if err != nil {
			t.Fatalf("outer Deploy: %v", err)
		}
		if len(inner) == 0 {
			t.Fatal("transfer hook never ran")
		}
		for _, ierr := range inner {
			if !errors.Is(ierr, bazaar.ErrReentrantCall) {
				t.Fatalf("inner call error = %v, want ErrReentrantCall", ierr)
			}
		}

		// Exactly one charge, one product.
		if got := f.balance(t, "usd", creator); got != 900 {
			t.Fatalf("creator balance = %d, want 900", got)
		}
		if got, _ := f.engine.IDOf(ctx, "hash-nested"); got != 0 {
			t.Fatalf("nested deploy registered a product: %d", got)
		}
		if got, _ := f.engine.IDOf(ctx, "hash-a"); got != pid {
			t.Fatalf("outer deploy not registered")
		}
	})

	t.Run("subscribe reentered from a transfer", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)
		pid, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}

		sub := id.NewAccountID()
		f.ledger.Mint("usd", sub, 500)

		var inner []error
		f.ledger.SetTransferHook(func(hctx context.Context, _ string, _, _ id.AccountID, _ types.Money) error {
			inner = append(inner, f.engine.Subscribe(hctx, sub, "usd", pid))
			return nil
		})

		if err := f.engine.Subscribe(ctx, sub, "usd", pid); err != nil {
			t.Fatalf("outer Subscribe: %v", err)
		}
		for _, ierr := range inner {
			if !errors.Is(ierr, bazaar.ErrReentrantCall) {
				t.Fatalf("inner call error = %v, want ErrReentrantCall", ierr)
			}
		}

		// Exactly one settlement: one price paid, one unit issued.
		if got := f.balance(t, "usd", sub); got != 450 {
			t.Fatalf("subscriber balance = %d, want 450", got)
		}
		if got := f.units(t, sub, pid); got != 1 {
			t.Fatalf("access units = %d, want 1", got)
		}
	})
}

func TestReprice(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, id.AccountID, int64) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)
		pid, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		return f, creator, pid
	}

	t.Run("only the creator may reprice", func(t *testing.T) {
		f, _, pid := setup(t)
		stranger := id.NewAccountID()

		err := f.engine.Reprice(ctx, stranger, pid, usdPrices(60))
		if !errors.Is(err, bazaar.ErrNotCreator) {
			t.Fatalf("expected ErrNotCreator, got %v", err)
		}
	})

	t.Run("new list fully replaces the old one", func(t *testing.T) {
		f, creator, pid := setup(t)

		err := f.engine.Reprice(ctx, creator, pid, []product.Price{
			{Currency: "eur", Amount: types.EUR(70)},
		})
		if err != nil {
			t.Fatalf("Reprice: %v", err)
		}

		prices, _ := f.engine.Prices(ctx, pid)
		if len(prices) != 1 || prices[0].Currency != "eur" {
			t.Fatalf("price list = %+v, want eur only", prices)
		}

		// The dropped usd entry is gone for subscribers too.
		sub := id.NewAccountID()
		f.ledger.Mint("usd", sub, 200)
		if err := f.engine.Subscribe(ctx, sub, "usd", pid); !errors.Is(err, bazaar.ErrCurrencyNotForProduct) {
			t.Fatalf("expected ErrCurrencyNotForProduct after reprice, got %v", err)
		}
	})

	t.Run("every currency re-validated at call time", func(t *testing.T) {
		f, creator, pid := setup(t)
		if err := f.engine.DisapproveCurrency(ctx, f.admin, "eur"); err != nil {
			t.Fatalf("DisapproveCurrency: %v", err)
		}

		err := f.engine.Reprice(ctx, creator, pid, []product.Price{
			{Currency: "eur", Amount: types.EUR(70)},
		})
		if !errors.Is(err, bazaar.ErrCurrencyNotApproved) {
			t.Fatalf("expected ErrCurrencyNotApproved, got %v", err)
		}

		// Price list untouched on failure.
		prices, _ := f.engine.Prices(ctx, pid)
		if len(prices) != 1 || prices[0].Currency != "usd" {
			t.Fatalf("price list changed on failed reprice: %+v", prices)
		}
	})

	t.Run("repricing an identical list is idempotent", func(t *testing.T) {
		f, creator, pid := setup(t)

		before, _ := f.engine.Prices(ctx, pid)
		if err := f.engine.Reprice(ctx, creator, pid, usdPrices(50)); err != nil {
			t.Fatalf("Reprice: %v", err)
		}
		after, _ := f.engine.Prices(ctx, pid)
		if len(before) != len(after) || before[0] != after[0] {
			t.Fatalf("identical reprice changed the list: %+v -> %+v", before, after)
		}
	})

	t.Run("paused blocks reprice", func(t *testing.T) {
		f, creator, pid := setup(t)
		if err := f.engine.Pause(ctx, f.admin); err != nil {
			t.Fatalf("Pause: %v", err)
		}
		if err := f.engine.Reprice(ctx, creator, pid, usdPrices(60)); !errors.Is(err, bazaar.ErrPaused) {
			t.Fatalf("expected ErrPaused, got %v", err)
		}
	})
}

func TestTransferAccess(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, id.AccountID, int64) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		f.configure(t, ctx, recipient)
		creator := id.NewAccountID()
		f.ledger.Mint("usd", creator, 1000)
		pid, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		sub := id.NewAccountID()
		f.ledger.Mint("usd", sub, 200)
		if err := f.engine.Subscribe(ctx, sub, "usd", pid); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		return f, sub, pid
	}

	t.Run("gated by transfers allowed", func(t *testing.T) {
		f, sub, pid := setup(t)
		other := id.NewAccountID()

		err := f.engine.TransferAccess(ctx, sub, other, pid, 1)
		if !errors.Is(err, bazaar.ErrTransfersDisabled) {
			t.Fatalf("expected ErrTransfersDisabled, got %v", err)
		}

		if err := f.engine.SetTransfersAllowed(ctx, f.admin, true); err != nil {
			t.Fatalf("SetTransfersAllowed: %v", err)
		}
		if err := f.engine.TransferAccess(ctx, sub, other, pid, 1); err != nil {
			t.Fatalf("TransferAccess: %v", err)
		}
		if got := f.units(t, other, pid); got != 1 {
			t.Fatalf("recipient units = %d, want 1", got)
		}
		if got := f.units(t, sub, pid); got != 0 {
			t.Fatalf("sender units = %d, want 0", got)
		}
	})

	t.Run("insufficient units", func(t *testing.T) {
		f, sub, pid := setup(t)
		if err := f.engine.SetTransfersAllowed(ctx, f.admin, true); err != nil {
			t.Fatalf("SetTransfersAllowed: %v", err)
		}
		other := id.NewAccountID()

		err := f.engine.TransferAccess(ctx, sub, other, pid, 2)
		if !errors.Is(err, token.ErrInsufficientUnits) {
			t.Fatalf("expected ErrInsufficientUnits, got %v", err)
		}
		if got := f.units(t, sub, pid); got != 1 {
			t.Fatalf("sender units changed on failed transfer: %d", got)
		}
	})
}

func TestConfigManagement(t *testing.T) {
	ctx := context.Background()

	t.Run("manager capability required", func(t *testing.T) {
		f := newFixture(t)
		stranger := id.NewAccountID()

		if err := f.engine.SetDeploymentConfig(ctx, stranger, types.USD(100)); !errors.Is(err, bazaar.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if err := f.engine.ApproveCurrency(ctx, stranger, "usd"); !errors.Is(err, bazaar.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if err := f.engine.Pause(ctx, stranger); !errors.Is(err, bazaar.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("fee config needs manager only, pause needs admin", func(t *testing.T) {
		roles := auth.NewRoleMap()
		manager := id.NewAccountID()
		roles.Grant(manager, auth.RoleManager)

		e := bazaar.New(memory.New(),
			bazaar.WithAuthorizer(roles),
			bazaar.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		if err := e.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}

		if err := e.SetFeeConfig(ctx, manager, 10, id.NewAccountID()); err != nil {
			t.Fatalf("SetFeeConfig by manager: %v", err)
		}
		if err := e.Pause(ctx, manager); !errors.Is(err, bazaar.ErrUnauthorized) {
			t.Fatalf("Pause by manager without admin: got %v, want ErrUnauthorized", err)
		}
	})

	t.Run("negative amounts rejected", func(t *testing.T) {
		f := newFixture(t)
		if err := f.engine.SetDeploymentConfig(ctx, f.admin, types.USD(-100)); !errors.Is(err, bazaar.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
		if err := f.engine.SetDiscountConfig(ctx, f.admin, "eur", types.EUR(-40), 5); !errors.Is(err, bazaar.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
		// Zero stays valid: it means "not configured", not an error.
		if err := f.engine.SetDeploymentConfig(ctx, f.admin, types.USD(0)); err != nil {
			t.Fatalf("SetDeploymentConfig(0): %v", err)
		}
	})

	t.Run("fee recipient must be a real identity", func(t *testing.T) {
		f := newFixture(t)
		if err := f.engine.SetFeeConfig(ctx, f.admin, 10, id.Nil); !errors.Is(err, bazaar.ErrInvalidRecipient) {
			t.Fatalf("expected ErrInvalidRecipient, got %v", err)
		}
	})

	t.Run("percentages bounded to 0-100", func(t *testing.T) {
		f := newFixture(t)
		recipient := id.NewAccountID()
		if err := f.engine.SetFeeConfig(ctx, f.admin, 101, recipient); !errors.Is(err, bazaar.ErrInvalidPercentage) {
			t.Fatalf("expected ErrInvalidPercentage, got %v", err)
		}
		if err := f.engine.SetFeeConfig(ctx, f.admin, -1, recipient); !errors.Is(err, bazaar.ErrInvalidPercentage) {
			t.Fatalf("expected ErrInvalidPercentage, got %v", err)
		}
		if err := f.engine.SetDiscountConfig(ctx, f.admin, "eur", types.EUR(40), 101); !errors.Is(err, bazaar.ErrInvalidPercentage) {
			t.Fatalf("expected ErrInvalidPercentage, got %v", err)
		}
		if err := f.engine.SetFeeConfig(ctx, f.admin, 0, recipient); err != nil {
			t.Fatalf("SetFeeConfig(0): %v", err)
		}
		if err := f.engine.SetFeeConfig(ctx, f.admin, 100, recipient); err != nil {
			t.Fatalf("SetFeeConfig(100): %v", err)
		}
	})

	t.Run("approved currencies keep insertion order without duplicates", func(t *testing.T) {
		f := newFixture(t)
		for _, c := range []string{"usd", "eur", "usd", "gbp"} {
			if err := f.engine.ApproveCurrency(ctx, f.admin, c); err != nil {
				t.Fatalf("ApproveCurrency(%s): %v", c, err)
			}
		}

		got, err := f.engine.ApprovedCurrencies(ctx)
		if err != nil {
			t.Fatalf("ApprovedCurrencies: %v", err)
		}
		want := []string{"usd", "eur", "gbp"}
		if len(got) != len(want) {
			t.Fatalf("approved = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("approved = %v, want %v", got, want)
			}
		}

		if err := f.engine.DisapproveCurrency(ctx, f.admin, "eur"); err != nil {
			t.Fatalf("DisapproveCurrency: %v", err)
		}
		got, _ = f.engine.ApprovedCurrencies(ctx)
		if len(got) != 2 || got[0] != "usd" || got[1] != "gbp" {
			t.Fatalf("approved after removal = %v", got)
		}
	})
}

// failingMigrateStore stands in for a deployment whose schema is managed
// outside the engine: auto-migration must not run against it.
type failingMigrateStore struct {
	store.Store
}

func (s *failingMigrateStore) Migrate(context.Context) error {
	return errors.New("migrations are managed externally")
}

func TestEngineLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("capability checks live from construction", func(t *testing.T) {
		admin := id.NewAccountID()
		e := bazaar.New(memory.New(),
			bazaar.WithAdmin(admin),
			bazaar.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)

		// A DI container can hand the engine out before Start runs; the
		// role gate must answer, not crash.
		stranger := id.NewAccountID()
		if err := e.SetDeploymentConfig(ctx, stranger, types.USD(100)); !errors.Is(err, bazaar.ErrUnauthorized) {
			t.Fatalf("pre-Start mutator by stranger: got %v, want ErrUnauthorized", err)
		}
		if err := e.SetDeploymentConfig(ctx, admin, types.USD(100)); err == nil {
			t.Fatal("pre-Start mutator by admin should fail: config not seeded yet")
		}

		if err := e.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := e.SetDeploymentConfig(ctx, admin, types.USD(100)); err != nil {
			t.Fatalf("SetDeploymentConfig after Start: %v", err)
		}
	})

	t.Run("skip migrate keeps the rest of the start sequence", func(t *testing.T) {
		admin := id.NewAccountID()
		s := &failingMigrateStore{Store: memory.New()}

		e := bazaar.New(s,
			bazaar.WithAdmin(admin),
			bazaar.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		if err := e.Start(ctx); err == nil {
			t.Fatal("Start should surface the migration failure")
		}

		e = bazaar.New(s,
			bazaar.WithAdmin(admin),
			bazaar.WithSkipMigrate(),
			bazaar.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		if err := e.Start(ctx); err != nil {
			t.Fatalf("Start with WithSkipMigrate: %v", err)
		}
		// Config seeding and role grants still ran.
		if err := e.SetDeploymentConfig(ctx, admin, types.USD(100)); err != nil {
			t.Fatalf("SetDeploymentConfig: %v", err)
		}
	})
}

func TestReadIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	recipient := id.NewAccountID()
	f.configure(t, ctx, recipient)

	creator := id.NewAccountID()
	f.ledger.Mint("usd", creator, 100)
	pid, err := f.engine.Deploy(ctx, creator, "sha256:read-iso", usdPrices(50))
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	// Mutating a read result must never reach the registry; price changes
	// go through Reprice and its approved-currency revalidation.
	prices, err := f.engine.Prices(ctx, pid)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	prices[0] = product.Price{Currency: "jpy", Amount: types.JPY(1)}

	p, err := f.engine.GetProduct(ctx, pid)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	p.Prices[0] = product.Price{Currency: "jpy", Amount: types.JPY(1)}

	got, _ := f.engine.Prices(ctx, pid)
	if len(got) != 1 || got[0].Currency != "usd" || got[0].Amount.Amount != 50 {
		t.Fatalf("registry prices mutated through a read: %v", got)
	}
}

func TestLastProductOf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	recipient := id.NewAccountID()
	f.configure(t, ctx, recipient)
	creator := id.NewAccountID()
	f.ledger.Mint("usd", creator, 1000)

	if got, _ := f.engine.LastProductOf(ctx, creator); got != 0 {
		t.Fatalf("LastProductOf before any deploy = %d, want 0", got)
	}

	first, err := f.engine.Deploy(ctx, creator, "hash-a", usdPrices(50))
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if got, _ := f.engine.LastProductOf(ctx, creator); got != first {
		t.Fatalf("LastProductOf = %d, want %d", got, first)
	}

	// The pointer is a single slot: a second deploy overwrites it and the
	// first product is no longer reachable through this query.
	second, err := f.engine.Deploy(ctx, creator, "hash-b", usdPrices(50))
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if got, _ := f.engine.LastProductOf(ctx, creator); got != second {
		t.Fatalf("LastProductOf = %d, want %d", got, second)
	}
}
