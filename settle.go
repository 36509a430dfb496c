package bazaar

import (
	"context"
	"fmt"

	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/product"
	"github.com/xraph/bazaar/settlement"
	"github.com/xraph/bazaar/types"
)

// Deploy registers a new priced product for caller and settles the
// deployment charge. The sequence is validate, transfer, mutate: the charge
// moves before any state is written, and a store failure after a successful
// transfer is compensated by a reverse transfer, so a failed call leaves
// balances and registry untouched.
//
// The deployment charge is Config.DeploymentCost, or the discounted amount
// when the price list names the discount currency and caller's ledger
// balance of it covers Config.DiscountDeploymentCost. Either way the charge
// is denominated in the deployment currency — the discount changes the
// amount, never the currency.
func (e *Engine) Deploy(ctx context.Context, caller id.AccountID, contentHash string, prices []product.Price) (int64, error) {
	if err := e.enterGuard(); err != nil {
		return 0, err
	}
	defer e.exitGuard()

	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return 0, err
	}

	// Validate.
	if cfg.Paused {
		return 0, ErrPaused
	}
	if cfg.DeploymentCost.Amount == 0 {
		return 0, ErrDeploymentNotConfigured
	}
	if existing, err := e.store.GetProductIDByHash(ctx, contentHash); err != nil {
		return 0, err
	} else if existing != 0 {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateHash, contentHash)
	}
	for _, pr := range prices {
		if !cfg.IsApproved(pr.Currency) {
			return 0, fmt.Errorf("%w: %q", ErrCurrencyNotApproved, pr.Currency)
		}
	}

	// Discount eligibility: scan the supplied list in order and decide at
	// the first entry naming the discount currency. Later entries for the
	// same currency are not re-checked.
	discounted := false
	if cfg.HasDiscount() {
		for _, pr := range prices {
			if pr.Currency != cfg.DiscountCurrency {
				continue
			}
			bal, err := e.ledger.BalanceOf(ctx, cfg.DiscountCurrency, caller)
			if err != nil {
				return 0, fmt.Errorf("bazaar: discount balance check: %w", err)
			}
			discounted = bal.Amount >= cfg.DiscountDeploymentCost.Amount
			break
		}
	}

	charge := cfg.DeploymentCost
	if discounted {
		charge = types.Money{Amount: cfg.DiscountDeploymentCost.Amount, Currency: cfg.DeploymentCost.Currency}
	}

	// Transfer.
	if err := e.ledger.Transfer(ctx, charge.Currency, caller, cfg.FeeRecipient, charge); err != nil {
		return 0, fmt.Errorf("%w: deployment charge: %v", ErrTransferFailed, err)
	}

	// Mutate.
	p := &product.Product{
		Entity:      types.NewEntity(),
		Creator:     caller,
		ContentHash: contentHash,
		Prices:      product.DedupPrices(prices),
	}
	if err := e.store.CreateProduct(ctx, p); err != nil {
		e.refund(ctx, charge.Currency, caller, cfg.FeeRecipient, charge)
		return 0, err
	}

	e.recordSettlement(ctx, &settlement.Record{
		Entity:       types.NewEntity(),
		ID:           id.NewSettlementID(),
		Kind:         settlement.KindDeploy,
		ProductID:    p.ID,
		Payer:        caller,
		FeeAmount:    charge,
		FeeRecipient: cfg.FeeRecipient,
		Discounted:   discounted,
	})

	e.logger.Info("product deployed",
		"product_id", p.ID,
		"creator", caller.String(),
		"hash", contentHash,
		"charge", charge.Amount,
		"discounted", discounted,
	)
	e.plugins.EmitProductDeployed(ctx, caller.String(), contentHash, p.ID)

	return p.ID, nil
}

// Subscribe settles a subscription to productID paid in currency and issues
// one access-token unit to caller. The price splits between the fee
// recipient and the product creator: fee first, remainder second, both from
// caller. A zero price is a free tier — no transfers occur.
func (e *Engine) Subscribe(ctx context.Context, caller id.AccountID, currency string, productID int64) error {
	if err := e.enterGuard(); err != nil {
		return err
	}
	defer e.exitGuard()

	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return err
	}

	// Validate.
	if cfg.Paused {
		return ErrPaused
	}
	p, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	unitPrice, accepted := p.PriceFor(currency)
	if !accepted {
		return fmt.Errorf("%w: %q for product %d", ErrCurrencyNotForProduct, currency, productID)
	}
	// Checked independently of the product's list: a currency can be
	// accepted by a product yet disapproved globally since.
	if !cfg.IsApproved(currency) {
		return fmt.Errorf("%w: %q", ErrCurrencyNotApproved, currency)
	}

	// Transfer.
	feePct := cfg.FeeFor(currency)
	fee := unitPrice.Percent(feePct)
	creatorShare := unitPrice.Subtract(fee)

	if unitPrice.Amount > 0 {
		if err := e.ledger.Transfer(ctx, currency, caller, cfg.FeeRecipient, fee); err != nil {
			return fmt.Errorf("%w: subscription fee: %v", ErrTransferFailed, err)
		}
		if err := e.ledger.Transfer(ctx, currency, caller, p.Creator, creatorShare); err != nil {
			e.refund(ctx, currency, caller, cfg.FeeRecipient, fee)
			return fmt.Errorf("%w: creator share: %v", ErrTransferFailed, err)
		}
	}

	// Mutate. Issuance is assumed to never fail once reached; if it does,
	// both transfers are compensated.
	if err := e.issuer.Issue(ctx, caller, productID, 1); err != nil {
		if unitPrice.Amount > 0 {
			e.refund(ctx, currency, caller, p.Creator, creatorShare)
			e.refund(ctx, currency, caller, cfg.FeeRecipient, fee)
		}
		return fmt.Errorf("bazaar: issue access token: %w", err)
	}

	e.recordSettlement(ctx, &settlement.Record{
		Entity:        types.NewEntity(),
		ID:            id.NewSettlementID(),
		Kind:          settlement.KindSubscribe,
		ProductID:     productID,
		Payer:         caller,
		FeeAmount:     fee,
		FeeRecipient:  cfg.FeeRecipient,
		CreatorAmount: creatorShare,
		Creator:       p.Creator,
		Discounted:    cfg.HasDiscount() && currency == cfg.DiscountCurrency,
	})

	e.logger.Info("subscribed",
		"product_id", productID,
		"subscriber", caller.String(),
		"currency", currency,
		"price", unitPrice.Amount,
		"fee", fee.Amount,
	)
	e.plugins.EmitSubscribed(ctx, caller.String(), productID)

	return nil
}

// Reprice fully replaces a product's price list. Only the recorded creator
// may reprice; every currency is re-validated against the approved set at
// call time, and entries absent from the new list are dropped.
func (e *Engine) Reprice(ctx context.Context, caller id.AccountID, productID int64, prices []product.Price) error {
	if err := e.enterGuard(); err != nil {
		return err
	}
	defer e.exitGuard()

	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return err
	}

	if cfg.Paused {
		return ErrPaused
	}
	p, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p.Creator.String() != caller.String() {
		return fmt.Errorf("%w: product %d", ErrNotCreator, productID)
	}
	for _, pr := range prices {
		if !cfg.IsApproved(pr.Currency) {
			return fmt.Errorf("%w: %q", ErrCurrencyNotApproved, pr.Currency)
		}
	}

	deduped := product.DedupPrices(prices)
	if err := e.store.UpdateProductPrices(ctx, productID, deduped); err != nil {
		return err
	}

	e.logger.Info("product repriced",
		"product_id", productID,
		"creator", caller.String(),
		"currencies", len(deduped),
	)
	e.plugins.EmitPriceUpdated(ctx, caller.String(), productID, deduped)

	return nil
}

// TransferAccess moves qty already-issued access-token units of productID
// from caller to another identity. Gated by Config.TransfersAllowed;
// issuance itself is never gated by this flag.
func (e *Engine) TransferAccess(ctx context.Context, caller, to id.AccountID, productID int64, qty int64) error {
	if err := e.enterGuard(); err != nil {
		return err
	}
	defer e.exitGuard()

	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return err
	}

	if !cfg.TransfersAllowed {
		return ErrTransfersDisabled
	}
	if e.mover == nil {
		return fmt.Errorf("%w: no access-token mover configured", ErrInvalidInput)
	}

	if err := e.mover.Move(ctx, caller, to, productID, qty); err != nil {
		return err
	}

	e.logger.Info("access transferred",
		"product_id", productID,
		"from", caller.String(),
		"to", to.String(),
		"qty", qty,
	)
	e.plugins.EmitAccessTransferred(ctx, caller.String(), to.String(), productID, qty)

	return nil
}

// refund compensates an already-executed transfer after a later step of the
// same call failed. A refund failure is logged; it cannot fail the call
// harder than it already has.
func (e *Engine) refund(ctx context.Context, currency string, payer, payee id.AccountID, amount types.Money) {
	if amount.Amount == 0 {
		return
	}
	if err := e.ledger.Transfer(ctx, currency, payee, payer, amount); err != nil {
		e.logger.Error("refund failed",
			"currency", currency,
			"payer", payer.String(),
			"payee", payee.String(),
			"amount", amount.Amount,
			"error", err,
		)
	}
}

// recordSettlement persists the audit record for a completed settlement.
// The registry mutation is authoritative; a failed record write is logged,
// not propagated.
func (e *Engine) recordSettlement(ctx context.Context, r *settlement.Record) {
	if err := e.store.CreateSettlement(ctx, r); err != nil {
		e.logger.Warn("settlement record write failed",
			"settlement_id", r.ID.String(),
			"kind", string(r.Kind),
			"error", err,
		)
	}
}
