package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bazaar/config"
	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/product"
	"github.com/xraph/bazaar/settlement"
	"github.com/xraph/bazaar/types"
)

// configDocID is the _id of the singleton configuration document.
const configDocID = "singleton"

// ==================== Config model ====================

type configModel struct {
	grove.BaseModel `grove:"table:bazaar_config"`

	ID                    string    `grove:"id,pk"                   bson:"_id"`
	DeployCostAmount      int64     `grove:"deploy_cost_amount"      bson:"deploy_cost_amount"`
	DeployCostCurrency    string    `grove:"deploy_cost_currency"    bson:"deploy_cost_currency"`
	FeePercentage         int64     `grove:"fee_percentage"          bson:"fee_percentage"`
	FeeRecipient          string    `grove:"fee_recipient"           bson:"fee_recipient"`
	DiscountCurrency      string    `grove:"discount_currency"       bson:"discount_currency"`
	DiscountCostAmount    int64     `grove:"discount_cost_amount"    bson:"discount_cost_amount"`
	DiscountCostCurrency  string    `grove:"discount_cost_currency"  bson:"discount_cost_currency"`
	DiscountFeePercentage int64     `grove:"discount_fee_percentage" bson:"discount_fee_percentage"`
	ApprovedCurrencies    []string  `grove:"approved_currencies"     bson:"approved_currencies"`
	TransfersAllowed      bool      `grove:"transfers_allowed"       bson:"transfers_allowed"`
	Paused                bool      `grove:"paused"                  bson:"paused"`
	CreatedAt             time.Time `grove:"created_at"              bson:"created_at"`
	UpdatedAt             time.Time `grove:"updated_at"              bson:"updated_at"`
}

func toConfigModel(c *config.Config) *configModel {
	return &configModel{
		ID:                    configDocID,
		DeployCostAmount:      c.DeploymentCost.Amount,
		DeployCostCurrency:    c.DeploymentCost.Currency,
		FeePercentage:         c.FeePercentage,
		FeeRecipient:          c.FeeRecipient.String(),
		DiscountCurrency:      c.DiscountCurrency,
		DiscountCostAmount:    c.DiscountDeploymentCost.Amount,
		DiscountCostCurrency:  c.DiscountDeploymentCost.Currency,
		DiscountFeePercentage: c.DiscountFeePercentage,
		ApprovedCurrencies:    c.ApprovedCurrencies,
		TransfersAllowed:      c.TransfersAllowed,
		Paused:                c.Paused,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

func fromConfigModel(m *configModel) (*config.Config, error) {
	recipient, err := parseAccountID(m.FeeRecipient)
	if err != nil {
		return nil, err
	}

	return &config.Config{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		DeploymentCost:         types.Money{Amount: m.DeployCostAmount, Currency: m.DeployCostCurrency},
		FeePercentage:          m.FeePercentage,
		FeeRecipient:           recipient,
		DiscountCurrency:       m.DiscountCurrency,
		DiscountDeploymentCost: types.Money{Amount: m.DiscountCostAmount, Currency: m.DiscountCostCurrency},
		DiscountFeePercentage:  m.DiscountFeePercentage,
		ApprovedCurrencies:     m.ApprovedCurrencies,
		TransfersAllowed:       m.TransfersAllowed,
		Paused:                 m.Paused,
	}, nil
}

// ==================== Product model ====================

type productModel struct {
	grove.BaseModel `grove:"table:bazaar_products"`

	ID          int64        `grove:"id,pk"        bson:"_id"`
	Creator     string       `grove:"creator"      bson:"creator"`
	ContentHash string       `grove:"content_hash" bson:"content_hash"`
	Prices      []priceModel `grove:"prices"       bson:"prices"`
	CreatedAt   time.Time    `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time    `grove:"updated_at"   bson:"updated_at"`
}

type priceModel struct {
	Currency string `bson:"currency"`
	Amount   int64  `bson:"amount"`
}

func toPriceModels(prices []product.Price) []priceModel {
	out := make([]priceModel, len(prices))
	for i, p := range prices {
		out[i] = priceModel{Currency: p.Currency, Amount: p.Amount.Amount}
	}
	return out
}

func fromPriceModels(models []priceModel) []product.Price {
	out := make([]product.Price, len(models))
	for i, m := range models {
		out[i] = product.Price{
			Currency: m.Currency,
			Amount:   types.Money{Amount: m.Amount, Currency: m.Currency},
		}
	}
	return out
}

func toProductModel(p *product.Product) *productModel {
	return &productModel{
		ID:          p.ID,
		Creator:     p.Creator.String(),
		ContentHash: p.ContentHash,
		Prices:      toPriceModels(p.Prices),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromProductModel(m *productModel) (*product.Product, error) {
	creator, err := parseAccountID(m.Creator)
	if err != nil {
		return nil, err
	}

	return &product.Product{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          m.ID,
		Creator:     creator,
		ContentHash: m.ContentHash,
		Prices:      fromPriceModels(m.Prices),
	}, nil
}

// ==================== Settlement model ====================

type settlementModel struct {
	grove.BaseModel `grove:"table:bazaar_settlements"`

	ID              string    `grove:"id,pk"            bson:"_id"`
	Kind            string    `grove:"kind"             bson:"kind"`
	ProductID       int64     `grove:"product_id"       bson:"product_id"`
	Payer           string    `grove:"payer"            bson:"payer"`
	FeeAmount       int64     `grove:"fee_amount"       bson:"fee_amount"`
	FeeCurrency     string    `grove:"fee_currency"     bson:"fee_currency"`
	FeeRecipient    string    `grove:"fee_recipient"    bson:"fee_recipient"`
	CreatorAmount   int64     `grove:"creator_amount"   bson:"creator_amount"`
	CreatorCurrency string    `grove:"creator_currency" bson:"creator_currency"`
	Creator         string    `grove:"creator"          bson:"creator"`
	Discounted      bool      `grove:"discounted"       bson:"discounted"`
	CreatedAt       time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"       bson:"updated_at"`
}

func toSettlementModel(r *settlement.Record) *settlementModel {
	return &settlementModel{
		ID:              r.ID.String(),
		Kind:            string(r.Kind),
		ProductID:       r.ProductID,
		Payer:           r.Payer.String(),
		FeeAmount:       r.FeeAmount.Amount,
		FeeCurrency:     r.FeeAmount.Currency,
		FeeRecipient:    r.FeeRecipient.String(),
		CreatorAmount:   r.CreatorAmount.Amount,
		CreatorCurrency: r.CreatorAmount.Currency,
		Creator:         r.Creator.String(),
		Discounted:      r.Discounted,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromSettlementModel(m *settlementModel) (*settlement.Record, error) {
	recordID, err := id.ParseWithPrefix(m.ID, id.PrefixSettlement)
	if err != nil {
		return nil, err
	}
	payer, err := parseAccountID(m.Payer)
	if err != nil {
		return nil, err
	}
	feeRecipient, err := parseAccountID(m.FeeRecipient)
	if err != nil {
		return nil, err
	}
	creator, err := parseAccountID(m.Creator)
	if err != nil {
		return nil, err
	}

	return &settlement.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            recordID,
		Kind:          settlement.Kind(m.Kind),
		ProductID:     m.ProductID,
		Payer:         payer,
		FeeAmount:     types.Money{Amount: m.FeeAmount, Currency: m.FeeCurrency},
		FeeRecipient:  feeRecipient,
		CreatorAmount: types.Money{Amount: m.CreatorAmount, Currency: m.CreatorCurrency},
		Creator:       creator,
		Discounted:    m.Discounted,
	}, nil
}

// parseAccountID handles the empty string as the nil identity.
func parseAccountID(s string) (id.AccountID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.ParseWithPrefix(s, id.PrefixAccount)
}
