package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bazaar/config"
	"github.com/xraph/bazaar/id"
	"github.com/xraph/bazaar/product"
	"github.com/xraph/bazaar/settlement"
	"github.com/xraph/bazaar/types"
)

// configRowID is the primary key of the singleton configuration row.
const configRowID = "singleton"

// ==================== Config model ====================

type configModel struct {
	grove.BaseModel `grove:"table:bazaar_config"`

	ID                    string          `grove:"id,pk"`
	DeployCostAmount      int64           `grove:"deploy_cost_amount"`
	DeployCostCurrency    string          `grove:"deploy_cost_currency"`
	FeePercentage         int64           `grove:"fee_percentage"`
	FeeRecipient          string          `grove:"fee_recipient"`
	DiscountCurrency      string          `grove:"discount_currency"`
	DiscountCostAmount    int64           `grove:"discount_cost_amount"`
	DiscountCostCurrency  string          `grove:"discount_cost_currency"`
	DiscountFeePercentage int64           `grove:"discount_fee_percentage"`
	ApprovedCurrencies    json.RawMessage `grove:"approved_currencies,type:jsonb"`
	TransfersAllowed      bool            `grove:"transfers_allowed"`
	Paused                bool            `grove:"paused"`
	CreatedAt             time.Time       `grove:"created_at"`
	UpdatedAt             time.Time       `grove:"updated_at"`
}

func toConfigModel(c *config.Config) *configModel {
	approved, _ := json.Marshal(c.ApprovedCurrencies) //nolint:errcheck // best-effort

	return &configModel{
		ID:                    configRowID,
		DeployCostAmount:      c.DeploymentCost.Amount,
		DeployCostCurrency:    c.DeploymentCost.Currency,
		FeePercentage:         c.FeePercentage,
		FeeRecipient:          c.FeeRecipient.String(),
		DiscountCurrency:      c.DiscountCurrency,
		DiscountCostAmount:    c.DiscountDeploymentCost.Amount,
		DiscountCostCurrency:  c.DiscountDeploymentCost.Currency,
		DiscountFeePercentage: c.DiscountFeePercentage,
		ApprovedCurrencies:    approved,
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

	var approved []string
	if len(m.ApprovedCurrencies) > 0 {
		if err := json.Unmarshal(m.ApprovedCurrencies, &approved); err != nil {
			return nil, err
		}
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
		ApprovedCurrencies:     approved,
		TransfersAllowed:       m.TransfersAllowed,
		Paused:                 m.Paused,
	}, nil
}

// ==================== Product model ====================

type productModel struct {
	grove.BaseModel `grove:"table:bazaar_products"`

	ID          int64           `grove:"id,pk"`
	Creator     string          `grove:"creator"`
	ContentHash string          `grove:"content_hash"`
	Prices      json.RawMessage `grove:"prices,type:jsonb"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
}

func toProductModel(p *product.Product) *productModel {
	prices, _ := json.Marshal(p.Prices) //nolint:errcheck // best-effort

	return &productModel{
		ID:          p.ID,
		Creator:     p.Creator.String(),
		ContentHash: p.ContentHash,
		Prices:      prices,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromProductModel(m *productModel) (*product.Product, error) {
	creator, err := parseAccountID(m.Creator)
	if err != nil {
		return nil, err
	}

	var prices []product.Price
	if len(m.Prices) > 0 {
		if err := json.Unmarshal(m.Prices, &prices); err != nil {
			return nil, err
		}
	}

	return &product.Product{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          m.ID,
		Creator:     creator,
		ContentHash: m.ContentHash,
		Prices:      prices,
	}, nil
}

// ==================== Settlement model ====================

type settlementModel struct {
	grove.BaseModel `grove:"table:bazaar_settlements"`

	ID              string    `grove:"id,pk"`
	Kind            string    `grove:"kind"`
	ProductID       int64     `grove:"product_id"`
	Payer           string    `grove:"payer"`
	FeeAmount       int64     `grove:"fee_amount"`
	FeeCurrency     string    `grove:"fee_currency"`
	FeeRecipient    string    `grove:"fee_recipient"`
	CreatorAmount   int64     `grove:"creator_amount"`
	CreatorCurrency string    `grove:"creator_currency"`
	Creator         string    `grove:"creator"`
	Discounted      bool      `grove:"discounted"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
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

// parseAccountID handles the empty string as the nil identity so columns
// written before a field was populated round-trip cleanly.
func parseAccountID(s string) (id.AccountID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.ParseWithPrefix(s, id.PrefixAccount)
}
