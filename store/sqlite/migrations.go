package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Bazaar store (SQLite).
var Migrations = migrate.NewGroup("bazaar")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_bazaar_config",
			Version: "20240601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bazaar_config (
    id                      TEXT PRIMARY KEY,
    deploy_cost_amount      INTEGER NOT NULL DEFAULT 0,
    deploy_cost_currency    TEXT NOT NULL DEFAULT '',
    fee_percentage          INTEGER NOT NULL DEFAULT 0,
    fee_recipient           TEXT NOT NULL DEFAULT '',
    discount_currency       TEXT NOT NULL DEFAULT '',
    discount_cost_amount    INTEGER NOT NULL DEFAULT 0,
    discount_cost_currency  TEXT NOT NULL DEFAULT '',
    discount_fee_percentage INTEGER NOT NULL DEFAULT 0,
    approved_currencies     TEXT NOT NULL DEFAULT '[]',
    transfers_allowed       INTEGER NOT NULL DEFAULT 0,
    paused                  INTEGER NOT NULL DEFAULT 0,
    created_at              TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at              TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bazaar_config`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bazaar_products",
			Version: "20240601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bazaar_products (
    id           INTEGER PRIMARY KEY,
    creator      TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL DEFAULT '',
    prices       TEXT NOT NULL DEFAULT '[]',
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bazaar_products_hash ON bazaar_products (content_hash);
CREATE INDEX IF NOT EXISTS idx_bazaar_products_creator ON bazaar_products (creator, id DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bazaar_products`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bazaar_settlements",
			Version: "20240601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bazaar_settlements (
    id               TEXT PRIMARY KEY,
    kind             TEXT NOT NULL DEFAULT '',
    product_id       INTEGER NOT NULL DEFAULT 0,
    payer            TEXT NOT NULL DEFAULT '',
    fee_amount       INTEGER NOT NULL DEFAULT 0,
    fee_currency     TEXT NOT NULL DEFAULT '',
    fee_recipient    TEXT NOT NULL DEFAULT '',
    creator_amount   INTEGER NOT NULL DEFAULT 0,
    creator_currency TEXT NOT NULL DEFAULT '',
    creator          TEXT NOT NULL DEFAULT '',
    discounted       INTEGER NOT NULL DEFAULT 0,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bazaar_settlements_product ON bazaar_settlements (product_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bazaar_settlements_payer ON bazaar_settlements (payer, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bazaar_settlements`)
				return err
			},
		},
	)
}
