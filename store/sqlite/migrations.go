package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Dialtone store (SQLite).
var Migrations = migrate.NewGroup("dialtone")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_dialtone_accounts",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dialtone_accounts (
    id             TEXT PRIMARY KEY,
    identity       TEXT NOT NULL DEFAULT '',
    number         TEXT NOT NULL DEFAULT '',
    balance        INTEGER NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT 'usd',
    credit_granted INTEGER NOT NULL DEFAULT 0,
    metadata       TEXT NOT NULL DEFAULT '{}',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now')),
    CHECK (balance >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_dialtone_accounts_identity ON dialtone_accounts (identity);
CREATE UNIQUE INDEX IF NOT EXISTS idx_dialtone_accounts_number ON dialtone_accounts (number);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dialtone_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dialtone_usage_events",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dialtone_usage_events (
    id               TEXT PRIMARY KEY,
    account_id       TEXT NOT NULL DEFAULT '',
    kind             TEXT NOT NULL DEFAULT '',
    direction        TEXT NOT NULL DEFAULT '',
    counterparty     TEXT NOT NULL DEFAULT '',
    cost             INTEGER NOT NULL DEFAULT 0,
    currency         TEXT NOT NULL DEFAULT 'usd',
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    timestamp        TEXT NOT NULL DEFAULT (datetime('now')),
    provider_ref     TEXT NOT NULL DEFAULT '',
    metadata         TEXT NOT NULL DEFAULT '{}',
    created_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dialtone_usage_account ON dialtone_usage_events (account_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_dialtone_usage_timestamp ON dialtone_usage_events (timestamp);
CREATE UNIQUE INDEX IF NOT EXISTS idx_dialtone_usage_provider_ref ON dialtone_usage_events (provider_ref) WHERE provider_ref != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dialtone_usage_events`)
				return err
			},
		},
	)
}
