package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the multitoken store (SQLite).
var Migrations = migrate.NewGroup("multitoken")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_multitoken_kv",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS multitoken_kv (
    key     BLOB PRIMARY KEY,
    value   BLOB NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0
) WITHOUT ROWID;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS multitoken_kv`)
				return err
			},
		},
	)
}
