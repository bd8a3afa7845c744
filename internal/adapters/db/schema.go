package db

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// activeOrderIndex backs the one-active-order-per-auction rule
const activeOrderIndex = "orders_one_active_per_auction"

// EnsureSchema creates missing tables and indexes. Every statement is
// idempotent, so it runs on each start.
func (client *Connection) EnsureSchema(ctx context.Context) error {
	if _, err := client.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
