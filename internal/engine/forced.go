package engine

import (
	"context"
	"fmt"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

// PrepareForced clears derived state so the next run rewrites every row
// from the snapshot regardless of stored hashes. Products are hard-deleted
// and fully repopulated; prices keep their identity rows but lose value
// and hash, so the snapshot rewrites them in place without disturbing the
// price history. Tenant kinds need no preparation, a regular run already
// reconciles them in full.
func PrepareForced(ctx context.Context, store storage.Store, kind types.SyncKind) error {
	switch kind {
	case types.SyncProducts:
		if err := store.DeleteAllProducts(ctx); err != nil {
			return fmt.Errorf("failed to clear products for forced sync: %w", err)
		}
	case types.SyncPrices:
		if err := store.NullifyAllPrices(ctx); err != nil {
			return fmt.Errorf("failed to reset prices for forced sync: %w", err)
		}
	}
	return nil
}
