package engine

import (
	"context"
	"fmt"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

// syncProducts reconciles the shared product catalog. Products vanished
// from the snapshot are soft-deleted so historical order lines keep
// resolving; a product that reappears is resurrected in place. Every
// mutation is journaled to the product change log under the run's session.
func (r *run) syncProducts(ctx context.Context) *Failure {
	recs, path, f := r.fetch(ctx)
	if path != "" {
		defer r.deps.Cleanup(path)
	}
	if f != nil {
		return f
	}

	states, err := r.deps.Store.ProductSyncStates(ctx)
	if err != nil {
		return failure(FailureStore, "db-loop", fmt.Errorf("failed to load product sync state: %w", err))
	}

	now := r.deps.Now().Unix()
	r.progress(progressReconcile, labelReconciling(len(recs.Products)))

	keep := make([]string, 0, len(recs.Products))
	for i, rec := range recs.Products {
		if f := r.checkpoint(i); f != nil {
			return f
		}
		r.res.Processed++

		if err := rec.Validate(); err != nil {
			r.skipInvalid(err)
			continue
		}
		p := rec.Product(now)
		keep = append(keep, p.ID)

		st, known := states[p.ID]
		switch {
		case !known:
			if err := r.deps.Store.UpsertProduct(ctx, p); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to insert product %s: %w", p.ID, err))
			}
			r.res.Inserted++
			if f := r.journalProduct(ctx, "db-loop", p.ID, types.ChangeCreated, now); f != nil {
				return f
			}
			r.notify(p.ID, types.ChangeCreated)
		case st.Hash == p.Hash && !st.Deleted:
			if err := r.deps.Store.RefreshProductSync(ctx, p.ID, now); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to refresh product %s: %w", p.ID, err))
			}
			r.res.Skipped++
		case st.Hash == p.Hash && st.Deleted:
			// Resurrection with identical content: clearing the delete
			// marker is enough, but it still counts as an update.
			if err := r.deps.Store.RefreshProductSync(ctx, p.ID, now); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to restore product %s: %w", p.ID, err))
			}
			r.res.Updated++
			if f := r.journalProduct(ctx, "db-loop", p.ID, types.ChangeUpdated, now); f != nil {
				return f
			}
			r.notify(p.ID, types.ChangeUpdated)
		default:
			if err := r.deps.Store.UpsertProduct(ctx, p); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to update product %s: %w", p.ID, err))
			}
			r.res.Updated++
			if f := r.journalProduct(ctx, "db-loop", p.ID, types.ChangeUpdated, now); f != nil {
				return f
			}
			r.notify(p.ID, types.ChangeUpdated)
		}
		states[p.ID] = storage.ProductSyncState{Hash: p.Hash}
	}

	if len(keep) > 0 {
		r.progress(progressPrune, labelPruning)
		deleted, err := r.deps.Store.SoftDeleteProductsNotIn(ctx, keep, now)
		if err != nil {
			return failure(FailureStore, "prune", fmt.Errorf("failed to prune products: %w", err))
		}
		r.res.Deleted += len(deleted)
		for _, id := range deleted {
			if f := r.journalProduct(ctx, "prune", id, types.ChangeDeleted, now); f != nil {
				return f
			}
			r.notify(id, types.ChangeDeleted)
		}
	}

	r.progress(progressDone, labelDone)
	return nil
}

func (r *run) journalProduct(ctx context.Context, stage, productID string, action types.ChangeAction, now int64) *Failure {
	ch := &types.ProductChange{
		ProductID:     productID,
		ChangeType:    action,
		ChangedAt:     now,
		SyncSessionID: r.deps.SessionID,
	}
	if err := r.deps.Store.InsertProductChange(ctx, ch); err != nil {
		return failure(FailureStore, stage, fmt.Errorf("failed to journal product change for %s: %w", productID, err))
	}
	return nil
}
