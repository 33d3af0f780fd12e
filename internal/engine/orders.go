package engine

import (
	"context"
	"fmt"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

// syncOrders reconciles the tenant's order headers against the snapshot.
//
// The order number participates in the hash but is also tracked
// out-of-band: when the incoming hash differs solely because the upstream
// system renamed the order (draft number promoted to a definitive one),
// the row is not rewritten. The rename is applied with a narrow update and
// reported through Result.OrderNumberChanges instead.
func (r *run) syncOrders(ctx context.Context) *Failure {
	recs, path, f := r.fetch(ctx)
	if path != "" {
		defer r.deps.Cleanup(path)
	}
	if f != nil {
		return f
	}

	states, err := r.deps.Store.OrderSyncStates(ctx, r.userID)
	if err != nil {
		return failure(FailureStore, "db-loop", fmt.Errorf("failed to load order sync state: %w", err))
	}

	now := r.deps.Now().Unix()
	r.progress(progressReconcile, labelReconciling(len(recs.Orders)))

	keep := make([]string, 0, len(recs.Orders))
	for i, rec := range recs.Orders {
		if f := r.checkpoint(i); f != nil {
			return f
		}
		r.res.Processed++

		if err := rec.Validate(); err != nil {
			r.skipInvalid(err)
			continue
		}
		o := rec.Order(r.userID, now)
		keep = append(keep, o.ID)

		st, known := states[o.ID]
		switch {
		case !known:
			if err := r.deps.Store.InsertOrder(ctx, o); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to insert order %s: %w", o.ID, err))
			}
			r.res.Inserted++
			r.notify(o.ID, types.ChangeCreated)
		case st.Hash == o.Hash:
			if err := r.deps.Store.RefreshOrderSync(ctx, o.ID, r.userID, now); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to refresh order %s: %w", o.ID, err))
			}
			r.res.Skipped++
		case st.Hash == types.OrderHash(o.ID, st.OrderNumber, o.SalesStatus, o.DocumentStatus, o.TransferStatus, o.TotalAmount):
			// Recomputing with the stored number reproduces the stored
			// hash, so the number is the only field that moved.
			if err := r.deps.Store.UpdateOrderNumber(ctx, o.ID, r.userID, o.OrderNumber, o.Hash, now); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to rename order %s: %w", o.ID, err))
			}
			r.res.Skipped++
			r.res.OrderNumberChanges = append(r.res.OrderNumberChanges, OrderNumberChange{
				OrderID: o.ID,
				From:    st.OrderNumber,
				To:      o.OrderNumber,
			})
			r.deps.Log.Info("order number changed", "order", o.ID, "user", r.userID,
				"from", st.OrderNumber, "to", o.OrderNumber)
		default:
			if err := r.deps.Store.UpdateOrder(ctx, o); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to update order %s: %w", o.ID, err))
			}
			r.res.Updated++
			r.notify(o.ID, types.ChangeUpdated)
		}
		states[o.ID] = storage.OrderSyncState{Hash: o.Hash, OrderNumber: o.OrderNumber}
	}

	if len(keep) > 0 {
		r.progress(progressPrune, labelPruning)
		deleted, err := r.deps.Store.DeleteOrdersNotIn(ctx, r.userID, keep)
		if err != nil {
			return failure(FailureStore, "prune", fmt.Errorf("failed to prune orders: %w", err))
		}
		r.res.Deleted += len(deleted)
		for _, id := range deleted {
			r.notify(id, types.ChangeDeleted)
		}
	}

	r.touchUser(ctx, now)
	r.progress(progressDone, labelDone)
	return nil
}
