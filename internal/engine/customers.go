package engine

import (
	"context"
	"fmt"

	"github.com/saleswire/agentsync/internal/types"
)

// syncCustomers reconciles the tenant's customer registry against the
// snapshot. Customers vanished from the snapshot are hard-deleted.
func (r *run) syncCustomers(ctx context.Context) *Failure {
	recs, path, f := r.fetch(ctx)
	if path != "" {
		defer r.deps.Cleanup(path)
	}
	if f != nil {
		return f
	}

	states, err := r.deps.Store.CustomerSyncStates(ctx, r.userID)
	if err != nil {
		return failure(FailureStore, "db-loop", fmt.Errorf("failed to load customer sync state: %w", err))
	}

	now := r.deps.Now().Unix()
	r.progress(progressReconcile, labelReconciling(len(recs.Customers)))

	keep := make([]string, 0, len(recs.Customers))
	for i, rec := range recs.Customers {
		if f := r.checkpoint(i); f != nil {
			return f
		}
		r.res.Processed++

		if err := rec.Validate(); err != nil {
			r.skipInvalid(err)
			continue
		}
		c := rec.Customer(r.userID, now)
		keep = append(keep, c.CustomerProfile)

		hash, known := states[c.CustomerProfile]
		switch {
		case !known:
			if err := r.deps.Store.InsertCustomer(ctx, c); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to insert customer %s: %w", c.CustomerProfile, err))
			}
			r.res.Inserted++
			r.notify(c.CustomerProfile, types.ChangeCreated)
		case hash == c.Hash:
			if err := r.deps.Store.RefreshCustomerSync(ctx, c.CustomerProfile, r.userID, now); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to refresh customer %s: %w", c.CustomerProfile, err))
			}
			r.res.Skipped++
		default:
			if err := r.deps.Store.UpdateCustomer(ctx, c); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to update customer %s: %w", c.CustomerProfile, err))
			}
			r.res.Updated++
			r.notify(c.CustomerProfile, types.ChangeUpdated)
		}
		states[c.CustomerProfile] = c.Hash
	}

	// An empty keep set means the snapshot carried no usable records;
	// absence then says nothing about deletions.
	if len(keep) > 0 {
		r.progress(progressPrune, labelPruning)
		deleted, err := r.deps.Store.DeleteCustomersNotIn(ctx, r.userID, keep)
		if err != nil {
			return failure(FailureStore, "prune", fmt.Errorf("failed to prune customers: %w", err))
		}
		r.res.Deleted += len(deleted)
		for _, profile := range deleted {
			r.notify(profile, types.ChangeDeleted)
		}
	}

	r.touchUser(ctx, now)
	r.progress(progressDone, labelDone)
	return nil
}

// touchUser stamps the per-user sync timestamp for the kinds tracked on
// the user row. A missing user row is not worth failing a completed run.
func (r *run) touchUser(ctx context.Context, now int64) {
	if r.kind != types.SyncCustomers && r.kind != types.SyncOrders {
		return
	}
	if err := r.deps.Store.TouchUserSync(ctx, r.userID, r.kind, now); err != nil {
		r.deps.Log.Warn("failed to update user sync timestamp", "kind", r.kind, "user", r.userID, "error", err)
	}
}
