package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

// syncPrices reconciles the shared price list. Price rows are identified
// by their canonical key (product, variant, validity start, quantity
// tier); they are never pruned, since an expired tier absent from today's
// snapshot still prices historical documents. Value movements are
// journaled to price_history.
func (r *run) syncPrices(ctx context.Context) *Failure {
	recs, path, f := r.fetch(ctx)
	if path != "" {
		defer r.deps.Cleanup(path)
	}
	if f != nil {
		return f
	}

	states, err := r.deps.Store.PriceSyncStates(ctx)
	if err != nil {
		return failure(FailureStore, "db-loop", fmt.Errorf("failed to load price sync state: %w", err))
	}

	now := r.deps.Now().Unix()
	r.progress(progressReconcile, labelReconciling(len(recs.Prices)))

	for i, rec := range recs.Prices {
		if f := r.checkpoint(i); f != nil {
			return f
		}
		r.res.Processed++

		if err := rec.Validate(); err != nil {
			r.skipInvalid(err)
			continue
		}
		p := rec.Price(now)
		key := storage.PriceKeyFor(p)

		st, known := states[key]
		switch {
		case !known:
			if err := r.deps.Store.InsertPrice(ctx, p); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to insert price for %s: %w", p.ProductID, err))
			}
			r.res.Inserted++
			if f := r.journalPrice(ctx, p, nil, now); f != nil {
				return f
			}
			r.notify(p.ProductID, types.ChangeCreated)
		case st.Hash == p.Hash:
			if err := r.deps.Store.RefreshPriceSync(ctx, key, now); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to refresh price for %s: %w", p.ProductID, err))
			}
			r.res.Skipped++
		default:
			if err := r.deps.Store.UpdatePrice(ctx, p); err != nil {
				return failure(FailureStore, "db-loop", fmt.Errorf("failed to update price for %s: %w", p.ProductID, err))
			}
			r.res.Updated++
			if f := r.journalPrice(ctx, p, st.UnitPrice, now); f != nil {
				return f
			}
			r.notify(p.ProductID, types.ChangeUpdated)
		}
		states[key] = storage.PriceSyncState{Hash: p.Hash, UnitPrice: p.UnitPrice}
	}

	r.progress(progressDone, labelDone)
	return nil
}

// journalPrice appends a price_history row when the unit price actually
// moved. Rows whose hash changed for other reasons (validity or quantity
// bounds) leave no trace, and a row reverting to an unknown price is not
// recorded either.
func (r *run) journalPrice(ctx context.Context, p *types.Price, oldPrice *string, now int64) *Failure {
	if p.UnitPrice == nil {
		return nil
	}
	entry := &types.PriceHistoryEntry{
		ProductID:  p.ProductID,
		VariantID:  p.ItemSelection,
		OldPrice:   oldPrice,
		NewPrice:   *p.UnitPrice,
		ChangeType: types.PriceChangeNew,
		SyncDate:   now,
		Source:     r.deps.Source,
	}
	if oldPrice != nil {
		oldD, errOld := decimal.NewFromString(*oldPrice)
		newD, errNew := decimal.NewFromString(*p.UnitPrice)
		if errOld == nil && errNew == nil {
			switch newD.Cmp(oldD) {
			case 0:
				return nil
			case 1:
				entry.ChangeType = types.PriceChangeIncrease
			case -1:
				entry.ChangeType = types.PriceChangeDecrease
			}
			if !oldD.IsZero() {
				pct := newD.Sub(oldD).Div(oldD).Mul(decimal.NewFromInt(100)).Round(2).String()
				entry.PercentageChange = &pct
			}
		}
	}
	if err := r.deps.Store.InsertPriceHistory(ctx, entry); err != nil {
		return failure(FailureStore, "db-loop", fmt.Errorf("failed to journal price change for %s: %w", p.ProductID, err))
	}
	return nil
}
