package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

// syncDocuments enriches existing orders with delivery-note or invoice
// columns, depending on r.kind. Documents never create or delete orders:
// a document whose order number matches nothing in the tenant's store is
// counted as skipped and picked up on a later run, once the order sync
// has caught up.
func (r *run) syncDocuments(ctx context.Context) *Failure {
	recs, path, f := r.fetch(ctx)
	if path != "" {
		defer r.deps.Cleanup(path)
	}
	if f != nil {
		return f
	}

	now := r.deps.Now().Unix()
	r.progress(progressReconcile, labelReconciling(len(recs.Documents)))

	for i, rec := range recs.Documents {
		if f := r.checkpoint(i); f != nil {
			return f
		}
		r.res.Processed++

		if err := rec.Validate(); err != nil {
			r.skipInvalid(err)
			continue
		}

		id, err := r.deps.Store.FindOrderIDByNumber(ctx, r.userID, rec.OrderNumber)
		if errors.Is(err, storage.ErrNotFound) {
			r.res.Skipped++
			r.deps.Log.Debug("document matches no order", "kind", r.kind, "user", r.userID, "orderNumber", rec.OrderNumber)
			continue
		}
		if err != nil {
			return failure(FailureStore, "db-loop", fmt.Errorf("failed to resolve order %s: %w", rec.OrderNumber, err))
		}

		o, err := r.deps.Store.GetOrder(ctx, id, r.userID)
		if err != nil {
			return failure(FailureStore, "db-loop", fmt.Errorf("failed to load order %s: %w", id, err))
		}

		var applied bool
		if r.kind == types.SyncDDT {
			fields := rec.DDT()
			if !ddtEqual(o, fields) {
				if err := r.deps.Store.UpdateOrderDDT(ctx, id, r.userID, fields, now); err != nil {
					return failure(FailureStore, "db-loop", fmt.Errorf("failed to apply DDT %s to order %s: %w", fields.Number, id, err))
				}
				applied = true
			}
		} else {
			fields := rec.Invoice()
			if !invoiceEqual(o, fields) {
				if err := r.deps.Store.UpdateOrderInvoice(ctx, id, r.userID, fields, now); err != nil {
					return failure(FailureStore, "db-loop", fmt.Errorf("failed to apply invoice %s to order %s: %w", fields.Number, id, err))
				}
				applied = true
			}
		}

		if applied {
			r.res.Updated++
			r.notify(id, types.ChangeUpdated)
		} else {
			r.res.Skipped++
		}
	}

	r.progress(progressDone, labelDone)
	return nil
}

// ddtEqual reports whether the order already carries exactly these
// delivery-note fields. Empty strings and NULL columns are equivalent.
func ddtEqual(o *types.Order, f types.DDTFields) bool {
	return types.StringOrEmpty(o.DDTNumber) == f.Number &&
		eqInt64Ptr(o.DDTDate, f.Date) &&
		eqInt64Ptr(o.DDTDeliveredAt, f.DeliveredAt) &&
		types.StringOrEmpty(o.DDTCarrier) == f.Carrier
}

func invoiceEqual(o *types.Order, f types.InvoiceFields) bool {
	return types.StringOrEmpty(o.InvoiceNumber) == f.Number &&
		eqInt64Ptr(o.InvoiceDate, f.Date) &&
		types.StringOrEmpty(o.InvoiceAmount) == types.StringOrEmpty(f.Amount) &&
		eqBoolPtr(o.InvoicePaid, f.Paid)
}

func eqInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
