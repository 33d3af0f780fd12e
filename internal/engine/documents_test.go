package engine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/saleswire/agentsync/internal/engine"
	"github.com/saleswire/agentsync/internal/storage/memory"
	"github.com/saleswire/agentsync/internal/types"
)

func ddtLine(orderNumber, number string, date int64, carrier string) string {
	return fmt.Sprintf(`{"orderNumber":%q,"number":%q,"date":%d,"carrier":%q}`, orderNumber, number, date, carrier)
}

func invoiceLine(orderNumber, number string, date int64, amount string, paid bool) string {
	return fmt.Sprintf(`{"orderNumber":%q,"number":%q,"date":%d,"amount":%q,"paid":%t}`, orderNumber, number, date, amount, paid)
}

func seedOrder(t *testing.T, store *memory.Store, id, number string) {
	t.Helper()
	path := writeSnapshot(t, orderLine(id, number, "100.00"))
	if res := engine.Run(context.Background(), types.SyncOrders, testDeps(store, path), testUser); !res.Success {
		t.Fatalf("order seed failed: %v", res.Failure)
	}
}

func TestDDTEnrichment(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedOrder(t, store, "O1", "V1/2024")

	path := writeSnapshot(t, ddtLine("V1/2024", "DDT-55", 1_700_000_500, "BRT"))
	rec := &eventRecorder{}
	deps := testDeps(store, path)
	deps.Observer = rec

	res := engine.Run(ctx, types.SyncDDT, deps, testUser)
	if !res.Success || res.Updated != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	o, err := store.GetOrder(ctx, "O1", testUser)
	if err != nil {
		t.Fatalf("order missing: %v", err)
	}
	if types.StringOrEmpty(o.DDTNumber) != "DDT-55" {
		t.Errorf("DDT number not applied: %v", o.DDTNumber)
	}
	if o.DDTDate == nil || *o.DDTDate != 1_700_000_500 {
		t.Errorf("DDT date not applied: %v", o.DDTDate)
	}
	if types.StringOrEmpty(o.DDTCarrier) != "BRT" {
		t.Errorf("carrier not applied: %v", o.DDTCarrier)
	}
	if len(rec.events) != 1 || rec.events[0].Kind != types.SyncDDT || rec.events[0].EntityID != "O1" || rec.events[0].Action != types.ChangeUpdated {
		t.Errorf("unexpected events: %+v", rec.events)
	}

	// Same document again: nothing to write.
	res = engine.Run(ctx, types.SyncDDT, testDeps(store, path), testUser)
	if !res.Success || res.Updated != 0 || res.Skipped != 1 {
		t.Fatalf("rerun must be idempotent: %+v", res)
	}
}

func TestDDTUnmatchedOrderIsSkipped(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedOrder(t, store, "O1", "V1/2024")

	path := writeSnapshot(t, ddtLine("NO-SUCH-ORDER", "DDT-55", 1_700_000_500, "BRT"))
	res := engine.Run(ctx, types.SyncDDT, testDeps(store, path), testUser)

	if !res.Success {
		t.Fatalf("unmatched documents must not fail the run: %v", res.Failure)
	}
	if res.Updated != 0 || res.Skipped != 1 {
		t.Errorf("unexpected counts: %+v", res)
	}
	states, _ := store.OrderSyncStates(ctx, testUser)
	if len(states) != 1 {
		t.Errorf("document sync must never create orders, got %d", len(states))
	}
}

func TestInvoiceEnrichment(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedOrder(t, store, "O1", "V1/2024")

	unpaid := writeSnapshot(t, invoiceLine("V1/2024", "FT-99", 1_700_000_900, "122.00", false))
	res := engine.Run(ctx, types.SyncInvoices, testDeps(store, unpaid), testUser)
	if !res.Success || res.Updated != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	o, _ := store.GetOrder(ctx, "O1", testUser)
	if types.StringOrEmpty(o.InvoiceNumber) != "FT-99" {
		t.Errorf("invoice number not applied: %v", o.InvoiceNumber)
	}
	if types.StringOrEmpty(o.InvoiceAmount) != "122.00" {
		t.Errorf("invoice amount not applied: %v", o.InvoiceAmount)
	}
	if o.InvoicePaid == nil || *o.InvoicePaid {
		t.Errorf("invoice should be unpaid: %v", o.InvoicePaid)
	}

	// Only the paid flag flips: still one targeted update.
	paid := writeSnapshot(t, invoiceLine("V1/2024", "FT-99", 1_700_000_900, "122.00", true))
	res = engine.Run(ctx, types.SyncInvoices, testDeps(store, paid), testUser)
	if !res.Success || res.Updated != 1 || res.Skipped != 0 {
		t.Fatalf("flag change must update: %+v", res)
	}
	o, _ = store.GetOrder(ctx, "O1", testUser)
	if o.InvoicePaid == nil || !*o.InvoicePaid {
		t.Errorf("paid flag not applied: %v", o.InvoicePaid)
	}

	res = engine.Run(ctx, types.SyncInvoices, testDeps(store, paid), testUser)
	if !res.Success || res.Updated != 0 || res.Skipped != 1 {
		t.Fatalf("rerun must be idempotent: %+v", res)
	}
}

func TestDocumentValidation(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedOrder(t, store, "O1", "V1/2024")

	path := writeSnapshot(t,
		`{"number":"DDT-1"}`,
		ddtLine("V1/2024", "DDT-2", 1_700_000_500, ""),
	)
	res := engine.Run(ctx, types.SyncDDT, testDeps(store, path), testUser)

	if !res.Success || res.Processed != 2 || res.Skipped != 1 || res.Updated != 1 {
		t.Fatalf("unexpected counts: %+v", res)
	}
}

// Enrichment lands on the order found by its current number, including
// numbers rewritten by a rename.
func TestDDTFollowsRenamedOrder(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedOrder(t, store, "O1", "V1/2024")
	seedOrder(t, store, "O1", "N55/2024")

	path := writeSnapshot(t, ddtLine("N55/2024", "DDT-55", 1_700_000_500, "GLS"))
	res := engine.Run(ctx, types.SyncDDT, testDeps(store, path), testUser)
	if !res.Success || res.Updated != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	o, _ := store.GetOrder(ctx, "O1", testUser)
	if types.StringOrEmpty(o.DDTNumber) != "DDT-55" {
		t.Errorf("DDT not applied after rename: %v", o.DDTNumber)
	}
}
