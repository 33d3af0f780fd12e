package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

func TestCustomerRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := &types.Customer{
		CustomerProfile: "CP-001",
		UserID:          "U1",
		CompanyName:     "Rossi SRL",
		City:            "Milano",
		LastSync:        100,
		CreatedAt:       100,
	}
	c.Hash = c.ComputeHash()
	if err := s.InsertCustomer(ctx, c); err != nil {
		t.Fatalf("InsertCustomer: %v", err)
	}

	got, err := s.GetCustomer(ctx, "CP-001", "U1")
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if got.City != "Milano" {
		t.Errorf("City = %q, want Milano", got.City)
	}

	// Tenant isolation: a different user sees nothing.
	if _, err := s.GetCustomer(ctx, "CP-001", "U2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-tenant read error = %v, want ErrNotFound", err)
	}

	states, err := s.CustomerSyncStates(ctx, "U1")
	if err != nil {
		t.Fatalf("CustomerSyncStates: %v", err)
	}
	if states["CP-001"] != c.Hash {
		t.Error("sync state does not carry the stored hash")
	}
}

func TestDeleteCustomersNotIn(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, profile := range []string{"CP-001", "CP-002", "CP-003"} {
		c := &types.Customer{CustomerProfile: profile, UserID: "U1", CompanyName: profile}
		c.Hash = c.ComputeHash()
		if err := s.InsertCustomer(ctx, c); err != nil {
			t.Fatalf("InsertCustomer(%s): %v", profile, err)
		}
	}
	// A second tenant's row with the same profile must survive.
	other := &types.Customer{CustomerProfile: "CP-002", UserID: "U2"}
	other.Hash = other.ComputeHash()
	if err := s.InsertCustomer(ctx, other); err != nil {
		t.Fatalf("InsertCustomer(U2): %v", err)
	}

	deleted, err := s.DeleteCustomersNotIn(ctx, "U1", []string{"CP-001"})
	if err != nil {
		t.Fatalf("DeleteCustomersNotIn: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted = %v, want 2 profiles", deleted)
	}
	if deleted[0] != "CP-002" || deleted[1] != "CP-003" {
		t.Errorf("deleted = %v, want [CP-002 CP-003]", deleted)
	}
	if _, err := s.GetCustomer(ctx, "CP-002", "U2"); err != nil {
		t.Errorf("other tenant's row was deleted: %v", err)
	}
}

func TestOrderCascadeDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, id := range []string{"ORD-020", "ORD-021"} {
		o := &types.Order{ID: id, UserID: "U1", OrderNumber: "SO-" + id}
		o.Hash = o.ComputeHash()
		if err := s.InsertOrder(ctx, o); err != nil {
			t.Fatalf("InsertOrder(%s): %v", id, err)
		}
	}
	if err := s.InsertOrderArticle(ctx, &types.OrderArticle{
		OrderID: "ORD-021", UserID: "U1", LineNumber: 1, ArticleCode: "ART-9",
	}); err != nil {
		t.Fatalf("InsertOrderArticle: %v", err)
	}
	if err := s.UpdateOrderState(ctx, "ORD-021", "U1", "confirmed", "tester", "", nil, "test"); err != nil {
		t.Fatalf("UpdateOrderState: %v", err)
	}

	deleted, err := s.DeleteOrdersNotIn(ctx, "U1", []string{"ORD-020"})
	if err != nil {
		t.Fatalf("DeleteOrdersNotIn: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "ORD-021" {
		t.Fatalf("deleted = %v, want [ORD-021]", deleted)
	}

	articles, err := s.GetOrderArticles(ctx, "ORD-021", "U1")
	if err != nil {
		t.Fatalf("GetOrderArticles: %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("articles for pruned order remain: %d", len(articles))
	}
	history, err := s.GetOrderStateHistory(ctx, "ORD-021", "U1")
	if err != nil {
		t.Fatalf("GetOrderStateHistory: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("state history for pruned order remains: %d", len(history))
	}
	if _, err := s.GetOrder(ctx, "ORD-020", "U1"); err != nil {
		t.Errorf("surviving order is gone: %v", err)
	}
}

func TestUpdateOrderPreservesEnrichment(t *testing.T) {
	s := New()
	ctx := context.Background()

	o := &types.Order{ID: "ORD-030", UserID: "U1", OrderNumber: "SO-030", SalesStatus: "Open"}
	o.Hash = o.ComputeHash()
	if err := s.InsertOrder(ctx, o); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}
	if err := s.UpdateOrderDDT(ctx, "ORD-030", "U1", types.DDTFields{
		Number: "DDT-77", Date: types.Int64Ptr(1767225600), Carrier: "BRT",
	}, 200); err != nil {
		t.Fatalf("UpdateOrderDDT: %v", err)
	}

	o2 := &types.Order{ID: "ORD-030", UserID: "U1", OrderNumber: "SO-030", SalesStatus: "Confirmed"}
	o2.Hash = o2.ComputeHash()
	if err := s.UpdateOrder(ctx, o2); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}

	got, err := s.GetOrder(ctx, "ORD-030", "U1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.SalesStatus != "Confirmed" {
		t.Errorf("SalesStatus = %q, want Confirmed", got.SalesStatus)
	}
	if got.DDTNumber == nil || *got.DDTNumber != "DDT-77" {
		t.Error("content update clobbered the DDT enrichment")
	}
}

func TestOrderStateHistoryAppend(t *testing.T) {
	s := New()
	ctx := context.Background()

	o := &types.Order{ID: "ORD-001", UserID: "U1", OrderNumber: "SO-001"}
	o.Hash = o.ComputeHash()
	if err := s.InsertOrder(ctx, o); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	if err := s.UpdateOrderState(ctx, "ORD-001", "U1", "confirmed", "agent", "ok", nil, "app"); err != nil {
		t.Fatalf("UpdateOrderState: %v", err)
	}
	if err := s.UpdateOrderState(ctx, "ORD-001", "U1", "shipped", "agent", "", nil, "app"); err != nil {
		t.Fatalf("UpdateOrderState: %v", err)
	}

	history, err := s.GetOrderStateHistory(ctx, "ORD-001", "U1")
	if err != nil {
		t.Fatalf("GetOrderStateHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].OldState != types.DefaultOrderState || history[0].NewState != "confirmed" {
		t.Errorf("first transition = %s→%s, want %s→confirmed",
			history[0].OldState, history[0].NewState, types.DefaultOrderState)
	}
	if history[1].OldState != "confirmed" || history[1].NewState != "shipped" {
		t.Errorf("second transition = %s→%s, want confirmed→shipped",
			history[1].OldState, history[1].NewState)
	}

	got, _ := s.GetOrder(ctx, "ORD-001", "U1")
	if got.CurrentState != "shipped" {
		t.Errorf("CurrentState = %q, want shipped", got.CurrentState)
	}
}

func TestProductSoftDeleteAndUndelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := &types.Product{ID: "PROD-040", Name: "Widget", Hash: "h1", LastSync: 100, CreatedAt: 100}
	if err := s.UpsertProduct(ctx, p); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}

	deleted, err := s.SoftDeleteProductsNotIn(ctx, []string{"OTHER"}, 200)
	if err != nil {
		t.Fatalf("SoftDeleteProductsNotIn: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "PROD-040" {
		t.Fatalf("deleted = %v, want [PROD-040]", deleted)
	}
	got, _ := s.GetProduct(ctx, "PROD-040")
	if got.DeletedAt == nil {
		t.Fatal("product not soft-deleted")
	}

	// Re-running the prune must not report the already-deleted row again.
	deleted, err = s.SoftDeleteProductsNotIn(ctx, []string{"OTHER"}, 300)
	if err != nil {
		t.Fatalf("SoftDeleteProductsNotIn: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("second prune reported %v, want none", deleted)
	}

	// Upsert clears the marker atomically.
	p.Name = "Widget v2"
	p.Hash = "h2"
	if err := s.UpsertProduct(ctx, p); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	got, _ = s.GetProduct(ctx, "PROD-040")
	if got.DeletedAt != nil {
		t.Error("upsert did not clear deletedAt")
	}
	if got.Name != "Widget v2" {
		t.Errorf("Name = %q, want Widget v2", got.Name)
	}
}

func TestSearchProductsExcludesDeleted(t *testing.T) {
	s := New()
	ctx := context.Background()

	live := &types.Product{ID: "P1", Name: "Olio Extra", Code: "OLI-1", Hash: "a"}
	dead := &types.Product{ID: "P2", Name: "Olio Vecchio", Code: "OLI-2", Hash: "b"}
	if err := s.UpsertProduct(ctx, live); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertProduct(ctx, dead); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SoftDeleteProductsNotIn(ctx, []string{"P1"}, 100); err != nil {
		t.Fatal(err)
	}

	got, err := s.SearchProducts(ctx, "olio", false)
	if err != nil {
		t.Fatalf("SearchProducts: %v", err)
	}
	if len(got) != 1 || got[0].ID != "P1" {
		t.Errorf("SearchProducts(false) = %d rows, want only P1", len(got))
	}

	got, err = s.SearchProducts(ctx, "olio", true)
	if err != nil {
		t.Fatalf("SearchProducts: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("SearchProducts(true) = %d rows, want 2", len(got))
	}
}

func TestPriceIdentityNullEquality(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := &types.Price{
		ProductID:      "PROD-050",
		ItemSelection:  nil,
		UnitPrice:      types.StringPtr("10.00"),
		PriceValidFrom: 1767225600,
		PriceQtyFrom:   nil,
	}
	p.Hash = p.ComputeHash()
	if err := s.InsertPrice(ctx, p); err != nil {
		t.Fatalf("InsertPrice: %v", err)
	}

	// Same identity with nil members must match the stored row.
	update := &types.Price{
		ProductID:      "PROD-050",
		ItemSelection:  nil,
		UnitPrice:      types.StringPtr("12.00"),
		PriceValidFrom: 1767225600,
		PriceQtyFrom:   nil,
	}
	update.Hash = update.ComputeHash()
	if err := s.UpdatePrice(ctx, update); err != nil {
		t.Fatalf("UpdatePrice on null identity: %v", err)
	}

	rows, err := s.ListPricesForProduct(ctx, "PROD-050")
	if err != nil {
		t.Fatalf("ListPricesForProduct: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (null identity matched)", len(rows))
	}
	if types.StringOrEmpty(rows[0].UnitPrice) != "12.00" {
		t.Errorf("UnitPrice = %q, want 12.00", types.StringOrEmpty(rows[0].UnitPrice))
	}
}

func TestPriceTemporalSeparation(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i, from := range []int64{1767225600, 1775001600, 1782864000} {
		p := &types.Price{
			ProductID:      "PROD-050",
			UnitPrice:      types.StringPtr([]string{"10.00", "11.00", "12.00"}[i]),
			PriceValidFrom: from,
		}
		p.Hash = p.ComputeHash()
		if err := s.InsertPrice(ctx, p); err != nil {
			t.Fatalf("InsertPrice: %v", err)
		}
	}

	rows, err := s.ListPricesForProduct(ctx, "PROD-050")
	if err != nil {
		t.Fatalf("ListPricesForProduct: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 distinct temporal prices", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].PriceValidFrom >= rows[i].PriceValidFrom {
			t.Error("prices not ordered by validity start")
		}
	}
}

func TestNullifyAllPrices(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := &types.Price{ProductID: "P1", UnitPrice: types.StringPtr("5.00"), PriceValidFrom: 100}
	p.Hash = p.ComputeHash()
	if err := s.InsertPrice(ctx, p); err != nil {
		t.Fatal(err)
	}

	if err := s.NullifyAllPrices(ctx); err != nil {
		t.Fatalf("NullifyAllPrices: %v", err)
	}
	rows, _ := s.ListPricesForProduct(ctx, "P1")
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (nullify keeps rows)", len(rows))
	}
	if rows[0].UnitPrice != nil {
		t.Error("unitPrice not nulled")
	}
	// The stored hash is blanked so the next sync rewrites the row.
	if rows[0].Hash != "" {
		t.Error("hash not blanked after nullify")
	}
}

func TestSyncSettingsSeededAndMutable(t *testing.T) {
	s := New()
	ctx := context.Background()

	all, err := s.SyncSettings(ctx)
	if err != nil {
		t.Fatalf("SyncSettings: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("settings = %d, want 6 seeded kinds", len(all))
	}
	if !all[types.SyncOrders].Enabled {
		t.Error("orders not enabled by default")
	}

	if err := s.UpdateSyncInterval(ctx, types.SyncOrders, 15); err != nil {
		t.Fatalf("UpdateSyncInterval: %v", err)
	}
	if err := s.SetSyncEnabled(ctx, types.SyncPrices, false); err != nil {
		t.Fatalf("SetSyncEnabled: %v", err)
	}

	setting, err := s.GetSyncSetting(ctx, types.SyncOrders)
	if err != nil {
		t.Fatalf("GetSyncSetting: %v", err)
	}
	if setting.IntervalMinutes != 15 {
		t.Errorf("IntervalMinutes = %d, want 15", setting.IntervalMinutes)
	}
	setting, _ = s.GetSyncSetting(ctx, types.SyncPrices)
	if setting.Enabled {
		t.Error("prices still enabled after SetSyncEnabled(false)")
	}
}

func TestLastSalesForArticle(t *testing.T) {
	s := New()
	ctx := context.Background()

	o1 := &types.Order{ID: "O1", UserID: "U1", OrderNumber: "SO-1", CustomerName: "Rossi", OrderDate: 100}
	o2 := &types.Order{ID: "O2", UserID: "U1", OrderNumber: "SO-2", CustomerName: "Bianchi", OrderDate: 200}
	for _, o := range []*types.Order{o1, o2} {
		o.Hash = o.ComputeHash()
		if err := s.InsertOrder(ctx, o); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.InsertOrderArticle(ctx, &types.OrderArticle{
		OrderID: "O1", UserID: "U1", LineNumber: 1, ArticleCode: "ART-1", UnitPrice: "9.00", CreatedAt: 100,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertOrderArticle(ctx, &types.OrderArticle{
		OrderID: "O2", UserID: "U1", LineNumber: 1, ArticleCode: "ART-1", UnitPrice: "9.50", CreatedAt: 200,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertOrderArticle(ctx, &types.OrderArticle{
		OrderID: "O2", UserID: "U1", LineNumber: 2, ArticleCode: "ART-2", UnitPrice: "4.00", CreatedAt: 200,
	}); err != nil {
		t.Fatal(err)
	}

	sales, err := s.LastSalesForArticle(ctx, "U1", "ART-1", 0)
	if err != nil {
		t.Fatalf("LastSalesForArticle: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("sales = %d, want 2", len(sales))
	}
	if sales[0].UnitPrice != "9.50" {
		t.Errorf("newest sale first: got %q, want 9.50", sales[0].UnitPrice)
	}

	sales, _ = s.LastSalesForArticle(ctx, "U1", "ART-1", 1)
	if len(sales) != 1 {
		t.Errorf("limit not applied: got %d rows", len(sales))
	}
}

func TestTouchUserSync(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := &types.User{ID: "U1", Username: "mario", Role: types.RoleAgent, Whitelisted: true, CreatedAt: 100}
	if err := s.UpsertUser(ctx, u); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := s.TouchUserSync(ctx, "U1", types.SyncCustomers, 555); err != nil {
		t.Fatalf("TouchUserSync: %v", err)
	}

	got, _ := s.GetUser(ctx, "U1")
	if got.LastCustomerSync == nil || *got.LastCustomerSync != 555 {
		t.Error("last customer sync not touched")
	}
	if got.LastOrderSync != nil {
		t.Error("order sync touched unexpectedly")
	}
}

func TestListWhitelistedUsers(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, u := range []*types.User{
		{ID: "U1", Username: "mario", Role: types.RoleAgent, Whitelisted: true},
		{ID: "U2", Username: "luigi", Role: types.RoleAgent, Whitelisted: false},
		{ID: "U3", Username: "anna", Role: types.RoleAdmin, Whitelisted: true},
	} {
		if err := s.UpsertUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	users, err := s.ListWhitelistedUsers(ctx)
	if err != nil {
		t.Fatalf("ListWhitelistedUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}
	if users[0].ID != "U1" || users[1].ID != "U3" {
		t.Errorf("users = [%s %s], want [U1 U3]", users[0].ID, users[1].ID)
	}
}
