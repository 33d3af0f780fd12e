// Package storage defines the store contract the sync engine runs against.
//
// The concrete implementations live in the postgres sub-package (production)
// and the memory sub-package (tests). This package holds the interface and
// the view types shared by implementations and consumers.
package storage

import (
	"context"
	"errors"

	"github.com/saleswire/agentsync/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// OrderSyncState is the per-order reconciliation view: the stored hash plus
// the stored order number, which is tracked out-of-band of the hash match.
type OrderSyncState struct {
	Hash        string
	OrderNumber string
}

// ProductSyncState is the per-product reconciliation view.
type ProductSyncState struct {
	Hash    string
	Deleted bool
}

// PriceKey is the canonical row identity of a price:
// (productId, itemSelection, priceValidFrom, priceQtyFrom). A null
// itemSelection coerces to "" and a null qtyFrom to "0", matching the
// COALESCE predicates the postgres backend queries with; null compares
// equal to null.
type PriceKey struct {
	ProductID     string
	ItemSelection string
	ValidFrom     int64
	QtyFrom       string
}

// PriceKeyFor builds the canonical key for a price row.
func PriceKeyFor(p *types.Price) PriceKey {
	key := PriceKey{
		ProductID:     p.ProductID,
		ItemSelection: types.StringOrEmpty(p.ItemSelection),
		ValidFrom:     p.PriceValidFrom,
		QtyFrom:       "0",
	}
	if p.PriceQtyFrom != nil {
		key.QtyFrom = *p.PriceQtyFrom
	}
	return key
}

// PriceSyncState is the per-price reconciliation view. UnitPrice is kept so
// the pipeline can write price_history rows with the previous value.
type PriceSyncState struct {
	Hash      string
	UnitPrice *string
}

// Store is the interface satisfied by *postgres.Store and *memory.Store.
// Consumers depend on this interface rather than on a concrete type so that
// the engine and scheduler can be tested against the in-memory backend.
//
// Every method on tenant data (users, customers, orders) takes the owning
// userID; no tenant row is ever addressed without it.
type Store interface {
	// Users
	ListWhitelistedUsers(ctx context.Context) ([]*types.User, error)
	GetUser(ctx context.Context, id string) (*types.User, error)
	UpsertUser(ctx context.Context, user *types.User) error
	SetUserWhitelisted(ctx context.Context, id string, whitelisted bool) error
	TouchUserSync(ctx context.Context, userID string, kind types.SyncKind, ts int64) error

	// Customers
	CustomerSyncStates(ctx context.Context, userID string) (map[string]string, error)
	InsertCustomer(ctx context.Context, c *types.Customer) error
	UpdateCustomer(ctx context.Context, c *types.Customer) error
	RefreshCustomerSync(ctx context.Context, profile, userID string, ts int64) error
	DeleteCustomersNotIn(ctx context.Context, userID string, keep []string) ([]string, error)
	GetCustomer(ctx context.Context, profile, userID string) (*types.Customer, error)
	ListCustomers(ctx context.Context, userID string, filter types.CustomerFilter) ([]*types.Customer, error)

	// Orders
	OrderSyncStates(ctx context.Context, userID string) (map[string]OrderSyncState, error)
	InsertOrder(ctx context.Context, o *types.Order) error
	UpdateOrder(ctx context.Context, o *types.Order) error
	RefreshOrderSync(ctx context.Context, id, userID string, ts int64) error
	UpdateOrderNumber(ctx context.Context, id, userID, orderNumber, hash string, ts int64) error
	DeleteOrdersNotIn(ctx context.Context, userID string, keep []string) ([]string, error)
	GetOrder(ctx context.Context, id, userID string) (*types.Order, error)
	InsertOrderArticle(ctx context.Context, a *types.OrderArticle) error
	GetOrderArticles(ctx context.Context, orderID, userID string) ([]*types.OrderArticle, error)
	UpdateOrderState(ctx context.Context, id, userID, newState, actor, notes string, confidence *float64, source string) error
	GetOrderStateHistory(ctx context.Context, orderID, userID string) ([]*types.OrderStateEntry, error)
	FindOrderIDByNumber(ctx context.Context, userID, orderNumber string) (string, error)
	UpdateOrderDDT(ctx context.Context, id, userID string, f types.DDTFields, ts int64) error
	UpdateOrderInvoice(ctx context.Context, id, userID string, f types.InvoiceFields, ts int64) error
	LastSalesForArticle(ctx context.Context, userID, articleCode string, limit int) ([]*types.ArticleSale, error)

	// Products (shared across tenants)
	ProductSyncStates(ctx context.Context) (map[string]ProductSyncState, error)
	UpsertProduct(ctx context.Context, p *types.Product) error
	RefreshProductSync(ctx context.Context, id string, ts int64) error
	SoftDeleteProductsNotIn(ctx context.Context, keep []string, now int64) ([]string, error)
	DeleteAllProducts(ctx context.Context) error
	GetProduct(ctx context.Context, id string) (*types.Product, error)
	SearchProducts(ctx context.Context, query string, includeDeleted bool) ([]*types.Product, error)
	InsertProductChange(ctx context.Context, ch *types.ProductChange) error
	ListProductChanges(ctx context.Context, since int64) ([]*types.ProductChange, error)

	// Prices (shared across tenants)
	PriceSyncStates(ctx context.Context) (map[PriceKey]PriceSyncState, error)
	InsertPrice(ctx context.Context, p *types.Price) error
	UpdatePrice(ctx context.Context, p *types.Price) error
	RefreshPriceSync(ctx context.Context, key PriceKey, ts int64) error
	NullifyAllPrices(ctx context.Context) error
	ListPricesForProduct(ctx context.Context, productID string) ([]*types.Price, error)
	InsertPriceHistory(ctx context.Context, e *types.PriceHistoryEntry) error
	ListPriceHistory(ctx context.Context, since int64) ([]*types.PriceHistoryEntry, error)

	// Sync settings
	SyncSettings(ctx context.Context) (map[types.SyncKind]types.SyncSetting, error)
	GetSyncSetting(ctx context.Context, kind types.SyncKind) (types.SyncSetting, error)
	UpdateSyncInterval(ctx context.Context, kind types.SyncKind, minutes int) error
	SetSyncEnabled(ctx context.Context, kind types.SyncKind, enabled bool) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
