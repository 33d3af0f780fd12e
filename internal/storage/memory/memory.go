// Package memory provides an in-memory Store used by unit tests.
//
// It mirrors the postgres backend's observable behavior, including cascade
// ordering on order deletes and null-equality matching of price identities,
// so engine and scheduler tests can run without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/types"
)

// Store is a mutex-guarded map-backed implementation of storage.Store.
type Store struct {
	mu sync.RWMutex

	users        map[string]*types.User
	customers    map[string]map[string]*types.Customer // userID → profile
	orders       map[string]map[string]*types.Order    // userID → order id
	articles     map[string][]*types.OrderArticle      // userID
	stateHistory map[string][]*types.OrderStateEntry   // userID
	products     map[string]*types.Product
	prices       map[storage.PriceKey]*types.Price
	prodChanges  []*types.ProductChange
	priceHist    []*types.PriceHistoryEntry
	settings     map[types.SyncKind]types.SyncSetting

	nextEntryID  int64
	nextPriceID  int64
	nextChangeID int64
	nextHistID   int64
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store with default sync settings seeded.
func New() *Store {
	s := &Store{
		users:        make(map[string]*types.User),
		customers:    make(map[string]map[string]*types.Customer),
		orders:       make(map[string]map[string]*types.Order),
		articles:     make(map[string][]*types.OrderArticle),
		stateHistory: make(map[string][]*types.OrderStateEntry),
		products:     make(map[string]*types.Product),
		prices:       make(map[storage.PriceKey]*types.Price),
		settings:     make(map[types.SyncKind]types.SyncSetting),
	}
	for _, k := range types.AllSyncKinds() {
		s.settings[k] = types.SyncSetting{
			Kind:            k,
			IntervalMinutes: types.DefaultIntervalMinutes(k),
			Enabled:         true,
		}
	}
	return s
}

// Users

func (s *Store) ListWhitelistedUsers(ctx context.Context) ([]*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.User
	for _, u := range s.users {
		if u.Whitelisted {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) UpsertUser(ctx context.Context, user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneUser(user)
	if existing, ok := s.users[user.ID]; ok && cp.CreatedAt == 0 {
		cp.CreatedAt = existing.CreatedAt
	}
	s.users[user.ID] = cp
	return nil
}

func (s *Store) SetUserWhitelisted(ctx context.Context, id string, whitelisted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Whitelisted = whitelisted
	return nil
}

func (s *Store) TouchUserSync(ctx context.Context, userID string, kind types.SyncKind, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	switch kind {
	case types.SyncCustomers:
		u.LastCustomerSync = types.Int64Ptr(ts)
	case types.SyncOrders:
		u.LastOrderSync = types.Int64Ptr(ts)
	}
	return nil
}

// Customers

func (s *Store) CustomerSyncStates(ctx context.Context, userID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.customers[userID]))
	for profile, c := range s.customers[userID] {
		out[profile] = c.Hash
	}
	return out, nil
}

func (s *Store) InsertCustomer(ctx context.Context, c *types.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customers[c.UserID] == nil {
		s.customers[c.UserID] = make(map[string]*types.Customer)
	}
	s.customers[c.UserID][c.CustomerProfile] = cloneCustomer(c)
	return nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c *types.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customers[c.UserID][c.CustomerProfile]
	if !ok {
		return storage.ErrNotFound
	}
	cp := cloneCustomer(c)
	cp.CreatedAt = existing.CreatedAt
	s.customers[c.UserID][c.CustomerProfile] = cp
	return nil
}

func (s *Store) RefreshCustomerSync(ctx context.Context, profile, userID string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[userID][profile]
	if !ok {
		return storage.ErrNotFound
	}
	c.LastSync = ts
	return nil
}

func (s *Store) DeleteCustomersNotIn(ctx context.Context, userID string, keep []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keepSet := toSet(keep)
	var deleted []string
	for profile := range s.customers[userID] {
		if !keepSet[profile] {
			delete(s.customers[userID], profile)
			deleted = append(deleted, profile)
		}
	}
	sort.Strings(deleted)
	return deleted, nil
}

func (s *Store) GetCustomer(ctx context.Context, profile, userID string) (*types.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[userID][profile]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneCustomer(c), nil
}

func (s *Store) ListCustomers(ctx context.Context, userID string, filter types.CustomerFilter) ([]*types.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Customer
	for _, c := range s.customers[userID] {
		if filter.City != "" && !strings.EqualFold(c.City, filter.City) {
			continue
		}
		if filter.Province != "" && !strings.EqualFold(c.Province, filter.Province) {
			continue
		}
		if filter.SalesZone != "" && !strings.EqualFold(c.SalesZone, filter.SalesZone) {
			continue
		}
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(c.CompanyName), q) &&
				!strings.Contains(strings.ToLower(c.CustomerProfile), q) &&
				!strings.Contains(strings.ToLower(c.City), q) {
				continue
			}
		}
		out = append(out, cloneCustomer(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyName < out[j].CompanyName })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Orders

func (s *Store) OrderSyncStates(ctx context.Context, userID string) (map[string]storage.OrderSyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]storage.OrderSyncState, len(s.orders[userID]))
	for id, o := range s.orders[userID] {
		out[id] = storage.OrderSyncState{Hash: o.Hash, OrderNumber: o.OrderNumber}
	}
	return out, nil
}

func (s *Store) InsertOrder(ctx context.Context, o *types.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders[o.UserID] == nil {
		s.orders[o.UserID] = make(map[string]*types.Order)
	}
	cp := cloneOrder(o)
	if cp.CurrentState == "" {
		cp.CurrentState = types.DefaultOrderState
	}
	s.orders[o.UserID][o.ID] = cp
	return nil
}

func (s *Store) UpdateOrder(ctx context.Context, o *types.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.orders[o.UserID][o.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cp := cloneOrder(o)
	// Content updates never touch lifecycle state or enrichment columns.
	cp.CreatedAt = existing.CreatedAt
	cp.CurrentState = existing.CurrentState
	cp.DDTNumber = existing.DDTNumber
	cp.DDTDate = existing.DDTDate
	cp.DDTDeliveredAt = existing.DDTDeliveredAt
	cp.DDTCarrier = existing.DDTCarrier
	cp.InvoiceNumber = existing.InvoiceNumber
	cp.InvoiceDate = existing.InvoiceDate
	cp.InvoiceAmount = existing.InvoiceAmount
	cp.InvoicePaid = existing.InvoicePaid
	s.orders[o.UserID][o.ID] = cp
	return nil
}

func (s *Store) RefreshOrderSync(ctx context.Context, id, userID string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[userID][id]
	if !ok {
		return storage.ErrNotFound
	}
	o.LastSync = ts
	return nil
}

func (s *Store) UpdateOrderNumber(ctx context.Context, id, userID, orderNumber, hash string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[userID][id]
	if !ok {
		return storage.ErrNotFound
	}
	o.OrderNumber = orderNumber
	o.Hash = hash
	o.LastSync = ts
	return nil
}

func (s *Store) DeleteOrdersNotIn(ctx context.Context, userID string, keep []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keepSet := toSet(keep)
	var deleted []string
	for id := range s.orders[userID] {
		if !keepSet[id] {
			deleted = append(deleted, id)
		}
	}
	// Children first, matching the postgres cascade order.
	delSet := toSet(deleted)
	s.articles[userID] = filterArticles(s.articles[userID], delSet)
	s.stateHistory[userID] = filterHistory(s.stateHistory[userID], delSet)
	for _, id := range deleted {
		delete(s.orders[userID], id)
	}
	sort.Strings(deleted)
	return deleted, nil
}

func (s *Store) GetOrder(ctx context.Context, id, userID string) (*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[userID][id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) InsertOrderArticle(ctx context.Context, a *types.OrderArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[a.UserID][a.OrderID]; !ok {
		return storage.ErrNotFound
	}
	cp := *a
	s.articles[a.UserID] = append(s.articles[a.UserID], &cp)
	return nil
}

func (s *Store) GetOrderArticles(ctx context.Context, orderID, userID string) ([]*types.OrderArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.OrderArticle
	for _, a := range s.articles[userID] {
		if a.OrderID == orderID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	return out, nil
}

func (s *Store) UpdateOrderState(ctx context.Context, id, userID, newState, actor, notes string, confidence *float64, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[userID][id]
	if !ok {
		return storage.ErrNotFound
	}
	now := nowUnix()
	s.nextEntryID++
	entry := &types.OrderStateEntry{
		ID:        s.nextEntryID,
		OrderID:   id,
		UserID:    userID,
		OldState:  o.CurrentState,
		NewState:  newState,
		Actor:     actor,
		Notes:     notes,
		Source:    source,
		CreatedAt: now,
	}
	if confidence != nil {
		v := *confidence
		entry.Confidence = &v
	}
	o.CurrentState = newState
	o.LastSync = now
	s.stateHistory[userID] = append(s.stateHistory[userID], entry)
	return nil
}

func (s *Store) GetOrderStateHistory(ctx context.Context, orderID, userID string) ([]*types.OrderStateEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.OrderStateEntry
	for _, e := range s.stateHistory[userID] {
		if e.OrderID == orderID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindOrderIDByNumber(ctx context.Context, userID, orderNumber string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, o := range s.orders[userID] {
		if o.OrderNumber == orderNumber {
			return id, nil
		}
	}
	return "", storage.ErrNotFound
}

func (s *Store) UpdateOrderDDT(ctx context.Context, id, userID string, f types.DDTFields, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[userID][id]
	if !ok {
		return storage.ErrNotFound
	}
	o.DDTNumber = types.StringPtr(f.Number)
	o.DDTDate = cloneInt64(f.Date)
	o.DDTDeliveredAt = cloneInt64(f.DeliveredAt)
	if f.Carrier != "" {
		o.DDTCarrier = types.StringPtr(f.Carrier)
	} else {
		o.DDTCarrier = nil
	}
	o.LastSync = ts
	return nil
}

func (s *Store) UpdateOrderInvoice(ctx context.Context, id, userID string, f types.InvoiceFields, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[userID][id]
	if !ok {
		return storage.ErrNotFound
	}
	o.InvoiceNumber = types.StringPtr(f.Number)
	o.InvoiceDate = cloneInt64(f.Date)
	o.InvoiceAmount = cloneString(f.Amount)
	o.InvoicePaid = cloneBool(f.Paid)
	o.LastSync = ts
	return nil
}

func (s *Store) LastSalesForArticle(ctx context.Context, userID, articleCode string, limit int) ([]*types.ArticleSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	var out []*types.ArticleSale
	for _, a := range s.articles[userID] {
		if a.ArticleCode != articleCode {
			continue
		}
		o, ok := s.orders[userID][a.OrderID]
		if !ok {
			continue
		}
		out = append(out, &types.ArticleSale{
			OrderID:      o.ID,
			OrderNumber:  o.OrderNumber,
			OrderDate:    o.OrderDate,
			CustomerName: o.CustomerName,
			ArticleCode:  a.ArticleCode,
			Quantity:     a.Quantity,
			UnitPrice:    a.UnitPrice,
			Discount:     a.Discount,
			CreatedAt:    a.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Products

func (s *Store) ProductSyncStates(ctx context.Context) (map[string]storage.ProductSyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]storage.ProductSyncState, len(s.products))
	for id, p := range s.products {
		out[id] = storage.ProductSyncState{Hash: p.Hash, Deleted: p.DeletedAt != nil}
	}
	return out, nil
}

func (s *Store) UpsertProduct(ctx context.Context, p *types.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneProduct(p)
	cp.DeletedAt = nil // every upsert undeletes
	if existing, ok := s.products[p.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	s.products[p.ID] = cp
	return nil
}

func (s *Store) RefreshProductSync(ctx context.Context, id string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.LastSync = ts
	p.DeletedAt = nil
	return nil
}

func (s *Store) SoftDeleteProductsNotIn(ctx context.Context, keep []string, now int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keepSet := toSet(keep)
	var deleted []string
	for id, p := range s.products {
		if !keepSet[id] && p.DeletedAt == nil {
			p.DeletedAt = types.Int64Ptr(now)
			deleted = append(deleted, id)
		}
	}
	sort.Strings(deleted)
	return deleted, nil
}

func (s *Store) DeleteAllProducts(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[string]*types.Product)
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (s *Store) SearchProducts(ctx context.Context, query string, includeDeleted bool) ([]*types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var out []*types.Product
	for _, p := range s.products {
		if !includeDeleted && p.DeletedAt != nil {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Code), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InsertProductChange(ctx context.Context, ch *types.ProductChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextChangeID++
	cp := *ch
	cp.ID = s.nextChangeID
	s.prodChanges = append(s.prodChanges, &cp)
	return nil
}

func (s *Store) ListProductChanges(ctx context.Context, since int64) ([]*types.ProductChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.ProductChange
	for _, ch := range s.prodChanges {
		if ch.ChangedAt >= since {
			cp := *ch
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Prices

func (s *Store) PriceSyncStates(ctx context.Context) (map[storage.PriceKey]storage.PriceSyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[storage.PriceKey]storage.PriceSyncState, len(s.prices))
	for key, p := range s.prices {
		out[key] = storage.PriceSyncState{Hash: p.Hash, UnitPrice: cloneString(p.UnitPrice)}
	}
	return out, nil
}

func (s *Store) InsertPrice(ctx context.Context, p *types.Price) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := clonePrice(p)
	s.nextPriceID++
	cp.ID = s.nextPriceID
	s.prices[storage.PriceKeyFor(p)] = cp
	return nil
}

func (s *Store) UpdatePrice(ctx context.Context, p *types.Price) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storage.PriceKeyFor(p)
	existing, ok := s.prices[key]
	if !ok {
		return storage.ErrNotFound
	}
	cp := clonePrice(p)
	cp.ID = existing.ID
	cp.CreatedAt = existing.CreatedAt
	s.prices[key] = cp
	return nil
}

func (s *Store) RefreshPriceSync(ctx context.Context, key storage.PriceKey, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[key]
	if !ok {
		return storage.ErrNotFound
	}
	p.LastSync = ts
	return nil
}

func (s *Store) NullifyAllPrices(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Blank the hash as well so the next full sync rewrites every row.
	for _, p := range s.prices {
		p.UnitPrice = nil
		p.Hash = ""
	}
	return nil
}

func (s *Store) ListPricesForProduct(ctx context.Context, productID string) ([]*types.Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Price
	for _, p := range s.prices {
		if p.ProductID == productID {
			out = append(out, clonePrice(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceValidFrom < out[j].PriceValidFrom })
	return out, nil
}

func (s *Store) InsertPriceHistory(ctx context.Context, e *types.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHistID++
	cp := *e
	cp.ID = s.nextHistID
	cp.VariantID = cloneString(e.VariantID)
	cp.OldPrice = cloneString(e.OldPrice)
	cp.PercentageChange = cloneString(e.PercentageChange)
	s.priceHist = append(s.priceHist, &cp)
	return nil
}

func (s *Store) ListPriceHistory(ctx context.Context, since int64) ([]*types.PriceHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.PriceHistoryEntry
	for _, e := range s.priceHist {
		if e.SyncDate >= since {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Sync settings

func (s *Store) SyncSettings(ctx context.Context) (map[types.SyncKind]types.SyncSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.SyncKind]types.SyncSetting, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *Store) GetSyncSetting(ctx context.Context, kind types.SyncKind) (types.SyncSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setting, ok := s.settings[kind]
	if !ok {
		return types.SyncSetting{}, storage.ErrNotFound
	}
	return setting, nil
}

func (s *Store) UpdateSyncInterval(ctx context.Context, kind types.SyncKind, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting := s.settings[kind]
	setting.Kind = kind
	setting.IntervalMinutes = minutes
	setting.UpdatedAt = nowUnix()
	s.settings[kind] = setting
	return nil
}

func (s *Store) SetSyncEnabled(ctx context.Context, kind types.SyncKind, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting := s.settings[kind]
	setting.Kind = kind
	if setting.IntervalMinutes == 0 {
		setting.IntervalMinutes = types.DefaultIntervalMinutes(kind)
	}
	setting.Enabled = enabled
	setting.UpdatedAt = nowUnix()
	s.settings[kind] = setting
	return nil
}

// Lifecycle

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
