// Package types defines core data structures for the agentsync engine.
package types

import (
	"fmt"
)

// SyncKind identifies one of the six synchronized datasets.
type SyncKind string

// Sync kind constants
const (
	SyncCustomers SyncKind = "customers"
	SyncOrders    SyncKind = "orders"
	SyncProducts  SyncKind = "products"
	SyncPrices    SyncKind = "prices"
	SyncDDT       SyncKind = "ddt"
	SyncInvoices  SyncKind = "invoices"
)

// IsValid checks if the sync kind value is valid
func (k SyncKind) IsValid() bool {
	switch k {
	case SyncCustomers, SyncOrders, SyncProducts, SyncPrices, SyncDDT, SyncInvoices:
		return true
	}
	return false
}

// Shared reports whether the dataset is shared across tenants.
// Shared kinds run one pipeline for the whole store; tenant kinds
// run one pipeline per whitelisted user.
func (k SyncKind) Shared() bool {
	return k == SyncProducts || k == SyncPrices
}

// AllSyncKinds returns the six kinds in scheduling order.
func AllSyncKinds() []SyncKind {
	return []SyncKind{SyncCustomers, SyncOrders, SyncProducts, SyncPrices, SyncDDT, SyncInvoices}
}

// ParseSyncKind converts a user-supplied string into a SyncKind.
func ParseSyncKind(s string) (SyncKind, error) {
	k := SyncKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown sync kind: %q", s)
	}
	return k, nil
}

// DefaultIntervalMinutes returns the seed interval for a kind, used when
// sync_settings has no row yet.
func DefaultIntervalMinutes(k SyncKind) int {
	switch k {
	case SyncCustomers:
		return 360
	case SyncOrders:
		return 30
	case SyncProducts, SyncPrices:
		return 720
	case SyncDDT, SyncInvoices:
		return 60
	}
	return 60
}

// SyncSetting is one row of system.sync_settings.
type SyncSetting struct {
	Kind            SyncKind `json:"sync_type"`
	IntervalMinutes int      `json:"interval_minutes"`
	Enabled         bool     `json:"enabled"`
	UpdatedAt       int64    `json:"updated_at"`
}

// Validate checks the setting holds storable values.
func (s *SyncSetting) Validate() error {
	if !s.Kind.IsValid() {
		return fmt.Errorf("invalid sync kind: %s", s.Kind)
	}
	if s.IntervalMinutes <= 0 {
		return fmt.Errorf("interval must be positive (got %d)", s.IntervalMinutes)
	}
	return nil
}

// Role is the access level of an upstream user.
type Role string

// Role constants
const (
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// IsValid checks if the role value is valid
func (r Role) IsValid() bool {
	return r == RoleAgent || r == RoleAdmin
}

// User is a tenant identified by the upstream application. Created at first
// identification; the sync engine never deletes users.
type User struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Role             Role   `json:"role"`
	Whitelisted      bool   `json:"whitelisted"`
	LastLogin        *int64 `json:"last_login,omitempty"`
	LastCustomerSync *int64 `json:"last_customer_sync,omitempty"`
	LastOrderSync    *int64 `json:"last_order_sync,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}

// Customer is a tenant-scoped customer row, identified by
// (CustomerProfile, UserID). Only the customer pipeline mutates it.
type Customer struct {
	CustomerProfile    string `json:"customer_profile"`
	UserID             string `json:"user_id"`
	CompanyName        string `json:"company_name,omitempty"`
	VATNumber          string `json:"vat_number,omitempty"`
	FiscalCode         string `json:"fiscal_code,omitempty"`
	Address            string `json:"address,omitempty"`
	City               string `json:"city,omitempty"`
	Province           string `json:"province,omitempty"`
	PostalCode         string `json:"postal_code,omitempty"`
	Country            string `json:"country,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Mobile             string `json:"mobile,omitempty"`
	Fax                string `json:"fax,omitempty"`
	Email              string `json:"email,omitempty"`
	PEC                string `json:"pec,omitempty"`
	Website            string `json:"website,omitempty"`
	ContactPerson      string `json:"contact_person,omitempty"`
	CustomerType       string `json:"customer_type,omitempty"`
	SalesZone          string `json:"sales_zone,omitempty"`
	PriceList          string `json:"price_list,omitempty"`
	DiscountClass      string `json:"discount_class,omitempty"`
	PaymentCode        string `json:"payment_code,omitempty"`
	PaymentDescription string `json:"payment_description,omitempty"`
	IBAN               string `json:"iban,omitempty"`
	SDICode            string `json:"sdi_code,omitempty"`
	DeliveryAddress    string `json:"delivery_address,omitempty"`
	DeliveryCity       string `json:"delivery_city,omitempty"`
	DeliveryProvince   string `json:"delivery_province,omitempty"`
	DeliveryPostalCode string `json:"delivery_postal_code,omitempty"`
	Notes              string `json:"notes,omitempty"`
	Latitude           string `json:"latitude,omitempty"`
	Longitude          string `json:"longitude,omitempty"`
	Hash               string `json:"-"` // Internal: digest of the descriptive fields - NOT part of snapshot payloads
	LastSync           int64  `json:"last_sync"`
	CreatedAt          int64  `json:"created_at"`
}

// DefaultOrderState is the lifecycle state stamped on orders at insert.
const DefaultOrderState = "new"

// Order is a tenant-scoped order row, identified by (ID, UserID).
// OrderNumber is secondary and mutable upstream. Monetary amounts are
// decimal-as-string. DDT and invoice fields stay nil until the matching
// enrichment pipeline fills them.
type Order struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	OrderNumber     string  `json:"order_number"`
	CustomerProfile string  `json:"customer_profile,omitempty"`
	CustomerName    string  `json:"customer_name,omitempty"`
	OrderDate       int64   `json:"order_date,omitempty"`
	SalesStatus     string  `json:"sales_status,omitempty"`
	DocumentStatus  string  `json:"document_status,omitempty"`
	TransferStatus  string  `json:"transfer_status,omitempty"`
	TotalAmount     string  `json:"total_amount,omitempty"`
	TaxableAmount   string  `json:"taxable_amount,omitempty"`
	VATAmount       string  `json:"vat_amount,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	AgentCode       string  `json:"agent_code,omitempty"`
	WarehouseCode   string  `json:"warehouse_code,omitempty"`
	DDTNumber       *string `json:"ddt_number,omitempty"`
	DDTDate         *int64  `json:"ddt_date,omitempty"`
	DDTDeliveredAt  *int64  `json:"ddt_delivered_at,omitempty"`
	DDTCarrier      *string `json:"ddt_carrier,omitempty"`
	InvoiceNumber   *string `json:"invoice_number,omitempty"`
	InvoiceDate     *int64  `json:"invoice_date,omitempty"`
	InvoiceAmount   *string `json:"invoice_amount,omitempty"`
	InvoicePaid     *bool   `json:"invoice_paid,omitempty"`
	CurrentState    string  `json:"current_state"`
	Hash            string  `json:"-"`
	LastSync        int64   `json:"last_sync"`
	CreatedAt       int64   `json:"created_at"`
}

// OrderArticle is a line item under an order. The sales application writes
// these; the engine only cascades deletes and serves read queries.
type OrderArticle struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	LineNumber  int    `json:"line_number"`
	ArticleCode string `json:"article_code"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Quantity    string `json:"quantity,omitempty"`
	UnitPrice   string `json:"unit_price,omitempty"`
	Discount    string `json:"discount,omitempty"`
	VATRate     string `json:"vat_rate,omitempty"`
	Total       string `json:"total,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// OrderStateEntry is one append-only row of order_state_history.
type OrderStateEntry struct {
	ID         int64    `json:"id"`
	OrderID    string   `json:"order_id"`
	UserID     string   `json:"user_id"`
	OldState   string   `json:"old_state"`
	NewState   string   `json:"new_state"`
	Actor      string   `json:"actor,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Source     string   `json:"source,omitempty"`
	CreatedAt  int64    `json:"created_at"`
}

// Product is a shared (cross-tenant) product row. Soft-deleted via
// DeletedAt; a reappearance in a later snapshot clears the marker.
type Product struct {
	ID             string `json:"id"`
	Code           string `json:"code,omitempty"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Category       string `json:"category,omitempty"`
	Subcategory    string `json:"subcategory,omitempty"`
	Unit           string `json:"unit,omitempty"`
	Price          string `json:"price,omitempty"`
	VAT            string `json:"vat,omitempty"`
	EAN            string `json:"ean,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	ImageLocalPath string `json:"image_local_path,omitempty"`
	Available      bool   `json:"available,omitempty"`
	DeletedAt      *int64 `json:"deleted_at,omitempty"`
	Hash           string `json:"-"` // Supplied by the parser: digest of the snapshot row content
	LastSync       int64  `json:"last_sync"`
	CreatedAt      int64  `json:"created_at"`
}

// IsDeleted reports whether the product is currently soft-deleted.
func (p *Product) IsDeleted() bool {
	return p.DeletedAt != nil
}

// Price is a shared price row. Row identity is
// (ProductID, ItemSelection, PriceValidFrom, PriceQtyFrom) with
// ItemSelection and PriceQtyFrom nullable; null compares equal to null.
// Prices are never pruned, only overwritten on their identity.
type Price struct {
	ID             int64   `json:"id,omitempty"`
	ProductID      string  `json:"product_id"`
	ItemSelection  *string `json:"item_selection,omitempty"`
	UnitPrice      *string `json:"unit_price,omitempty"` // nil after a forced reset, until the next sync
	PriceValidFrom int64   `json:"price_valid_from"`
	PriceValidTo   *int64  `json:"price_valid_to,omitempty"`
	PriceQtyFrom   *string `json:"price_qty_from,omitempty"`
	PriceQtyTo     *string `json:"price_qty_to,omitempty"`
	Hash           string  `json:"-"`
	LastSync       int64   `json:"last_sync"`
	CreatedAt      int64   `json:"created_at"`
}

// ChangeAction categorizes a reconciliation outcome for the change log.
type ChangeAction string

// Change action constants
const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeDeleted ChangeAction = "deleted"
)

// IsValid checks if the change action value is valid
func (a ChangeAction) IsValid() bool {
	switch a {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
		return true
	}
	return false
}

// ChangeEvent is the in-process notification emitted for every mutating
// reconciliation decision. Observers receive it; the change-log tables are
// written independently of any observer.
type ChangeEvent struct {
	Kind     SyncKind     `json:"kind"`
	EntityID string       `json:"entity_id"`
	UserID   string       `json:"user_id,omitempty"` // empty for shared kinds
	Action   ChangeAction `json:"action"`
}

// ProductChange is one row of shared.product_changes.
type ProductChange struct {
	ID            int64        `json:"id"`
	ProductID     string       `json:"product_id"`
	ChangeType    ChangeAction `json:"change_type"`
	ChangedAt     int64        `json:"changed_at"`
	SyncSessionID string       `json:"sync_session_id"`
}

// PriceChangeType categorizes a price movement for price_history.
type PriceChangeType string

// Price change type constants
const (
	PriceChangeIncrease PriceChangeType = "increase"
	PriceChangeDecrease PriceChangeType = "decrease"
	PriceChangeNew      PriceChangeType = "new"
)

// IsValid checks if the price change type value is valid
func (t PriceChangeType) IsValid() bool {
	switch t {
	case PriceChangeIncrease, PriceChangeDecrease, PriceChangeNew:
		return true
	}
	return false
}

// PriceHistoryEntry is one row of shared.price_history.
type PriceHistoryEntry struct {
	ID               int64           `json:"id"`
	ProductID        string          `json:"product_id"`
	VariantID        *string         `json:"variant_id,omitempty"`
	OldPrice         *string         `json:"old_price,omitempty"`
	NewPrice         string          `json:"new_price"`
	PercentageChange *string         `json:"percentage_change,omitempty"`
	ChangeType       PriceChangeType `json:"change_type"`
	SyncDate         int64           `json:"sync_date"`
	Source           string          `json:"source,omitempty"`
}

// DDTFields carries the delivery-note columns applied to an order by the
// DDT pipeline.
type DDTFields struct {
	Number      string `json:"ddt_number"`
	Date        *int64 `json:"ddt_date,omitempty"`
	DeliveredAt *int64 `json:"ddt_delivered_at,omitempty"`
	Carrier     string `json:"ddt_carrier,omitempty"`
}

// InvoiceFields carries the invoice columns applied to an order by the
// invoice pipeline.
type InvoiceFields struct {
	Number string  `json:"invoice_number"`
	Date   *int64  `json:"invoice_date,omitempty"`
	Amount *string `json:"invoice_amount,omitempty"`
	Paid   *bool   `json:"invoice_paid,omitempty"`
}

// StringOrEmpty returns the pointed-to value, or "" for nil. Nullable
// fields coerce to the empty string everywhere content is compared.
func StringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StringPtr returns a pointer to s. Convenience for literals in tests and
// snapshot mapping.
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
