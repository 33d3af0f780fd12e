package snapshot

import (
	"fmt"

	"github.com/saleswire/agentsync/internal/types"
)

// Records holds the parsed content of one snapshot. Exactly one slice is
// populated, matching the kind the snapshot was parsed as; DDT and invoice
// snapshots share the Documents shape.
type Records struct {
	Customers []*CustomerRecord
	Orders    []*OrderRecord
	Products  []*ProductRecord
	Prices    []*PriceRecord
	Documents []*DocumentRecord
}

// Len returns the record count for the given kind.
func (r *Records) Len(kind types.SyncKind) int {
	switch kind {
	case types.SyncCustomers:
		return len(r.Customers)
	case types.SyncOrders:
		return len(r.Orders)
	case types.SyncProducts:
		return len(r.Products)
	case types.SyncPrices:
		return len(r.Prices)
	case types.SyncDDT, types.SyncInvoices:
		return len(r.Documents)
	}
	return 0
}

// CustomerRecord is one line of a customer export.
type CustomerRecord struct {
	CustomerProfile    string `json:"customerProfile"`
	CompanyName        string `json:"companyName"`
	VATNumber          string `json:"vatNumber"`
	FiscalCode         string `json:"fiscalCode"`
	Address            string `json:"address"`
	City               string `json:"city"`
	Province           string `json:"province"`
	PostalCode         string `json:"postalCode"`
	Country            string `json:"country"`
	Phone              string `json:"phone"`
	Mobile             string `json:"mobile"`
	Fax                string `json:"fax"`
	Email              string `json:"email"`
	PEC                string `json:"pec"`
	Website            string `json:"website"`
	ContactPerson      string `json:"contactPerson"`
	CustomerType       string `json:"customerType"`
	SalesZone          string `json:"salesZone"`
	PriceList          string `json:"priceList"`
	DiscountClass      string `json:"discountClass"`
	PaymentCode        string `json:"paymentCode"`
	PaymentDescription string `json:"paymentDescription"`
	IBAN               string `json:"iban"`
	SDICode            string `json:"sdiCode"`
	DeliveryAddress    string `json:"deliveryAddress"`
	DeliveryCity       string `json:"deliveryCity"`
	DeliveryProvince   string `json:"deliveryProvince"`
	DeliveryPostalCode string `json:"deliveryPostalCode"`
	Notes              string `json:"notes"`
	Latitude           string `json:"latitude"`
	Longitude          string `json:"longitude"`
}

// Validate reports whether the record carries its identity field.
func (r *CustomerRecord) Validate() error {
	if r.CustomerProfile == "" {
		return fmt.Errorf("customer record missing customerProfile")
	}
	return nil
}

// Customer maps the record onto a domain row for the given tenant. The
// hash is computed over the mapped fields.
func (r *CustomerRecord) Customer(userID string, now int64) *types.Customer {
	c := &types.Customer{
		CustomerProfile:    r.CustomerProfile,
		UserID:             userID,
		CompanyName:        r.CompanyName,
		VATNumber:          r.VATNumber,
		FiscalCode:         r.FiscalCode,
		Address:            r.Address,
		City:               r.City,
		Province:           r.Province,
		PostalCode:         r.PostalCode,
		Country:            r.Country,
		Phone:              r.Phone,
		Mobile:             r.Mobile,
		Fax:                r.Fax,
		Email:              r.Email,
		PEC:                r.PEC,
		Website:            r.Website,
		ContactPerson:      r.ContactPerson,
		CustomerType:       r.CustomerType,
		SalesZone:          r.SalesZone,
		PriceList:          r.PriceList,
		DiscountClass:      r.DiscountClass,
		PaymentCode:        r.PaymentCode,
		PaymentDescription: r.PaymentDescription,
		IBAN:               r.IBAN,
		SDICode:            r.SDICode,
		DeliveryAddress:    r.DeliveryAddress,
		DeliveryCity:       r.DeliveryCity,
		DeliveryProvince:   r.DeliveryProvince,
		DeliveryPostalCode: r.DeliveryPostalCode,
		Notes:              r.Notes,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		LastSync:           now,
		CreatedAt:          now,
	}
	c.Hash = c.ComputeHash()
	return c
}

// OrderRecord is one line of an order export.
type OrderRecord struct {
	ID              string `json:"id"`
	OrderNumber     string `json:"orderNumber"`
	CustomerProfile string `json:"customerProfile"`
	CustomerName    string `json:"customerName"`
	OrderDate       int64  `json:"orderDate"`
	SalesStatus     string `json:"salesStatus"`
	DocumentStatus  string `json:"documentStatus"`
	TransferStatus  string `json:"transferStatus"`
	TotalAmount     string `json:"totalAmount"`
	TaxableAmount   string `json:"taxableAmount"`
	VATAmount       string `json:"vatAmount"`
	Currency        string `json:"currency"`
	AgentCode       string `json:"agentCode"`
	WarehouseCode   string `json:"warehouseCode"`
}

func (r *OrderRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("order record missing id")
	}
	return nil
}

// Order maps the record onto a domain row for the given tenant.
func (r *OrderRecord) Order(userID string, now int64) *types.Order {
	o := &types.Order{
		ID:              r.ID,
		UserID:          userID,
		OrderNumber:     r.OrderNumber,
		CustomerProfile: r.CustomerProfile,
		CustomerName:    r.CustomerName,
		OrderDate:       r.OrderDate,
		SalesStatus:     r.SalesStatus,
		DocumentStatus:  r.DocumentStatus,
		TransferStatus:  r.TransferStatus,
		TotalAmount:     r.TotalAmount,
		TaxableAmount:   r.TaxableAmount,
		VATAmount:       r.VATAmount,
		Currency:        r.Currency,
		AgentCode:       r.AgentCode,
		WarehouseCode:   r.WarehouseCode,
		CurrentState:    types.DefaultOrderState,
		LastSync:        now,
		CreatedAt:       now,
	}
	o.Hash = o.ComputeHash()
	return o
}

// ProductRecord is one line of a product export. Hash is filled by the
// parser from the raw line bytes, not carried in the export itself.
type ProductRecord struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Unit        string `json:"unit"`
	Price       string `json:"price"`
	VAT         string `json:"vat"`
	EAN         string `json:"ean"`
	ImageURL    string `json:"imageUrl"`
	Available   bool   `json:"available"`

	Hash string `json:"-"`
}

func (r *ProductRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("product record missing id")
	}
	if r.Name == "" {
		return fmt.Errorf("product record %s missing name", r.ID)
	}
	return nil
}

// Product maps the record onto a shared catalog row.
func (r *ProductRecord) Product(now int64) *types.Product {
	return &types.Product{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Unit:        r.Unit,
		Price:       r.Price,
		VAT:         r.VAT,
		EAN:         r.EAN,
		ImageURL:    r.ImageURL,
		Available:   r.Available,
		Hash:        r.Hash,
		LastSync:    now,
		CreatedAt:   now,
	}
}

// PriceRecord is one line of a price export. ItemSelection and the qty
// bounds are nullable; the parser normalizes empty strings to nil so the
// store holds NULL rather than ''.
type PriceRecord struct {
	ProductID      string  `json:"productId"`
	ItemSelection  *string `json:"itemSelection"`
	UnitPrice      *string `json:"unitPrice"`
	PriceValidFrom int64   `json:"priceValidFrom"`
	PriceValidTo   *int64  `json:"priceValidTo"`
	PriceQtyFrom   *string `json:"priceQtyFrom"`
	PriceQtyTo     *string `json:"priceQtyTo"`
}

func (r *PriceRecord) Validate() error {
	if r.ProductID == "" {
		return fmt.Errorf("price record missing productId")
	}
	if r.PriceValidFrom == 0 {
		return fmt.Errorf("price record for %s missing priceValidFrom", r.ProductID)
	}
	return nil
}

func (r *PriceRecord) normalize() {
	if r.ItemSelection != nil && *r.ItemSelection == "" {
		r.ItemSelection = nil
	}
	if r.PriceQtyFrom != nil && *r.PriceQtyFrom == "" {
		r.PriceQtyFrom = nil
	}
	if r.PriceQtyTo != nil && *r.PriceQtyTo == "" {
		r.PriceQtyTo = nil
	}
}

// Price maps the record onto a shared price row.
func (r *PriceRecord) Price(now int64) *types.Price {
	p := &types.Price{
		ProductID:      r.ProductID,
		ItemSelection:  r.ItemSelection,
		UnitPrice:      r.UnitPrice,
		PriceValidFrom: r.PriceValidFrom,
		PriceValidTo:   r.PriceValidTo,
		PriceQtyFrom:   r.PriceQtyFrom,
		PriceQtyTo:     r.PriceQtyTo,
		LastSync:       now,
		CreatedAt:      now,
	}
	p.Hash = p.ComputeHash()
	return p
}

// DocumentRecord is one line of a DDT or invoice export. Both kinds key on
// orderNumber; DDT lines carry deliveredAt/carrier, invoice lines carry
// amount/paid.
type DocumentRecord struct {
	OrderNumber string  `json:"orderNumber"`
	Number      string  `json:"number"`
	Date        *int64  `json:"date"`
	DeliveredAt *int64  `json:"deliveredAt"`
	Carrier     string  `json:"carrier"`
	Amount      *string `json:"amount"`
	Paid        *bool   `json:"paid"`
}

func (r *DocumentRecord) Validate() error {
	if r.OrderNumber == "" {
		return fmt.Errorf("document record missing orderNumber")
	}
	if r.Number == "" {
		return fmt.Errorf("document record for order %s missing number", r.OrderNumber)
	}
	return nil
}

// DDT returns the delivery-note fields carried by the record.
func (r *DocumentRecord) DDT() types.DDTFields {
	return types.DDTFields{
		Number:      r.Number,
		Date:        r.Date,
		DeliveredAt: r.DeliveredAt,
		Carrier:     r.Carrier,
	}
}

// Invoice returns the invoice fields carried by the record.
func (r *DocumentRecord) Invoice() types.InvoiceFields {
	return types.InvoiceFields{
		Number: r.Number,
		Date:   r.Date,
		Amount: r.Amount,
		Paid:   r.Paid,
	}
}
