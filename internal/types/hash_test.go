package types

import (
	"testing"
)

func sampleCustomer() Customer {
	return Customer{
		CustomerProfile: "CP-001",
		UserID:          "U1",
		CompanyName:     "Rossi SRL",
		VATNumber:       "IT01234567890",
		Address:         "Via Roma 1",
		City:            "Milano",
		Province:        "MI",
		PostalCode:      "20100",
		Country:         "IT",
		Email:           "info@rossi.example",
		SalesZone:       "NORD",
		PaymentCode:     "RB60",
	}
}

func TestCustomerHashDeterministic(t *testing.T) {
	a := sampleCustomer()
	b := sampleCustomer()

	if a.ComputeHash() != b.ComputeHash() {
		t.Error("identical customers produced different hashes")
	}

	b.City = "Bologna"
	if a.ComputeHash() == b.ComputeHash() {
		t.Error("changed city did not change the hash")
	}
}

func TestCustomerHashIgnoresIdentityAndBookkeeping(t *testing.T) {
	a := sampleCustomer()
	b := sampleCustomer()
	b.CustomerProfile = "CP-999"
	b.UserID = "U2"
	b.Hash = "stale"
	b.LastSync = 1700000000
	b.CreatedAt = 1600000000

	if a.ComputeHash() != b.ComputeHash() {
		t.Error("identity or bookkeeping fields leaked into the customer hash")
	}
}

func TestCustomerHashFieldBoundaries(t *testing.T) {
	// The separator must keep adjacent fields from bleeding into each other:
	// ("ab","c") and ("a","bc") are different contents.
	a := sampleCustomer()
	b := sampleCustomer()
	a.Phone, a.Mobile = "ab", "c"
	b.Phone, b.Mobile = "a", "bc"

	if a.ComputeHash() == b.ComputeHash() {
		t.Error("adjacent fields collided across the separator")
	}
}

func sampleOrder() Order {
	return Order{
		ID:             "ORD-030",
		UserID:         "U1",
		OrderNumber:    "SO-030",
		CustomerName:   "Rossi SRL",
		OrderDate:      1767225600,
		SalesStatus:    "Open",
		DocumentStatus: "Draft",
		TransferStatus: "Pending",
		TotalAmount:    "1000.00",
		TaxableAmount:  "819.67",
		Currency:       "EUR",
	}
}

func TestOrderHashMinimalFieldSet(t *testing.T) {
	a := sampleOrder()
	b := sampleOrder()
	b.CustomerName = "Bianchi SPA"
	b.TaxableAmount = "900.00"
	b.Currency = "USD"
	b.OrderDate = 1769904000
	b.AgentCode = "AG-7"

	if a.ComputeHash() != b.ComputeHash() {
		t.Error("fields outside the change-detector set altered the order hash")
	}

	b = sampleOrder()
	b.SalesStatus = "Confirmed"
	if a.ComputeHash() == b.ComputeHash() {
		t.Error("salesStatus change did not alter the order hash")
	}

	b = sampleOrder()
	b.TotalAmount = "1200.00"
	if a.ComputeHash() == b.ComputeHash() {
		t.Error("totalAmount change did not alter the order hash")
	}
}

func TestOrderHashNumberSubstitution(t *testing.T) {
	stored := sampleOrder()
	incoming := sampleOrder()
	incoming.OrderNumber = "SO-030/B"

	if stored.ComputeHash() == incoming.ComputeHash() {
		t.Fatal("order number change did not alter the hash")
	}

	// Recomputing the incoming record with the stored number must recover
	// the stored hash when nothing else changed. The engine uses this to
	// classify number-only renames.
	alt := OrderHash(incoming.ID, stored.OrderNumber, incoming.SalesStatus,
		incoming.DocumentStatus, incoming.TransferStatus, incoming.TotalAmount)
	if alt != stored.ComputeHash() {
		t.Error("number substitution did not recover the stored hash")
	}
}

func TestPriceHashNullCoercion(t *testing.T) {
	a := Price{ProductID: "PROD-050", UnitPrice: nil, PriceValidFrom: 1767225600}
	b := Price{ProductID: "PROD-050", UnitPrice: StringPtr(""), PriceValidFrom: 1767225600}

	if a.ComputeHash() != b.ComputeHash() {
		t.Error("nil and empty unitPrice hashed differently")
	}

	c := Price{ProductID: "PROD-050", UnitPrice: StringPtr("10.00"), PriceValidFrom: 1767225600}
	if a.ComputeHash() == c.ComputeHash() {
		t.Error("unitPrice change did not alter the price hash")
	}
}

func TestPriceHashTemporalFields(t *testing.T) {
	a := Price{ProductID: "PROD-050", UnitPrice: StringPtr("10.00"), PriceValidFrom: 1767225600}
	b := Price{ProductID: "PROD-050", UnitPrice: StringPtr("10.00"), PriceValidFrom: 1775001600}

	if a.ComputeHash() == b.ComputeHash() {
		t.Error("distinct priceValidFrom hashed identically")
	}

	c := a
	c.PriceQtyFrom = StringPtr("10")
	if a.ComputeHash() == c.ComputeHash() {
		t.Error("priceQtyFrom change did not alter the price hash")
	}
}

func TestContentDigest(t *testing.T) {
	a := ContentDigest([]byte(`{"id":"PROD-040","name":"Widget"}`))
	b := ContentDigest([]byte(`{"id":"PROD-040","name":"Widget"}`))
	c := ContentDigest([]byte(`{"id":"PROD-040","name":"Gadget"}`))

	if a != b {
		t.Error("identical bytes produced different digests")
	}
	if a == c {
		t.Error("different bytes produced the same digest")
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}
