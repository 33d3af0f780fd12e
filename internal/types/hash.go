package types

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"strconv"
)

// Content hashes detect upstream changes. The digest input is the
// concatenation of semantic fields in a fixed order, each in canonical
// string form, separated by a zero byte; null coerces to the empty string.
// The algorithm and field order are frozen: changing either is a
// schema-breaking migration.

func writeField(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0}) // separator
}

func int64Field(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

// ComputeHash returns the digest of the customer's descriptive fields.
// Identity fields (CustomerProfile, UserID) and bookkeeping timestamps are
// excluded: a customer moving between tenants is a different row, not a
// content change.
func (c *Customer) ComputeHash() string {
	h := sha256.New()
	for _, field := range []string{
		c.CompanyName,
		c.VATNumber,
		c.FiscalCode,
		c.Address,
		c.City,
		c.Province,
		c.PostalCode,
		c.Country,
		c.Phone,
		c.Mobile,
		c.Fax,
		c.Email,
		c.PEC,
		c.Website,
		c.ContactPerson,
		c.CustomerType,
		c.SalesZone,
		c.PriceList,
		c.DiscountClass,
		c.PaymentCode,
		c.PaymentDescription,
		c.IBAN,
		c.SDICode,
		c.DeliveryAddress,
		c.DeliveryCity,
		c.DeliveryProvince,
		c.DeliveryPostalCode,
		c.Notes,
		c.Latitude,
		c.Longitude,
	} {
		writeField(h, field)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// OrderHash digests the minimal order change-detector set. The order number
// participates, but the pipeline tracks number-only changes out-of-band by
// recomputing with the stored number (see engine).
func OrderHash(id, orderNumber, salesStatus, documentStatus, transferStatus, totalAmount string) string {
	h := sha256.New()
	writeField(h, id)
	writeField(h, orderNumber)
	writeField(h, salesStatus)
	writeField(h, documentStatus)
	writeField(h, transferStatus)
	writeField(h, totalAmount)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ComputeHash returns the order's change-detector digest.
func (o *Order) ComputeHash() string {
	return OrderHash(o.ID, o.OrderNumber, o.SalesStatus, o.DocumentStatus, o.TransferStatus, o.TotalAmount)
}

// ComputeHash returns the digest of the price's semantic fields.
func (p *Price) ComputeHash() string {
	h := sha256.New()
	writeField(h, p.ProductID)
	writeField(h, StringOrEmpty(p.UnitPrice))
	writeField(h, strconv.FormatInt(p.PriceValidFrom, 10))
	writeField(h, int64Field(p.PriceValidTo))
	writeField(h, StringOrEmpty(p.PriceQtyFrom))
	writeField(h, StringOrEmpty(p.PriceQtyTo))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ContentDigest digests raw snapshot bytes. Product rows are
// content-addressed: the parser stamps each record with the digest of its
// line, so any textual change upstream changes the hash.
func ContentDigest(b []byte) string {
	h := sha256.New()
	h.Write(b)
	return fmt.Sprintf("%x", h.Sum(nil))
}
