package memory

import (
	"time"

	"github.com/saleswire/agentsync/internal/types"
)

// Clone helpers keep callers from aliasing store-owned rows.

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUser(u *types.User) *types.User {
	cp := *u
	cp.LastLogin = cloneInt64(u.LastLogin)
	cp.LastCustomerSync = cloneInt64(u.LastCustomerSync)
	cp.LastOrderSync = cloneInt64(u.LastOrderSync)
	return &cp
}

func cloneCustomer(c *types.Customer) *types.Customer {
	cp := *c
	return &cp
}

func cloneOrder(o *types.Order) *types.Order {
	cp := *o
	cp.DDTNumber = cloneString(o.DDTNumber)
	cp.DDTDate = cloneInt64(o.DDTDate)
	cp.DDTDeliveredAt = cloneInt64(o.DDTDeliveredAt)
	cp.DDTCarrier = cloneString(o.DDTCarrier)
	cp.InvoiceNumber = cloneString(o.InvoiceNumber)
	cp.InvoiceDate = cloneInt64(o.InvoiceDate)
	cp.InvoiceAmount = cloneString(o.InvoiceAmount)
	cp.InvoicePaid = cloneBool(o.InvoicePaid)
	return &cp
}

func cloneProduct(p *types.Product) *types.Product {
	cp := *p
	cp.DeletedAt = cloneInt64(p.DeletedAt)
	return &cp
}

func clonePrice(p *types.Price) *types.Price {
	cp := *p
	cp.ItemSelection = cloneString(p.ItemSelection)
	cp.UnitPrice = cloneString(p.UnitPrice)
	cp.PriceValidTo = cloneInt64(p.PriceValidTo)
	cp.PriceQtyFrom = cloneString(p.PriceQtyFrom)
	cp.PriceQtyTo = cloneString(p.PriceQtyTo)
	return &cp
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func filterArticles(in []*types.OrderArticle, drop map[string]bool) []*types.OrderArticle {
	out := in[:0]
	for _, a := range in {
		if !drop[a.OrderID] {
			out = append(out, a)
		}
	}
	return out
}

func filterHistory(in []*types.OrderStateEntry, drop map[string]bool) []*types.OrderStateEntry {
	out := in[:0]
	for _, e := range in {
		if !drop[e.OrderID] {
			out = append(out, e)
		}
	}
	return out
}

func nowUnix() int64 { return time.Now().Unix() }
