package types

// CustomerFilter narrows ListCustomers. Zero values mean "no constraint".
// Search matches company name, profile, and city case-insensitively.
type CustomerFilter struct {
	City      string `json:"city,omitempty"`
	Province  string `json:"province,omitempty"`
	SalesZone string `json:"sales_zone,omitempty"`
	Search    string `json:"search,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ArticleSale is one row of the last-sales query: an order line joined with
// its parent order, newest first. Used by the sales application to show an
// article's recent selling prices per customer.
type ArticleSale struct {
	OrderID      string `json:"order_id"`
	OrderNumber  string `json:"order_number"`
	OrderDate    int64  `json:"order_date"`
	CustomerName string `json:"customer_name,omitempty"`
	ArticleCode  string `json:"article_code"`
	Quantity     string `json:"quantity,omitempty"`
	UnitPrice    string `json:"unit_price,omitempty"`
	Discount     string `json:"discount,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}
