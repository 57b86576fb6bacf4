package models

// CartLine is one product in a cart. UnitPrice is frozen when the line is first created.
type CartLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unitPrice"`
	Image     string `json:"image"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`

	// CatalogPriced marks a line that arrived without a snapshot, such as a raw order
	// payload. Such lines take the catalog price when the order is placed.
	CatalogPriced bool `json:"-"`
}

// LineTotal is UnitPrice × Quantity.
func (l CartLine) LineTotal() Money {
	return l.UnitPrice.Times(l.Quantity)
}

// CartView is the response shape for a session cart.
type CartView struct {
	Session    string     `json:"session"`
	Items      []CartLine `json:"items"`
	TotalItems int        `json:"totalItems"`
	TotalPrice Money      `json:"totalPrice"`
}
