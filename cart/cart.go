// Package cart holds the shopping cart aggregate and its session persistence.
package cart

import (
	"encoding/json"
	"fmt"

	"storefront/models"

	"github.com/shopspring/decimal"
)

// Cart is a per-session selection of products. Lines keep insertion order for display;
// totals are always recomputed from the lines.
type Cart struct {
	lines []models.CartLine
}

func New() *Cart {
	return &Cart{}
}

// FromLines rebuilds a cart from stored lines. Lines for a repeated product id are merged
// and quantities below 1 are raised to 1.
func FromLines(lines []models.CartLine) *Cart {
	c := New()
	for _, l := range lines {
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		if i := c.index(l.ProductID); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem adds qty units of p. A product already in the cart has its quantity raised and
// keeps the price it was first added at.
func (c *Cart) AddItem(p models.Product, qty int) error {
	if qty < 1 {
		return fmt.Errorf("add %q: %w", p.ID, models.ErrInvalidQuantity)
	}
	if !p.InStock {
		return fmt.Errorf("add %q: %w", p.ID, models.ErrOutOfStock)
	}
	if i := c.index(p.ID); i >= 0 {
		c.lines[i].Quantity += qty
		return nil
	}
	c.lines = append(c.lines, models.CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Image:     p.Image,
		Category:  p.Category,
		Quantity:  qty,
	})
	return nil
}

// UpdateQuantity sets the quantity of an existing line, never below 1.
// It does nothing when the product is not in the cart.
func (c *Cart) UpdateQuantity(productID string, qty int) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.lines[i].Quantity = max(qty, 1)
}

func (c *Cart) RemoveItem(productID string) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the current lines in display order.
func (c *Cart) Lines() []models.CartLine {
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for productID, if present.
func (c *Cart) Line(productID string) (models.CartLine, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return models.CartLine{}, false
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) TotalItems() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) TotalPrice() models.Money {
	total := models.ZeroMoney()
	for _, l := range c.lines {
		total = total.Plus(l.LineTotal())
	}
	return total
}

// View renders the cart for an HTTP response.
func (c *Cart) View(session string) models.CartView {
	return models.CartView{
		Session:    session,
		Items:      c.Lines(),
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
}

// storedLine is the persisted form of a line. The unit price keeps every digit so a
// snapshot survives a reload unchanged.
type storedLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Image     string          `json:"image"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	stored := make([]storedLine, 0, len(c.lines))
	for _, l := range c.lines {
		stored = append(stored, storedLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.Decimal,
			Image:     l.Image,
			Category:  l.Category,
			Quantity:  l.Quantity,
		})
	}
	return json.Marshal(stored)
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var stored []storedLine
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}
	lines := make([]models.CartLine, 0, len(stored))
	for _, l := range stored {
		lines = append(lines, models.CartLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: models.NewMoney(l.UnitPrice),
			Image:     l.Image,
			Category:  l.Category,
			Quantity:  l.Quantity,
		})
	}
	c.lines = FromLines(lines).lines
	return nil
}
