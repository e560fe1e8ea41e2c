package services

import (
	"github.com/shopspring/decimal"

	"sierra-preorder/models"
)

// TaxRate is applied to the subtotal of every order.
var TaxRate = decimal.RequireFromString("0.05")

// CartLine is a menu item with a positive quantity.
type CartLine struct {
	Item     models.MenuItem `json:"item"`
	Quantity int             `json:"quantity"`
}

// Cart holds the in-progress order of one customer session. Lines keep insertion order and
// no line ever has a quantity below one.
type Cart struct {
	lines []CartLine
}

// AddItem increments the quantity of an existing line or appends the item with quantity one.
func (c *Cart) AddItem(item models.MenuItem) {
	for i := range c.lines {
		if c.lines[i].Item.ID == item.ID {
			c.lines[i].Quantity++
			return
		}
	}
	c.lines = append(c.lines, CartLine{Item: item, Quantity: 1})
}

// SetQuantity sets a line's quantity; qty <= 0 removes the line. Unknown ids are ignored.
func (c *Cart) SetQuantity(itemID string, qty int) {
	for i := range c.lines {
		if c.lines[i].Item.ID != itemID {
			continue
		}
		if qty <= 0 {
			c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
			return
		}
		c.lines[i].Quantity = qty
		return
	}
}

// Quantity returns the quantity of the line for itemID, or 0.
func (c *Cart) Quantity(itemID string) int {
	for _, l := range c.lines {
		if l.Item.ID == itemID {
			return l.Quantity
		}
	}
	return 0
}

func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Count is the total number of units in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Clear() { c.lines = nil }

func (c *Cart) Clone() *Cart {
	return &Cart{lines: c.Lines()}
}

func (c *Cart) Subtotal() decimal.Decimal {
	return PriceLines(c.Snapshot()).Subtotal
}

func (c *Cart) Tax() decimal.Decimal {
	return PriceLines(c.Snapshot()).Tax
}

func (c *Cart) Total() decimal.Decimal {
	return PriceLines(c.Snapshot()).Total
}

// Snapshot copies the lines into the form persisted with an order.
func (c *Cart) Snapshot() []models.OrderLine {
	out := make([]models.OrderLine, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, models.OrderLine{
			ID:       l.Item.ID,
			Name:     l.Item.Name,
			Price:    l.Item.Price,
			Quantity: l.Quantity,
		})
	}
	return out
}

// Totals are exact; round only when displaying.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

func PriceLines(lines []models.OrderLine) Totals {
	sub := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	tax := sub.Mul(TaxRate)
	return Totals{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}

// FormatMoney renders an amount with two decimals behind the currency symbol.
func FormatMoney(symbol string, d decimal.Decimal) string {
	return symbol + d.StringFixed(2)
}
