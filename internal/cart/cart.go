package cart

import (
	"github.com/shopspring/decimal"

	"buffetpos/internal/domain"
)

type Item struct {
	Product  domain.Product
	Quantity int
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds the lines of one checkout session. It is not safe for
// concurrent use and is never persisted.
type Cart struct {
	items []Item
}

func New() *Cart {
	return &Cart{}
}

// AddItem puts one more unit of product in the cart. Stock is not checked.
func (c *Cart) AddItem(product domain.Product) {
	if idx := c.indexOf(product.ID); idx >= 0 {
		c.items[idx].Quantity++
		return
	}
	c.items = append(c.items, Item{Product: product, Quantity: 1})
}

// ChangeQuantity shifts the line quantity by delta. A result at or below zero
// drops the line; otherwise the quantity never falls below one.
func (c *Cart) ChangeQuantity(productID string, delta int) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return
	}
	next := c.items[idx].Quantity + delta
	if next <= 0 {
		c.RemoveItem(productID)
		return
	}
	c.items[idx].Quantity = max(1, next)
}

func (c *Cart) RemoveItem(productID string) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
}

func (c *Cart) Clear() {
	c.items = nil
}

func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Quantity(productID string) int {
	if idx := c.indexOf(productID); idx >= 0 {
		return c.items[idx].Quantity
	}
	return 0
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// Total applies discount to the subtotal and floors the result at zero.
func (c *Cart) Total(discount decimal.Decimal) decimal.Decimal {
	total := c.Subtotal().Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}
