package cart

import "github.com/shopspring/decimal"

// Empty returns a cart with no items and zero totals.
func Empty() *Cart {
	return &Cart{
		Items:    []Item{},
		Subtotal: decimal.Zero,
		Total:    decimal.Zero,
	}
}

// Recalculate recomputes every item total and the cart totals from scratch.
// Shipping is computed at checkout, so Total equals Subtotal.
func (c *Cart) Recalculate() {
	subtotal := decimal.Zero
	for i := range c.Items {
		item := &c.Items[i]
		item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(item.TotalPrice)
	}
	c.Subtotal = subtotal
	c.Total = subtotal
}

// ItemCount sums the quantities of all lines.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Clone deep-copies the cart so snapshots never alias live state.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]Item, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

// FindVariant returns the index of the line matching productID and size.
func (c *Cart) FindVariant(productID int64, size string) int {
	for i, item := range c.Items {
		if item.ProductID == productID && item.Size == size {
			return i
		}
	}
	return -1
}

// IndexOf returns the index of the line with the given id.
func (c *Cart) IndexOf(itemID int64) int {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// SetQuantity changes a line's quantity and recomputes totals.
func (c *Cart) SetQuantity(itemID int64, quantity int) bool {
	i := c.IndexOf(itemID)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = quantity
	c.Recalculate()
	return true
}

// Remove deletes a line and recomputes totals.
func (c *Cart) Remove(itemID int64) bool {
	i := c.IndexOf(itemID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.Recalculate()
	return true
}

func (i *Item) fillDisplay(info ProductInfo) {
	if i.Name == nil && info.Name != "" {
		i.Name = strPtr(info.Name)
	}
	if i.Image == nil && info.Image != "" {
		i.Image = strPtr(info.Image)
	}
	if i.Slug == nil && info.Slug != "" {
		i.Slug = strPtr(info.Slug)
	}
}

func strPtr(s string) *string { return &s }
