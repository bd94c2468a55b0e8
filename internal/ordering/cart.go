package ordering

import (
	"errors"
	"sort"
)

const (
	CategoryDrink = "Bebida"
	CategoryFood  = "Comida"

	MaxDrinkQty = 15
	MaxOtherQty = 8
)

var ErrUnknownProduct = errors.New("unknown product")

// CategoryCap returns the per-line quantity cap: 15 for drinks, 8 for
// everything else.
func CategoryCap(category string) int {
	if category == CategoryDrink {
		return MaxDrinkQty
	}
	return MaxOtherQty
}

// Cart aggregates selected quantities over a bar's catalog. Quantities
// are clamped to [0, cap] on every mutation and each mutator returns the
// applied (possibly clamped) value so callers can tell a clamp from an
// accept. The total is recomputed on demand; there is no cached state to
// drift.
type Cart struct {
	catalog map[string]Product
	qty     map[string]int
}

func NewCart(products []Product) *Cart {
	catalog := make(map[string]Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}
	return &Cart{catalog: catalog, qty: make(map[string]int)}
}

// SetQuantity clamps qty into range and returns the applied value.
func (c *Cart) SetQuantity(productID string, qty int) (int, error) {
	p, ok := c.catalog[productID]
	if !ok {
		return 0, ErrUnknownProduct
	}
	applied := clamp(qty, CategoryCap(p.Category))
	if applied == 0 {
		delete(c.qty, productID)
	} else {
		c.qty[productID] = applied
	}
	return applied, nil
}

func (c *Cart) Increment(productID string) (int, error) {
	return c.SetQuantity(productID, c.qty[productID]+1)
}

func (c *Cart) Decrement(productID string) (int, error) {
	return c.SetQuantity(productID, c.qty[productID]-1)
}

func (c *Cart) Quantity(productID string) int { return c.qty[productID] }

// Lines returns the non-zero cart lines, ordered by product name.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, 0, len(c.qty))
	for id, q := range c.qty {
		p := c.catalog[id]
		out = append(out, CartLine{
			ProductID:  p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Qty:        q,
			Category:   p.Category,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Cart) TotalCents() int {
	total := 0
	for id, q := range c.qty {
		total += c.catalog[id].PriceCents * q
	}
	return total
}

func (c *Cart) Reset() { c.qty = make(map[string]int) }

// LinesTotal sums already-built cart lines. Used wherever an order's
// total must equal the sum of its line subtotals.
func LinesTotal(lines []CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.PriceCents * l.Qty
	}
	return total
}

func clamp(qty, max int) int {
	if qty < 0 {
		return 0
	}
	if qty > max {
		return max
	}
	return qty
}
