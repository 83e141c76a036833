package cart

import (
	"github.com/shopspring/decimal"
)

// Line is a single product entry in a session cart.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Image     *string         `json:"image,omitempty"`
	Variant   *string         `json:"variant,omitempty"`
	Color     *string         `json:"color,omitempty"`
}

// Subtotal returns unit price times quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the full contents of one session's cart.
type Cart struct {
	Lines []Line `json:"lines"`
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Count returns the total number of units across all lines.
func (c Cart) Count() int {
	var total int
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}

// Total returns the monetary sum of all line subtotals.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// AmountCents converts the cart total into the smallest currency unit,
// rounding half away from zero.
func (c Cart) AmountCents() int64 {
	return c.Total().Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (c Cart) find(productID string) int {
	for i, line := range c.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}
