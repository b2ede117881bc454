// Package order holds the order draft model, validation rules, and the
// flattened record written to the order store.
package order

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kiseto/order-intake/internal/domain/catalog"
)

// Attrs is the variant-specific attribute set of a line item. The concrete
// type is selected by the product's catalog.Kind, never by comparing keys.
type Attrs interface {
	attrs()
}

// SimpleAttrs is the attribute set for simple products: a single size,
// either one of the catalog's options or free text.
type SimpleAttrs struct {
	Size string
}

func (SimpleAttrs) attrs() {}

// TrousersAttrs is the attribute set for the trousers variant.
type TrousersAttrs struct {
	Waist  int
	Length string
}

func (TrousersAttrs) attrs() {}

// LineItem is one product's portion of a draft.
type LineItem struct {
	Quantity int
	Attrs    Attrs
	Memo     string
}

// Draft is the order record while it is still editable. It is replaced
// wholesale on every successful submit and cleared on session reset.
type Draft struct {
	Name       string
	PostalCode string
	Address    string
	Phone      string
	Email      string
	Items      map[string]LineItem
}

// NewDraft returns an empty draft with attribute sets matching the catalog's
// variant kinds.
func NewDraft(c *catalog.Catalog) *Draft {
	d := &Draft{Items: make(map[string]LineItem, len(c.Products()))}
	for _, p := range c.Products() {
		d.Items[p.Key] = LineItem{Attrs: zeroAttrs(p.Kind)}
	}
	return d
}

func zeroAttrs(k catalog.Kind) Attrs {
	if k == catalog.KindTrousers {
		return TrousersAttrs{}
	}
	return SimpleAttrs{}
}

// Item returns the line item for key, or a zero item when absent.
func (d *Draft) Item(key string) LineItem {
	return d.Items[key]
}

// Total computes the order total as the sum of quantity times unit price over
// all catalog entries. It is derived on every call and never stored.
func (d *Draft) Total(c *catalog.Catalog) decimal.Decimal {
	total := decimal.Zero
	for _, p := range c.Products() {
		qty := d.Items[p.Key].Quantity
		if qty <= 0 {
			continue
		}
		total = total.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total
}

// Clone returns a deep copy of the draft. Attrs values are immutable structs,
// so copying the item map is sufficient.
func (d *Draft) Clone() *Draft {
	cp := *d
	cp.Items = make(map[string]LineItem, len(d.Items))
	for k, v := range d.Items {
		cp.Items[k] = v
	}
	return &cp
}

// NormalizePostalCode strips every non-digit character from s.
func NormalizePostalCode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
