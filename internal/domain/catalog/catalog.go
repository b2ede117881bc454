// Package catalog holds the static product configuration for the order form.
// The catalog is fixed at build time and never mutated at runtime.
package catalog

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownProduct is returned when a product key is not in the catalog.
var ErrUnknownProduct = errors.New("unknown product")

// Kind selects which variant attributes a product's line items carry.
type Kind int

const (
	// KindSimple products carry a single size attribute.
	KindSimple Kind = iota
	// KindTrousers products carry waist and length attributes.
	KindTrousers
)

// Product is one sellable entry in the catalog.
type Product struct {
	// Key is the stable identifier used in drafts and store columns.
	Key string
	// Label is the customer-facing display name.
	Label string
	// UnitPrice is the price per item in yen.
	UnitPrice decimal.Decimal
	// Kind selects the variant attribute set for line items.
	Kind Kind
	// Sizes lists the selectable sizes for simple products. Empty means
	// free-text size entry.
	Sizes []string
	// WaistOptions lists the selectable waist measurements for trousers.
	WaistOptions []int
}

// MaxQuantity is the largest quantity accepted per line item.
const MaxQuantity = 10

// Catalog is an ordered set of products keyed for lookup.
type Catalog struct {
	products []Product
	byKey    map[string]*Product
}

// New builds a Catalog from the given products, preserving their order.
func New(products ...Product) *Catalog {
	c := &Catalog{
		products: products,
		byKey:    make(map[string]*Product, len(products)),
	}
	for i := range c.products {
		c.byKey[c.products[i].Key] = &c.products[i]
	}
	return c
}

// Default returns the fixed catalog used by the order form.
func Default() *Catalog {
	return New(
		Product{
			Key:       "shirt",
			Label:     "シャツ",
			UnitPrice: decimal.NewFromInt(2000),
			Kind:      KindSimple,
			Sizes:     []string{"S", "M", "L", "XL"},
		},
		Product{
			Key:          "pants",
			Label:        "ズボン",
			UnitPrice:    decimal.NewFromInt(3000),
			Kind:         KindTrousers,
			WaistOptions: waistRange(61, 109, 3),
		},
		Product{
			Key:       "socks",
			Label:     "靴下",
			UnitPrice: decimal.NewFromInt(500),
			Kind:      KindSimple,
		},
	)
}

// Products returns all catalog entries in display order.
func (c *Catalog) Products() []Product {
	return c.products
}

// Get returns the product for key, or ErrUnknownProduct.
func (c *Catalog) Get(key string) (*Product, error) {
	p, ok := c.byKey[key]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProduct, "key %q", key)
	}
	return p, nil
}

// Has reports whether key names a catalog product.
func (c *Catalog) Has(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

func waistRange(from, to, step int) []int {
	opts := make([]int, 0, (to-from)/step+1)
	for w := from; w <= to; w += step {
		opts = append(opts, w)
	}
	return opts
}
