package session

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/kiseto/order-intake/internal/domain/catalog"
	"github.com/kiseto/order-intake/internal/domain/order"
)

// ItemForm is the editable state of one product row. Size applies to simple
// products, Waist and Length to trousers; the unused fields stay zero.
type ItemForm struct {
	Quantity int    `json:"quantity"`
	Size     string `json:"size,omitempty"`
	Waist    int    `json:"waist,omitempty"`
	Length   string `json:"length,omitempty"`
	Memo     string `json:"memo,omitempty"`
}

// InputForm is the complete editable state of the input phase. It is what
// the rendering layer displays and what a submit sends back.
type InputForm struct {
	Name       string              `json:"name"`
	PostalCode string              `json:"postalCode"`
	Address    string              `json:"address"`
	Phone      string              `json:"phone"`
	Email      string              `json:"email"`
	Items      map[string]ItemForm `json:"items"`
}

// BlankForm returns an empty form with one row per catalog product.
func BlankForm(c *catalog.Catalog) InputForm {
	f := InputForm{Items: make(map[string]ItemForm, len(c.Products()))}
	for _, p := range c.Products() {
		f.Items[p.Key] = ItemForm{}
	}
	return f
}

// QuantityRangeError reports a line item quantity outside 0..MaxQuantity.
type QuantityRangeError struct {
	ProductKey string
	Quantity   int
}

func (e *QuantityRangeError) Error() string {
	return fmt.Sprintf("quantity %d for product %s must be between 0 and %d",
		e.Quantity, e.ProductKey, catalog.MaxQuantity)
}

// buildDraft converts the form into a draft, selecting each item's variant
// attributes from the product's catalog kind. Unknown product keys and
// out-of-range quantities are rejected before validation runs.
func buildDraft(f InputForm, c *catalog.Catalog) (*order.Draft, error) {
	for key := range f.Items {
		if !c.Has(key) {
			return nil, errors.Wrapf(catalog.ErrUnknownProduct, "key %q", key)
		}
	}

	d := order.NewDraft(c)
	d.Name = f.Name
	d.PostalCode = f.PostalCode
	d.Address = f.Address
	d.Phone = f.Phone
	d.Email = f.Email

	for _, p := range c.Products() {
		row := f.Items[p.Key]
		if row.Quantity < 0 || row.Quantity > catalog.MaxQuantity {
			return nil, &QuantityRangeError{ProductKey: p.Key, Quantity: row.Quantity}
		}

		item := order.LineItem{
			Quantity: row.Quantity,
			Memo:     row.Memo,
		}
		switch p.Kind {
		case catalog.KindTrousers:
			item.Attrs = order.TrousersAttrs{Waist: row.Waist, Length: row.Length}
		default:
			item.Attrs = order.SimpleAttrs{Size: row.Size}
		}
		d.Items[p.Key] = item
	}

	return d, nil
}

// Restore produces the input form for a previously confirmed draft. Every
// field round-trips exactly, so an edit that changes nothing re-submits the
// identical draft.
func Restore(d *order.Draft) InputForm {
	f := InputForm{
		Name:       d.Name,
		PostalCode: order.NormalizePostalCode(d.PostalCode),
		Address:    d.Address,
		Phone:      d.Phone,
		Email:      d.Email,
		Items:      make(map[string]ItemForm, len(d.Items)),
	}

	for key, item := range d.Items {
		row := ItemForm{
			Quantity: item.Quantity,
			Memo:     item.Memo,
		}
		switch a := item.Attrs.(type) {
		case order.TrousersAttrs:
			row.Waist = a.Waist
			row.Length = a.Length
		case order.SimpleAttrs:
			row.Size = a.Size
		}
		f.Items[key] = row
	}

	return f
}
