package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kiseto/order-intake/internal/domain/catalog"
)

// Record is the flattened view of a confirmed draft written to the order
// store. The store's schema is columnar, so per-product quantities and
// variant attributes are independently named fields rather than nested
// structures.
type Record struct {
	ID             int64
	IdempotencyKey string

	Name       string
	PostalCode string
	Address    string
	Phone      string
	Email      string

	ShirtQty  int
	ShirtSize string
	ShirtMemo string

	PantsQty    int
	PantsWaist  int
	PantsLength string
	PantsMemo   string

	SocksQty  int
	SocksSize string
	SocksMemo string

	Total     decimal.Decimal
	CreatedAt time.Time
}

// Repository defines persistence operations for order records. Insert must
// be idempotent on Record.IdempotencyKey: a repeated insert with the same key
// returns the identifier assigned by the first attempt.
type Repository interface {
	Insert(ctx context.Context, rec *Record) (int64, error)
	ListSince(ctx context.Context, since time.Time) ([]Record, error)
}

// Flatten produces the store record for a validated draft. The idempotency
// key is attached by the session when the draft is frozen for confirmation.
func Flatten(d *Draft, c *catalog.Catalog, idempotencyKey string) *Record {
	rec := &Record{
		IdempotencyKey: idempotencyKey,
		Name:           d.Name,
		PostalCode:     NormalizePostalCode(d.PostalCode),
		Address:        d.Address,
		Phone:          d.Phone,
		Email:          d.Email,
		Total:          d.Total(c),
	}

	shirt := d.Item("shirt")
	rec.ShirtQty = shirt.Quantity
	rec.ShirtMemo = shirt.Memo
	if a, ok := shirt.Attrs.(SimpleAttrs); ok {
		rec.ShirtSize = a.Size
	}

	pants := d.Item("pants")
	rec.PantsQty = pants.Quantity
	rec.PantsMemo = pants.Memo
	if a, ok := pants.Attrs.(TrousersAttrs); ok {
		rec.PantsWaist = a.Waist
		rec.PantsLength = a.Length
	}

	socks := d.Item("socks")
	rec.SocksQty = socks.Quantity
	rec.SocksMemo = socks.Memo
	if a, ok := socks.Attrs.(SimpleAttrs); ok {
		rec.SocksSize = a.Size
	}

	return rec
}
