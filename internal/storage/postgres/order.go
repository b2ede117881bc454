package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kiseto/order-intake/internal/domain/order"
)

// insertOrderSQL upserts on the idempotency key: a repeated insert from the
// same confirm cycle returns the id assigned by the first attempt instead of
// creating a second row. The no-op DO UPDATE makes RETURNING yield the
// existing row on conflict.
const insertOrderSQL = `INSERT INTO orders (
		idempotency_key,
		name, zipcode, address, phone, email,
		shirt, shirt_size, shirt_memo,
		pants, pants_waist, pants_length, pants_memo,
		socks, socks_size, socks_memo,
		total_price
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (idempotency_key) DO UPDATE SET idempotency_key = EXCLUDED.idempotency_key
	RETURNING id`

const listOrdersSinceSQL = `SELECT
		id, idempotency_key,
		name, zipcode, address, phone, email,
		shirt, shirt_size, shirt_memo,
		pants, pants_waist, pants_length, pants_memo,
		socks, socks_size, socks_memo,
		total_price, created_at
	FROM orders
	WHERE created_at >= $1
	ORDER BY id`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		pool:   pool,
		tracer: otel.Tracer("storage.postgres"),
	}
}

// Insert persists a flattened order record and returns the assigned
// identifier. Inserting the same idempotency key twice returns the original
// identifier without writing a second row.
func (r *OrderRepository) Insert(ctx context.Context, rec *order.Record) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Insert",
		trace.WithAttributes(attribute.String("order.idempotency_key", rec.IdempotencyKey)))
	defer span.End()

	var id int64
	err := r.pool.QueryRow(ctx, insertOrderSQL,
		rec.IdempotencyKey,
		rec.Name, rec.PostalCode, rec.Address, rec.Phone, rec.Email,
		rec.ShirtQty, rec.ShirtSize, rec.ShirtMemo,
		rec.PantsQty, rec.PantsWaist, rec.PantsLength, rec.PantsMemo,
		rec.SocksQty, rec.SocksSize, rec.SocksMemo,
		rec.Total,
	).Scan(&id)
	if err != nil {
		span.SetStatus(codes.Error, "insert failed")
		span.RecordError(err)
		return 0, errors.Wrapf(err, "insert order %q", rec.IdempotencyKey)
	}

	span.SetAttributes(attribute.Int64("order.id", id))
	return id, nil
}

// ListSince returns all orders created at or after the given time, oldest
// first. Used by the export tool.
func (r *OrderRepository) ListSince(ctx context.Context, since time.Time) ([]order.Record, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListSince")
	defer span.End()

	rows, err := r.pool.Query(ctx, listOrdersSinceSQL, since)
	if err != nil {
		span.SetStatus(codes.Error, "query failed")
		span.RecordError(err)
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Record, error) {
		var rec order.Record
		err := row.Scan(
			&rec.ID, &rec.IdempotencyKey,
			&rec.Name, &rec.PostalCode, &rec.Address, &rec.Phone, &rec.Email,
			&rec.ShirtQty, &rec.ShirtSize, &rec.ShirtMemo,
			&rec.PantsQty, &rec.PantsWaist, &rec.PantsLength, &rec.PantsMemo,
			&rec.SocksQty, &rec.SocksSize, &rec.SocksMemo,
			&rec.Total, &rec.CreatedAt,
		)
		return rec, err
	})
	if err != nil {
		span.SetStatus(codes.Error, "scan failed")
		span.RecordError(err)
		return nil, errors.Wrap(err, "scan orders")
	}

	span.SetAttributes(attribute.Int("order.count", len(records)))
	return records, nil
}
