// Command order-export dumps confirmed orders to a gzip-compressed CSV file
// for the back-office spreadsheet workflow.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/kiseto/order-intake/internal/domain/order"
	"github.com/kiseto/order-intake/internal/storage/postgres"
)

var csvHeader = []string{
	"id", "created_at", "name", "zipcode", "address", "phone", "email",
	"shirt_qty", "shirt_size", "shirt_memo",
	"pants_qty", "pants_waist", "pants_length", "pants_memo",
	"socks_qty", "socks_size", "socks_memo",
	"total_price",
}

func main() {
	var (
		databaseURL string
		sinceFlag   string
		outPath     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&sinceFlag, "since", "", "export orders created on or after this date (YYYY-MM-DD, default: all)")
	flag.StringVar(&outPath, "out", "orders.csv.gz", "output file path")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	var since time.Time
	if sinceFlag != "" {
		parsed, err := time.Parse("2006-01-02", sinceFlag)
		if err != nil {
			slog.Error("invalid --since date", slog.String("value", sinceFlag), slog.String("error", err.Error()))
			os.Exit(1)
		}
		since = parsed
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, since, outPath); err != nil {
		slog.Error("order export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order export completed successfully", slog.String("out", outPath))
}

func run(ctx context.Context, databaseURL string, since time.Time, outPath string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewOrderRepository(pool)

	// Fetch and write run concurrently: the fetch stage streams records into
	// a channel, the write stage compresses them as CSV rows.
	records := make(chan order.Record, 256)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(records)

		rows, err := repo.ListSince(ctx, since)
		if err != nil {
			return errors.Wrap(err, "list orders")
		}
		slog.Info("orders fetched", slog.Int("count", len(rows)))

		for _, rec := range rows {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case records <- rec:
			}
		}
		return nil
	})
	g.Go(func() error {
		return writeCSV(outPath, records)
	})

	return g.Wait()
}

// writeCSV drains records into a pgzip-compressed CSV file.
func writeCSV(path string, records <-chan order.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() { _ = f.Close() }()

	gz := pgzip.NewWriter(f)
	w := csv.NewWriter(gz)

	if err := w.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write header")
	}

	var count int
	for rec := range records {
		if err := w.Write(csvRow(rec)); err != nil {
			return errors.Wrapf(err, "write order %d", rec.ID)
		}
		count++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flush csv")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip writer")
	}

	slog.Info("orders written", slog.Int("count", count))
	return nil
}

func csvRow(rec order.Record) []string {
	return []string{
		strconv.FormatInt(rec.ID, 10),
		rec.CreatedAt.Format(time.RFC3339),
		rec.Name,
		rec.PostalCode,
		rec.Address,
		rec.Phone,
		rec.Email,
		strconv.Itoa(rec.ShirtQty),
		rec.ShirtSize,
		rec.ShirtMemo,
		strconv.Itoa(rec.PantsQty),
		strconv.Itoa(rec.PantsWaist),
		rec.PantsLength,
		rec.PantsMemo,
		strconv.Itoa(rec.SocksQty),
		rec.SocksSize,
		rec.SocksMemo,
		rec.Total.String(),
	}
}
