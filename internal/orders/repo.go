package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the pgx-backed Store. Semua mutasi stok lewat sini, selalu di bawah
// row lock (FOR UPDATE) pada baris product.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const orderCols = `id, COALESCE(external_id,''), user_id, status, total_pi::text,
	COALESCE(pi_transaction_id,''), escrow_release_date, shipping_address,
	COALESCE(tracking_number,''), paid_at, stock_released, created_at, updated_at`

func (r *Repo) CreateOrderTx(ctx context.Context, d Draft, initiate InitiateFunc) (*Order, bool, error) {
	// cek existing by external_id (idempotent resubmit)
	if d.ExternalID != "" {
		o, err := r.getOrderByExternalID(ctx, d.ExternalID)
		if err == nil {
			return o, true, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, false, err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1) lock product rows, cek stok, kurangi. Semua baris atau tidak sama sekali.
	total := decimal.Zero
	lines := make([]OrderLine, 0, len(d.Items))
	var shortages []StockShortage
	for _, it := range d.Items {
		var priceStr string
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT price_pi::text, stock FROM products WHERE id=$1 FOR UPDATE`,
			it.ProductID).Scan(&priceStr, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if err != nil {
			return nil, false, err
		}
		if stock < it.Qty {
			shortages = append(shortages, StockShortage{
				ProductID: it.ProductID, Required: it.Qty, Available: stock,
			})
			continue
		}
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Qty); err != nil {
			return nil, false, err
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse price for %s: %w", it.ProductID, err)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Qty))))
		lines = append(lines, OrderLine{ProductID: it.ProductID, Quantity: it.Qty, PriceAtPurchase: price})
	}
	if len(shortages) > 0 {
		return nil, false, &InsufficientStockError{Shortages: shortages} // rollback via defer
	}
	if total.Sign() <= 0 {
		return nil, false, ErrEmptyOrder
	}

	// 2) buka payment intent selagi transaksi masih terbuka; gagal -> rollback
	//    termasuk pengurangan stok di atas.
	orderID := uuid.NewString()
	open, err := initiate(ctx, orderID, total)
	if err != nil {
		return nil, false, err
	}

	status := StatusPending
	if open.FundsLocked {
		status = StatusProcessing
	}
	now := time.Now().UTC()
	var extID any
	if d.ExternalID != "" {
		extID = d.ExternalID
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, user_id, status, total_pi, pi_transaction_id,
		                   escrow_release_date, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $9)`,
		orderID, extID, d.UserID, string(status), total.String(), open.Reference,
		open.EscrowRelease, d.ShippingAddress, now); err != nil {
		return nil, false, err
	}
	for i := range lines {
		lines[i].OrderID = orderID
		if err := tx.QueryRow(ctx, `
			INSERT INTO order_lines(order_id, product_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4::numeric) RETURNING id`,
			orderID, lines[i].ProductID, lines[i].Quantity,
			lines[i].PriceAtPurchase.String()).Scan(&lines[i].ID); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	o := &Order{
		ID:              orderID,
		ExternalID:      d.ExternalID,
		UserID:          d.UserID,
		Status:          status,
		TotalPi:         total,
		PaymentRef:      open.Reference,
		EscrowReleaseAt: open.EscrowRelease,
		ShippingAddress: d.ShippingAddress,
		Lines:           lines,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return o, false, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	o.Lines, err = r.loadLines(ctx, r.DB, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) getOrderByExternalID(ctx context.Context, externalID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE external_id=$1`, externalID))
	if err != nil {
		return nil, err
	}
	o.Lines, err = r.loadLines(ctx, r.DB, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) UpdateOrderTx(ctx context.Context, id string, fn UpdateFunc) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	o.Lines, err = r.loadLines(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	wasReleased := o.StockReleased
	release, err := fn(o)
	if err != nil {
		return nil, err
	}

	if release && !wasReleased {
		for _, ln := range o.Lines {
			if _, err := tx.Exec(ctx,
				`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
				ln.ProductID, ln.Quantity); err != nil {
				return nil, err
			}
		}
		o.StockReleased = true
	}

	var ref, tracking any
	if o.PaymentRef != "" {
		ref = o.PaymentRef
	}
	if o.TrackingNumber != "" {
		tracking = o.TrackingNumber
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, pi_transaction_id=$3, escrow_release_date=$4,
		       tracking_number=$5, paid_at=$6, stock_released=$7, updated_at=now()
		WHERE id=$1`,
		o.ID, string(o.Status), ref, o.EscrowReleaseAt, tracking, o.PaidAt,
		o.StockReleased); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ExpiredPending(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id FROM orders
		WHERE status=$1 AND created_at < $2
		ORDER BY created_at
		LIMIT 500`, string(StatusPending), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, sku, name, stock, price_pi::text, COALESCE(seller_pi_address,''),
		       created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		var priceStr string
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &priceStr,
			&p.SellerAddress, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.PricePi, err = decimal.NewFromString(priceStr); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repo) loadLines(ctx context.Context, q querier, orderID string) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_purchase::text
		FROM order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var ln OrderLine
		var priceStr string
		if err := rows.Scan(&ln.ID, &ln.OrderID, &ln.ProductID, &ln.Quantity, &priceStr); err != nil {
			return nil, err
		}
		if ln.PriceAtPurchase, err = decimal.NewFromString(priceStr); err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var totalStr string
	err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.Status, &totalStr,
		&o.PaymentRef, &o.EscrowReleaseAt, &o.ShippingAddress, &o.TrackingNumber,
		&o.PaidAt, &o.StockReleased, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.TotalPi, err = decimal.NewFromString(totalStr); err != nil {
		return nil, err
	}
	return &o, nil
}
