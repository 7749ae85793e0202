package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ordersRepo struct {
	pool *pgxpool.Pool
}

const orderColumns = `id, user_id, order_number, total, status, created_at`

func (r *ordersRepo) CreateOrder(ctx context.Context, o domain.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.UserID, o.OrderNumber, o.Total, o.Status, o.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *ordersRepo) GetOrderByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber,
	).Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Total, &o.Status, &o.CreatedAt)
	if err != nil {
		return domain.Order{}, mapNotFound(err)
	}
	o.CreatedAt = o.CreatedAt.UTC()

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id`,
		o.ID,
	)
	if err != nil {
		return domain.Order{}, err
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.OrderItem])
	if err != nil {
		return domain.Order{}, err
	}
	if items == nil {
		items = []domain.OrderItem{}
	}
	o.Items = items
	return o, nil
}

func (r *ordersRepo) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.user_id, o.order_number, o.total, o.status, o.created_at,
		        i.id, i.product_id, i.quantity, i.price
		   FROM orders o
		   LEFT JOIN order_items i ON i.order_id = o.id
		  WHERE o.user_id = $1
		  ORDER BY o.created_at DESC, o.id, i.id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var (
			o         domain.Order
			itemID    *string
			productID *string
			quantity  *int
			price     *int64
		)
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.OrderNumber, &o.Total, &o.Status, &o.CreatedAt,
			&itemID, &productID, &quantity, &price,
		); err != nil {
			return nil, err
		}

		if n := len(out); n == 0 || out[n-1].ID != o.ID {
			o.CreatedAt = o.CreatedAt.UTC()
			o.Items = []domain.OrderItem{}
			out = append(out, o)
		}
		if itemID != nil {
			last := &out[len(out)-1]
			last.Items = append(last.Items, domain.OrderItem{
				ID:        *itemID,
				OrderID:   o.ID,
				ProductID: *productID,
				Quantity:  *quantity,
				Price:     *price,
			})
		}
	}
	return out, rows.Err()
}

// AddOrderItems sends the items as one batch inside a transaction, so one
// bad row leaves none of them behind.
func (r *ordersRepo) AddOrderItems(ctx context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	return mapConstraint(pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(
				`INSERT INTO order_items (id, order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4, $5)`,
				it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	}))
}

func (r *ordersRepo) CountOrderItems(ctx context.Context, orderID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, orderID).Scan(&n)
	return n, err
}
