package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
)

type ordersRepo struct {
	db *sql.DB
}

const orderColumns = `id, user_id, order_number, total, status, created_at`

func (r *ordersRepo) CreateOrder(ctx context.Context, o domain.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.OrderNumber, o.Total, o.Status, toMillis(o.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *ordersRepo) GetOrderByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	var (
		o       domain.Order
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = ?`, orderNumber,
	).Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Total, &o.Status, &created)
	if err != nil {
		return domain.Order{}, mapNotFound(err)
	}
	o.CreatedAt = fromMillis(created)

	items, err := r.listItems(ctx, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (r *ordersRepo) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.id, o.user_id, o.order_number, o.total, o.status, o.created_at,
		        i.id, i.product_id, i.quantity, i.price
		   FROM orders o
		   LEFT JOIN order_items i ON i.order_id = o.id
		  WHERE o.user_id = ?
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
			created   int64
			itemID    sql.NullString
			productID sql.NullString
			quantity  sql.NullInt64
			price     sql.NullInt64
		)
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.OrderNumber, &o.Total, &o.Status, &created,
			&itemID, &productID, &quantity, &price,
		); err != nil {
			return nil, err
		}

		if n := len(out); n == 0 || out[n-1].ID != o.ID {
			o.CreatedAt = fromMillis(created)
			o.Items = []domain.OrderItem{}
			out = append(out, o)
		}
		if itemID.Valid {
			last := &out[len(out)-1]
			last.Items = append(last.Items, domain.OrderItem{
				ID:        itemID.String,
				OrderID:   o.ID,
				ProductID: productID.String,
				Quantity:  int(quantity.Int64),
				Price:     price.Int64,
			})
		}
	}
	return out, rows.Err()
}

func (r *ordersRepo) AddOrderItems(ctx context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `INSERT INTO order_items (id, order_id, product_id, quantity, price) VALUES `
	args := make([]any, 0, len(items)*5)
	for i, it := range items {
		if i > 0 {
			query += ", "
		}
		query += "(" + placeholders(5) + ")"
		args = append(args, it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price)
	}

	_, err := r.db.ExecContext(ctx, query, args...)
	return mapConstraint(err)
}

func (r *ordersRepo) CountOrderItems(ctx context.Context, orderID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = ?`, orderID).Scan(&n)
	return n, err
}

func (r *ordersRepo) listItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, price FROM order_items WHERE order_id = ? ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
