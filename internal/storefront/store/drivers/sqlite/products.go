package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
)

type productsRepo struct {
	db *sql.DB
}

const productColumns = `id, name, description, price, created_at`

func (r *productsRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

func (r *productsRepo) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var (
			p       domain.Product
			created int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = fromMillis(created)
		out = append(out, p)
	}
	return out, rows.Err()
}
