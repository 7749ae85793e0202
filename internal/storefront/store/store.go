package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrUnknownProduct is returned when an order item references a
	// product the catalogue does not have.
	ErrUnknownProduct = errors.New("store: unknown product")
)

// Store is the storefront's relational data. Orders are written without a
// spanning transaction: an order row may exist without its items.
type Store interface {
	Products() Products
	Orders() Orders

	ApplyMigrations() error
	Ping(ctx context.Context) error
	Close() error
}

type Products interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// GetProducts returns the products with the given ids. Unknown ids are
	// skipped, so callers compare lengths.
	GetProducts(ctx context.Context, ids []string) ([]domain.Product, error)
}

type Orders interface {
	// CreateOrder inserts the order row only. A duplicate order number
	// yields ErrAlreadyExists.
	CreateOrder(ctx context.Context, o domain.Order) error

	GetOrderByNumber(ctx context.Context, orderNumber string) (domain.Order, error)

	// ListOrdersByUser returns the user's orders, newest first, with items.
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)

	// AddOrderItems inserts all items in one statement. An item whose
	// product does not exist yields ErrUnknownProduct.
	AddOrderItems(ctx context.Context, items []domain.OrderItem) error

	CountOrderItems(ctx context.Context, orderID string) (int, error)
}
