package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/pkg/idx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// Service is the in-process orders service. As a Placer it checks items
// against the catalogue before writing.
type Service struct {
	Store store.Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Place creates the order, or completes an existing one with the same
// number. If the items cannot be written the order row stays and
// ErrItemsNotSaved is returned.
func (s *Service) Place(ctx context.Context, cmd PlaceOrder) (domain.Order, error) {
	if err := s.checkCatalogue(ctx, cmd.Items); err != nil {
		return domain.Order{}, err
	}

	orders := s.Store.Orders()
	order, err := ensureOrder(ctx, orders, cmd, s.now())
	if err != nil {
		return domain.Order{}, err
	}

	if err := ensureItems(ctx, orders, order, cmd.Items); err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "order items not saved",
			"order_id", order.ID,
			"order_number", order.OrderNumber,
			"error", err,
		)
		return order, fmt.Errorf("%w: %w", ErrItemsNotSaved, err)
	}

	return orders.GetOrderByNumber(ctx, order.OrderNumber)
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.Store.Orders().ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// Products returns the catalogue.
func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	products, err := s.Store.Products().ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// CartLine is an item as the customer submits it at checkout.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PriceCart prices cart lines from the catalogue and returns the items and
// their total.
func (s *Service) PriceCart(ctx context.Context, lines []CartLine) ([]domain.OrderItem, int64, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.Store.Products().GetProducts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	prices := make(map[string]int64, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		price, ok := prices[l.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrUnknownProduct, l.ProductID)
		}
		items = append(items, domain.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, Price: price})
	}

	total, err := domain.Order{Items: items}.ItemsTotal()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	return items, total, nil
}

func (s *Service) checkCatalogue(ctx context.Context, items []domain.OrderItem) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	found, err := s.Store.Products().GetProducts(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return ErrUnknownProduct
	}
	return nil
}

// ensureOrder inserts the order row, or returns the existing row with the
// same number when it belongs to the same user.
func ensureOrder(ctx context.Context, orders store.Orders, cmd PlaceOrder, now time.Time) (domain.Order, error) {
	order := cmd.order()
	order.ID = idx.NewAt(now).String()
	order.CreatedAt = now
	order.Items = nil

	err := orders.CreateOrder(ctx, order)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return domain.Order{}, err
	}

	existing, err := orders.GetOrderByNumber(ctx, cmd.OrderNumber)
	if err != nil {
		return domain.Order{}, err
	}
	if existing.UserID != cmd.UserID {
		return domain.Order{}, ErrOrderNumberTaken
	}
	return existing, nil
}

// ensureItems writes the items unless the order already has some.
func ensureItems(ctx context.Context, orders store.Orders, order domain.Order, items []domain.OrderItem) error {
	n, err := orders.CountOrderItems(ctx, order.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	rows := make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		it.ID = idx.New().String()
		it.OrderID = order.ID
		rows = append(rows, it)
	}
	return orders.AddOrderItems(ctx, rows)
}
