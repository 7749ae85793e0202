package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/telemetry"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"go.opentelemetry.io/otel/attribute"
)

// PlaceOrder is one order placement. OrderNumber is fixed before the first
// attempt and shared by every path that tries it.
type PlaceOrder struct {
	OrderNumber string
	UserID      string
	Total       int64
	Status      string
	Items       []domain.OrderItem

	// AccessToken is the resolved session's token, forwarded by paths that
	// call back into the API.
	AccessToken string
}

func (c PlaceOrder) order() domain.Order {
	return domain.Order{
		UserID:      c.UserID,
		OrderNumber: c.OrderNumber,
		Total:       c.Total,
		Status:      c.Status,
		Items:       c.Items,
	}
}

// Placer writes an order. Implementations must be idempotent by order
// number.
type Placer interface {
	Place(ctx context.Context, cmd PlaceOrder) (domain.Order, error)
}

// Path names a placer for logs and metrics.
type Path struct {
	Name   string
	Placer Placer
}

// Placement is the outcome of a successful command.
type Placement struct {
	Order domain.Order
	Path  string
}

// PlaceOrderCommand runs Primary and, if it fails for any reason, Fallback
// with the very same PlaceOrder.
type PlaceOrderCommand struct {
	Primary  Path
	Fallback Path
	Metrics  *telemetry.Metrics
}

func (c *PlaceOrderCommand) Execute(ctx context.Context, cmd PlaceOrder) (*Placement, error) {
	if cmd.OrderNumber == "" {
		return nil, fmt.Errorf("%w: order number not assigned", ErrInvalidOrder)
	}
	logger := slogx.FromContext(ctx).With("order_number", cmd.OrderNumber)

	order, primaryErr := c.run(ctx, c.Primary, cmd)
	if primaryErr == nil {
		return &Placement{Order: order, Path: c.Primary.Name}, nil
	}
	logger.WarnContext(ctx, "primary order path failed", "path", c.Primary.Name, "error", primaryErr)

	if c.Fallback.Placer == nil {
		return nil, fmt.Errorf("%w: %w", ErrOrderInsertion, primaryErr)
	}

	order, fallbackErr := c.run(ctx, c.Fallback, cmd)
	if fallbackErr == nil {
		logger.InfoContext(ctx, "order placed by fallback path", "path", c.Fallback.Name)
		return &Placement{Order: order, Path: c.Fallback.Name}, nil
	}

	logger.ErrorContext(ctx, "order placement failed on every path",
		"primary_error", primaryErr,
		"fallback_error", fallbackErr,
	)
	return nil, fmt.Errorf("%w: %w", ErrOrderInsertion, errors.Join(primaryErr, fallbackErr))
}

func (c *PlaceOrderCommand) run(ctx context.Context, p Path, cmd PlaceOrder) (domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "orders.Place",
		attribute.String("orders.path", p.Name),
		attribute.String("orders.number", cmd.OrderNumber),
	)
	order, err := p.Placer.Place(ctx, cmd)
	telemetry.EndSpan(span, err)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.Metrics.OrderPlacement(p.Name, outcome)
	return order, err
}
