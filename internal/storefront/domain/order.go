package domain

import (
	"errors"
	"math"
	"time"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"

	// MaxItemQuantity caps a single order line.
	MaxItemQuantity = 999
)

// Order belongs to exactly one user. OrderNumber is generated before the
// first write attempt and is the idempotency key across placement paths.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	OrderNumber string      `json:"orderNumber"`
	Total       int64       `json:"total"`
	Status      string      `json:"status"`
	Items       []OrderItem `json:"items"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// OrderItem is one line of an order. Price is the unit price in cents at
// the time of purchase.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

var (
	ErrNoItems         = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("order item quantity must be between 1 and 999")
	ErrInvalidPrice    = errors.New("order amounts must not be negative")
	ErrMissingProduct  = errors.New("order item has no product")
	ErrTotalOverflow   = errors.New("order total is out of range")
)

// Validate checks the shape of an order before any write.
func (o Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	if o.Total < 0 {
		return ErrInvalidPrice
	}
	for _, it := range o.Items {
		switch {
		case it.ProductID == "":
			return ErrMissingProduct
		case it.Quantity <= 0, it.Quantity > MaxItemQuantity:
			return ErrInvalidQuantity
		case it.Price < 0:
			return ErrInvalidPrice
		}
	}
	_, err := o.ItemsTotal()
	return err
}

// ItemsTotal is the sum of price times quantity over all items. It fails
// rather than wrap around when the sum does not fit in an int64.
func (o Order) ItemsTotal() (int64, error) {
	var sum int64
	for _, it := range o.Items {
		switch {
		case it.Quantity < 0:
			return 0, ErrInvalidQuantity
		case it.Price < 0:
			return 0, ErrInvalidPrice
		case it.Price > 0 && int64(it.Quantity) > math.MaxInt64/it.Price:
			return 0, ErrTotalOverflow
		}
		line := it.Price * int64(it.Quantity)
		if line > math.MaxInt64-sum {
			return 0, ErrTotalOverflow
		}
		sum += line
	}
	return sum, nil
}
