package orders

import (
	"fmt"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/google/uuid"
)

// CreateRequest is the body of POST /api/orders. Amounts are in cents.
type CreateRequest struct {
	UserID      string        `json:"userId"`
	Total       int64         `json:"total"`
	Items       []ItemRequest `json:"items"`
	Status      string        `json:"status"`
	OrderNumber string        `json:"orderNumber,omitempty"`
}

type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

// CreateResponse is the success body of POST /api/orders.
type CreateResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ListResponse is the body of GET /api/orders.
type ListResponse struct {
	Orders []domain.Order `json:"orders"`
}

// command validates the request and turns it into a PlaceOrder without an
// order number.
func (r CreateRequest) command() (PlaceOrder, error) {
	cmd := PlaceOrder{
		OrderNumber: r.OrderNumber,
		UserID:      r.UserID,
		Total:       r.Total,
		Status:      r.Status,
	}
	if cmd.Status == "" {
		cmd.Status = domain.OrderStatusPending
	}
	for _, it := range r.Items {
		cmd.Items = append(cmd.Items, domain.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	if cmd.OrderNumber != "" {
		if _, err := uuid.Parse(cmd.OrderNumber); err != nil {
			return PlaceOrder{}, fmt.Errorf("%w: order number: %w", ErrInvalidOrder, err)
		}
	}
	if err := cmd.order().Validate(); err != nil {
		return PlaceOrder{}, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	return cmd, nil
}

func requestFor(cmd PlaceOrder) CreateRequest {
	req := CreateRequest{
		UserID:      cmd.UserID,
		Total:       cmd.Total,
		Status:      cmd.Status,
		OrderNumber: cmd.OrderNumber,
		Items:       make([]ItemRequest, 0, len(cmd.Items)),
	}
	for _, it := range cmd.Items {
		req.Items = append(req.Items, ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return req
}
