package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/orders"
	"github.com/aussiebroadwan/storefront/internal/storefront/session"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// OrderHandlers serve order placement, listing and checkout completion.
type OrderHandlers struct {
	Orders   *orders.Service
	Sessions SessionResolver
	Gate     *orders.Gate
	Checkout *orders.Gate
}

// checkoutRequest is the body of POST /api/checkout/complete. Prices come
// from the catalogue, not from the client.
type checkoutRequest struct {
	UserID      string            `json:"userId"`
	Items       []orders.CartLine `json:"items"`
	OrderNumber string            `json:"orderNumber,omitempty"`
}

type checkoutResponse struct {
	orders.CreateResponse
	Path string `json:"path,omitempty"`
}

// Create godoc
//
//	@Summary		Create an order
//	@Description	Creates an order for the session's user. A supplied orderNumber makes the call idempotent.
//	@Tags			Orders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		orders.CreateRequest	true	"Order"
//	@Success		200		{object}	orders.CreateResponse
//	@Success		204		"Marker present without credentials"
//	@Failure		400		{object}	orders.CreateResponse
//	@Failure		401		{object}	errorResponse
//	@Failure		403		{object}	orders.CreateResponse
//	@Failure		500		{object}	orders.CreateResponse
//	@Router			/api/orders [post].
func (h *OrderHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeOrderFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	placement, err := h.Gate.Create(w, r, req)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, orders.CreateResponse{
		Success:     true,
		OrderID:     placement.Order.ID,
		OrderNumber: placement.Order.OrderNumber,
	})
}

// List godoc
//
//	@Summary		List orders
//	@Description	Returns the session user's orders, newest first, with their items.
//	@Tags			Orders
//	@Produce		json
//	@Success		200	{object}	orders.ListResponse
//	@Failure		401	{object}	errorResponse
//	@Router			/api/orders [get].
func (h *OrderHandlers) List(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Resolve(w, r)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	list, err := h.Orders.List(r.Context(), sess.User.ID)
	if err != nil {
		slogx.FromContext(r.Context()).Error("list orders failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders.ListResponse{Orders: list})
}

// CompleteCheckout godoc
//
//	@Summary		Complete checkout
//	@Description	Prices the cart from the catalogue and places a completed order through the orders API, falling back to a direct write.
//	@Tags			Orders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		checkoutRequest	true	"Cart"
//	@Success		200		{object}	checkoutResponse
//	@Failure		400		{object}	orders.CreateResponse
//	@Failure		401		{object}	errorResponse
//	@Failure		403		{object}	orders.CreateResponse
//	@Failure		500		{object}	orders.CreateResponse
//	@Router			/api/checkout/complete [post].
func (h *OrderHandlers) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeOrderFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeOrderFailure(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	items, total, err := h.Orders.PriceCart(r.Context(), req.Items)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	create := orders.CreateRequest{
		UserID:      req.UserID,
		Total:       total,
		Status:      domain.OrderStatusCompleted,
		OrderNumber: req.OrderNumber,
	}
	for _, it := range items {
		create.Items = append(create.Items, orders.ItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	placement, err := h.Checkout.Create(w, r, create)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, checkoutResponse{
		CreateResponse: orders.CreateResponse{
			Success:     true,
			OrderID:     placement.Order.ID,
			OrderNumber: placement.Order.OrderNumber,
		},
		Path: placement.Path,
	})
}

func writeOrderFailure(w http.ResponseWriter, code int, msg string) {
	httpx.WriteJSON(w, code, orders.CreateResponse{Success: false, Error: msg})
}

func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrPartialAuth),
		errors.Is(err, session.ErrUnauthorized),
		errors.Is(err, session.ErrTransientRefresh),
		errors.Is(err, session.ErrDefinitiveRefresh):
		writeSessionError(w, err)
	case errors.Is(err, orders.ErrForbidden):
		writeOrderFailure(w, http.StatusForbidden, "Cannot create orders for other users")
	case errors.Is(err, orders.ErrInvalidOrder):
		writeOrderFailure(w, http.StatusBadRequest, "Invalid order")
	case errors.Is(err, orders.ErrUnknownProduct) && !errors.Is(err, orders.ErrOrderInsertion):
		writeOrderFailure(w, http.StatusBadRequest, "Unknown product")
	default:
		slogx.FromContext(r.Context()).Error("order creation failed", "error", err)
		writeOrderFailure(w, http.StatusInternalServerError, "Failed to create order")
	}
}
