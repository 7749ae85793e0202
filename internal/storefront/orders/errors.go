package orders

import "errors"

var (
	// ErrForbidden is returned when the request names a different user than
	// the resolved session. Nothing is written.
	ErrForbidden = errors.New("orders: cannot create orders for other users")

	ErrInvalidOrder = errors.New("orders: invalid order")

	// ErrOrderInsertion means every placement path failed.
	ErrOrderInsertion = errors.New("orders: order could not be saved")

	// ErrItemsNotSaved means the order row exists but its items do not. The
	// row is not rolled back; a retry with the same order number completes
	// it.
	ErrItemsNotSaved = errors.New("orders: order items not saved")

	// ErrOrderNumberTaken means the order number belongs to another user.
	ErrOrderNumberTaken = errors.New("orders: order number already used")

	ErrUnknownProduct = errors.New("orders: unknown product")
)
