package domain

import "errors"

// Errors
var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrReceivedQtyDecrease     = errors.New("invalid quantity: received quantity cannot decrease")
	ErrUnknownStatusFilter     = errors.New("invalid status filter")
	ErrUnknownAlertKey         = errors.New("invalid alert key")
	ErrLineNotFound            = errors.New("purchase order line not found")
	ErrPurchaseOrderNotFound   = errors.New("purchase order not found")

	ErrProductRequired        = errors.New("product is required")
	ErrReasonRequired         = errors.New("reason is required")
	ErrZeroQuantityChange     = errors.New("invalid quantity change: must not be zero")
	ErrInvalidAdjustmentType  = errors.New("invalid adjustment type")
	ErrAdjustmentSignMismatch = errors.New("invalid quantity change for adjustment type")
	ErrSessionRequired        = errors.New("session id is required")
)
