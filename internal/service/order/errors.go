package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderClosed       = errors.New("order is already done or cancelled")
	ErrCartNotFound      = errors.New("cart not found")
	ErrCartNotCheckedOut = errors.New("order requires a checked out cart")
	ErrCartConsumed      = errors.New("cart has already been converted to an order")
	ErrProviderNotFound  = errors.New("provider not found")
	ErrProviderInactive  = errors.New("provider is not active")
	ErrNotAssignedToYou  = errors.New("order is not assigned to this provider")
	ErrNotOwner          = errors.New("order belongs to another user")
	ErrBadDeliveryStatus = errors.New("unknown delivery status")
)
