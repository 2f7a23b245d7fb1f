package cart

import (
	"errors"
	"strings"
)

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrCartGone      = errors.New("cart has expired")
	ErrCartConflict  = errors.New("cart is not in a state that allows this operation")
	ErrItemNotFound  = errors.New("cart item not found")
	ErrNotOwner      = errors.New("cart belongs to another user")
	ErrCheckoutEmpty = errors.New("cannot check out an empty cart")
)

// ValidationError carries the findings that make a cart uncheckoutable.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "cart validation failed: " + strings.Join(e.Errors, "; ")
}
