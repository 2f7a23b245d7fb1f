package httpgin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/service/availability"
	"github.com/pawcall/pawcall/internal/service/cart"
	"github.com/pawcall/pawcall/internal/service/catalog"
	"github.com/pawcall/pawcall/internal/service/hold"
	"github.com/pawcall/pawcall/internal/service/order"
	"github.com/pawcall/pawcall/internal/service/pricing"
)

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// respondErr maps engine errors onto the HTTP taxonomy: 404 for missing
// aggregates, 409 for state conflicts, 410 for expired resources, 422 for
// semantically unprocessable requests, 429 behind Retry-After for rate
// limits. Everything unmapped is a 500 with a generic body.
func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	// typed errors first
	var (
		baseErr     *pricing.BaseServiceError
		addonErr    *pricing.AddonError
		requiredErr *pricing.RequiredAddonError
		validateErr *cart.ValidationError
		transErr    *domain.TransitionError
	)
	switch {
	case errors.As(err, &baseErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "base service rejected",
			Details: gin.H{"service_id": baseErr.ServiceID, "reason": baseErr.Reason},
		})
		return
	case errors.As(err, &addonErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "addon rejected",
			Details: gin.H{"addon_id": addonErr.AddonID, "reason": addonErr.Reason},
		})
		return
	case errors.As(err, &requiredErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "breed requires addon",
			Details: gin.H{"breed": requiredErr.Breed, "addon_id": requiredErr.AddonID},
		})
		return
	case errors.As(err, &validateErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "cart validation failed",
			Details: gin.H{"errors": validateErr.Errors},
		})
		return
	case errors.As(err, &transErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "illegal transition",
			Details: gin.H{"current": transErr.Current, "attempted": transErr.Attempted},
		})
		return
	}

	switch {
	// pricing service
	case errors.Is(err, pricing.ErrPetNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "pet not found"})
	case errors.Is(err, pricing.ErrWeightRequired):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "pet weight must be set"})

	// catalog service
	case errors.Is(err, catalog.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "service not found"})
	case errors.Is(err, catalog.ErrInvalidRule):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid price rule"})

	// availability service
	case errors.Is(err, availability.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "service not found"})
	case errors.Is(err, availability.ErrSlotNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "slot not found"})
	case errors.Is(err, availability.ErrSlotExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "slot already exists"})
	case errors.Is(err, availability.ErrInvalidCapacity):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid capacity"})
	case errors.Is(err, availability.ErrInvalidDate):
		badRequest(c, "invalid date")

	// hold service
	case errors.Is(err, hold.ErrHoldNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "hold not found"})
	case errors.Is(err, hold.ErrHoldExpired):
		c.JSON(http.StatusGone, ErrorResponse{Error: "hold expired"})
	case errors.Is(err, hold.ErrHoldConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "hold conflict"})
	case errors.Is(err, hold.ErrSlotNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no availability for service and date"})
	case errors.Is(err, hold.ErrSlotInactive):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "slot is closed"})
	case errors.Is(err, hold.ErrNoCapacity):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "slot is fully booked"})
	case errors.Is(err, hold.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "service not found"})
	case errors.Is(err, hold.ErrPetNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "pet not found"})
	case errors.Is(err, hold.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not your hold"})
	case errors.Is(err, hold.ErrInvalidDate):
		badRequest(c, "invalid date")
	case errors.Is(err, hold.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})

	// cart service
	case errors.Is(err, cart.ErrCartNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "cart not found"})
	case errors.Is(err, cart.ErrCartGone):
		c.JSON(http.StatusGone, ErrorResponse{Error: "cart expired"})
	case errors.Is(err, cart.ErrCartConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "cart conflict"})
	case errors.Is(err, cart.ErrCheckoutEmpty):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "cart is empty"})
	case errors.Is(err, cart.ErrItemNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "cart item not found"})
	case errors.Is(err, cart.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not your cart"})

	// order service
	case errors.Is(err, order.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
	case errors.Is(err, order.ErrOrderClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "order is closed"})
	case errors.Is(err, order.ErrCartNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "cart not found"})
	case errors.Is(err, order.ErrCartNotCheckedOut):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "cart is not checked out"})
	case errors.Is(err, order.ErrCartConsumed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "cart has already been ordered"})
	case errors.Is(err, order.ErrProviderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "provider not found"})
	case errors.Is(err, order.ErrProviderInactive):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "provider is not active"})
	case errors.Is(err, order.ErrNotAssignedToYou):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "order is not assigned to you"})
	case errors.Is(err, order.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not your order"})
	case errors.Is(err, order.ErrBadDeliveryStatus):
		badRequest(c, "unknown delivery status")

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
