package hold

import "errors"

var (
	ErrHoldNotFound    = errors.New("hold not found")
	ErrHoldExpired     = errors.New("hold has expired")
	ErrHoldConflict    = errors.New("hold is not in a state that allows this transition")
	ErrSlotNotFound    = errors.New("no slot for service and date")
	ErrSlotInactive    = errors.New("slot is closed for new holds")
	ErrNoCapacity      = errors.New("slot is fully booked")
	ErrServiceNotFound = errors.New("service not found")
	ErrPetNotFound     = errors.New("pet not found")
	ErrNotOwner        = errors.New("hold belongs to another user")
	ErrInvalidDate     = errors.New("date must be a real calendar date in YYYY-MM-DD form")
	ErrRateLimited     = errors.New("too many hold requests")
)
