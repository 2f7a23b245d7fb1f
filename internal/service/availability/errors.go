package availability

import "errors"

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotExists      = errors.New("slot already exists for service and date")
	ErrInvalidCapacity = errors.New("capacity must cover already booked holds")
	ErrInvalidDate     = errors.New("date must be a real calendar date in YYYY-MM-DD form")
)
