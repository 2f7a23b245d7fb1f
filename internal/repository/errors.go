package repository

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrNoCapacity = errors.New("no remaining capacity")
	ErrValidation = errors.New("validation failed")
)
