package models

import "errors"

// Domain errors shared across stores, services, and handlers. Callers match
// with errors.Is; every wrap adds the current status and attempted operation
// so failures stay actionable.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidStatus      = errors.New("invalid status value")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnauthorized       = errors.New("actor is not allowed to perform this operation")
	ErrProcessor          = errors.New("payment processor request failed")
	ErrNotFound           = errors.New("not found")
	ErrActiveReturnExists = errors.New("order already has an active return request")
)
