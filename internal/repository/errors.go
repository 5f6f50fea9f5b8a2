package repository

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicate         = errors.New("duplicate resource")
	ErrInvalidInput      = errors.New("invalid input data")
	ErrUnavailable       = errors.New("product is not available")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyRedeemed   = errors.New("redemption code already used")
	ErrInvalidTransition = errors.New("invalid status transition")
)
