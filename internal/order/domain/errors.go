package domain

import "errors"

var (
	ErrNotFound = errors.New("order not found")

	// ErrStatusConflict means a conditional status update matched no
	// row: the order moved concurrently or the expected state was
	// wrong. Callers treat it as "someone else got there first".
	ErrStatusConflict = errors.New("order status changed concurrently")
)
