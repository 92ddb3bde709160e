package core

import "errors"

var (
	// ErrAlreadyBorrowed is returned by TryBorrow when another borrow of the
	// same bus is live. Callers retry, skip or escalate to Fatal.
	ErrAlreadyBorrowed = errors.New("bus already borrowed")

	// ErrReleased is returned by a transaction issued on a borrow that has
	// already been released. The bus is not touched.
	ErrReleased = errors.New("bus borrow already released")

	// ErrNoChipSelect is returned when a device is created without a GPIO driver
	ErrNoChipSelect = errors.New("chip select requires a GPIO driver")
)
