package status

import "errors"

var (
	// ErrInvalidTransition is returned when attempting an invalid status transition
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when an unknown status value is encountered
	ErrInvalidStatus = errors.New("invalid status value")
)
