package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrSamplerExhaustion = fmt.Errorf("%w: sample size exceeds universe", ErrInvalidArgument)

	// Statistical errors
	ErrDegenerateDistribution = errors.New("degenerate null distribution")

	// Lookup errors
	ErrNotFound       = errors.New("resource not found")
	ErrResultNotFound = fmt.Errorf("%w: cached result", ErrNotFound)
	ErrSenseNotFound  = fmt.Errorf("%w: evaluation function", ErrNotFound)
)

// Error constructors with context
func NewInvalidArgumentError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidArgument, field, reason)
}

func NewExhaustionError(requested, universeSize int) error {
	return fmt.Errorf("%w: requested %d labels from a universe of %d", ErrSamplerExhaustion, requested, universeSize)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsDegenerate(err error) bool {
	return errors.Is(err, ErrDegenerateDistribution)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
