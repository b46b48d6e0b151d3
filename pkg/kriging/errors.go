package kriging

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when grid sizes, ranges or options are inconsistent
	ErrInvalidInput = errors.New("invalid kriging input")

	// ErrSizeMismatch is returned when array arguments do not have matching lengths
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrNotFinalized is returned when a nodal store still holds unmerged observations
	ErrNotFinalized = errors.New("observation store not finalized")

	// ErrNotPositiveDefinite is returned when a covariance matrix cannot be factorized
	ErrNotPositiveDefinite = errors.New("covariance matrix is not positive definite")
)

// BlockError identifies the block whose solve failed
type BlockError struct {
	// Box is the interior of the failing block
	Box Box

	// NumData is the number of observations in the block
	NumData int

	Err error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %s with %d observations: %v", e.Box, e.NumData, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }
