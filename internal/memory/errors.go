package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id is absent from the store.
	ErrNotFound = errors.New("memory: not found")
	// ErrDimensionMismatch is returned when a vector does not have the
	// configured dimensionality.
	ErrDimensionMismatch = errors.New("memory: vector dimension mismatch")
	// ErrProvider wraps failures from embedding or chat providers.
	ErrProvider = errors.New("memory: provider error")
	// ErrIndexUnavailable is returned when a delegated index cannot be reached.
	ErrIndexUnavailable = errors.New("memory: index unavailable")
	// ErrIndexingFailed means a record was stored, indexing failed and the
	// store write could not be rolled back.
	ErrIndexingFailed = errors.New("memory: indexing failed, store and index diverged")
	// ErrPartialDelete means a delete left the store and index disagreeing.
	ErrPartialDelete = errors.New("memory: partial delete, store and index diverged")
	// ErrPartialClear means clear emptied only one of the two containers.
	ErrPartialClear = errors.New("memory: partial clear, store and index diverged")
	// ErrInvalidRecord is returned for blank text or unusable metadata.
	ErrInvalidRecord = errors.New("memory: invalid record")
)

// DimensionError reports the expected and actual vector length.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%v: expected %d, got %d", ErrDimensionMismatch, e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// CheckDimensions returns a *DimensionError when len(vec) != want.
func CheckDimensions(vec []float32, want int) error {
	if len(vec) != want {
		return &DimensionError{Want: want, Got: len(vec)}
	}
	return nil
}

// IsInconsistency reports whether err signals that the store and index
// diverged and a reindex may be required.
func IsInconsistency(err error) bool {
	return errors.Is(err, ErrIndexingFailed) ||
		errors.Is(err, ErrPartialDelete) ||
		errors.Is(err, ErrPartialClear)
}
