package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrStorageUnavailable is matched by every *StorageUnavailableError.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrProvider is matched by every *ProviderError.
	ErrProvider = errors.New("embedding provider failed")

	// ErrCapacityExceeded is returned by stores configured to reject inserts
	// once MaxVectors records are held. It also matches ErrValidation.
	ErrCapacityExceeded = &ValidationError{Field: "store", Reason: "capacity exceeded"}
)

// ValidationError reports input that a store or search refused.
// The store is left unchanged when one is returned.
type ValidationError struct {
	Field  string
	Reason string

	// Expected and Actual are set for dimension mismatches.
	Expected int
	Actual   int
}

func (e *ValidationError) Error() string {
	if e.Expected != 0 || e.Actual != 0 {
		return fmt.Sprintf("invalid %s: %s: expected %d, got %d", e.Field, e.Reason, e.Expected, e.Actual)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DimensionMismatch builds the ValidationError for a vector of the wrong length.
func DimensionMismatch(field string, expected, actual int) *ValidationError {
	return &ValidationError{
		Field:    field,
		Reason:   "dimension mismatch",
		Expected: expected,
		Actual:   actual,
	}
}

// StorageUnavailableError reports a persistence backend that could not be
// reached, or a store that has already been closed.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage unavailable: %s", e.Op)
	}
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

func (e *StorageUnavailableError) Is(target error) bool { return target == ErrStorageUnavailable }

// Unavailable wraps err as a StorageUnavailableError for op. It returns nil
// for a nil err and passes through errors that already carry a kind.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return &StorageUnavailableError{Op: op, Err: err}
}

// ProviderError reports a failed embedding provider call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("embedding provider failed: %v", e.Err)
	}
	return fmt.Sprintf("embedding provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }
