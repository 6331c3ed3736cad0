package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors for handling decisions.
type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "invalid_input"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindUnavailable      ErrorKind = "unavailable"
	KindInsufficientData ErrorKind = "insufficient_data"
	KindInternal         ErrorKind = "internal"
)

// Sentinel errors for errors.Is comparisons.
var (
	// ErrInvalidEvent marks a stream event that cannot be normalized.
	ErrInvalidEvent = errors.New("invalid stream event")

	// ErrStoreUnavailable marks a session store that cannot currently be
	// reached. Writes carrying this error are buffered and replayed.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrInsufficientData marks analytics that need more history than the
	// guild has accumulated.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists marks a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")
)

// DomainError carries structured context about a failure inside the domain.
type DomainError struct {
	// Domain is the bounded context that produced the error (session, stats, ...).
	Domain string

	// Op is the operation that failed (Tracker.HandleEvent, Store.Append, ...).
	Op string

	// Kind classifies the error.
	Kind ErrorKind

	// Message is a human readable description.
	Message string

	// Err is the wrapped cause, if any.
	Err error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is supports matching either the wrapped sentinel or another DomainError
// with the same kind.
func (e *DomainError) Is(target error) bool {
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	var other *DomainError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// NewInvalidEventError builds an invalid input error wrapping ErrInvalidEvent.
func NewInvalidEventError(domain, op, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: KindInvalidInput, Message: message, Err: ErrInvalidEvent}
}

// NewStoreUnavailableError builds an unavailability error wrapping the cause.
func NewStoreUnavailableError(domain, op string, cause error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    KindUnavailable,
		Message: "store unreachable",
		Err:     fmt.Errorf("%w: %w", ErrStoreUnavailable, cause),
	}
}

// NewInsufficientDataError builds an error wrapping ErrInsufficientData.
func NewInsufficientDataError(domain, op, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: KindInsufficientData, Message: message, Err: ErrInsufficientData}
}

// NewNotFoundError builds a not found error wrapping ErrNotFound.
func NewNotFoundError(domain, op, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: KindNotFound, Message: message, Err: ErrNotFound}
}

// NewInternalError builds an internal error wrapping the cause.
func NewInternalError(domain, op, message string, cause error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: KindInternal, Message: message, Err: cause}
}
