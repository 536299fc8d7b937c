package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ValidationError is a malformed order request. Never retriable.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) IsRetriable() bool {
	return false
}

// NewValidationError creates a validation error for a request field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// NotFoundError is returned when an order id is absent from the store.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "order not found: " + e.ID
}

// IsRetriable is false: a missing id never appears on its own.
func (e *NotFoundError) IsRetriable() bool {
	return false
}

func (e *NotFoundError) Unwrap() error {
	return ErrOrderNotFound
}

// IsNotFound reports whether err is, or wraps, a missing order.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

// ExecutionError is a routing or swap simulation failure on a venue.
type ExecutionError struct {
	Venue string // Venue name, empty when no venue was involved
	Op    string // "quote", "swap", "route"
	Err   error
}

func (e *ExecutionError) Error() string {
	if e.Venue == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s %s: %s", e.Venue, e.Op, e.Err.Error())
}

func (e *ExecutionError) IsRetriable() bool {
	return true
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PersistenceError is a store failure (unreachable database, bad query).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) IsRetriable() bool {
	return true
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrOrderNotFound is wrapped by every NotFoundError.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnknownVenue is returned when a swap targets a venue the router does not know.
	ErrUnknownVenue = errors.New("unknown venue")

	// ErrNoVenues is returned when routing is attempted without any venue.
	ErrNoVenues = errors.New("no venues configured")

	// ErrSimulatedFailure is injected by simulated venues with a failure rate.
	ErrSimulatedFailure = errors.New("simulated venue failure")
)
