package domain

import "fmt"

// InvalidArgumentError covers domain-level validation failures —
// unsupported currency or payment type, malformed card fields, expired
// cards. It always maps to HTTP 400 at the surface. Body-schema failures
// are rejected by the HTTP handler before the service runs and do not
// use this type.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string { return e.Message }

func NewInvalidArgumentError(format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError covers GetPaymentByID on an unknown id.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ConsistencyError indicates the replay path failed to locate a row it
// just observed to exist — a bug or storage corruption, not a client
// error. Maps to HTTP 500.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string { return e.Message }

func NewConsistencyError(format string, args ...any) *ConsistencyError {
	return &ConsistencyError{Message: fmt.Sprintf(format, args...)}
}

// ErrIdempotencyKeyExists is returned by the store when an insert
// violates the idempotency_key unique constraint. The service treats
// this the same as a pre-insert hit: go read the replay.
var ErrIdempotencyKeyExists = fmt.Errorf("idempotency key already exists")

// ErrPaymentNotFound is returned by the store, not the service — the
// service wraps it into NotFoundError at the boundary it's surfaced at.
var ErrPaymentNotFound = fmt.Errorf("payment not found")
