// Package service holds the business rules: order lifecycle and point
// settlement, the reward ledger, identity merging and the supporting
// catalog, review, report and upload operations.  Services depend on narrow
// store interfaces declared next to the code that uses them.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// Error kinds.  Match with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a kinded error with a client-facing message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Is(target error) bool { return target == e.Kind }

func validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Msg: fmt.Sprintf(format, args...)}
}

func unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Msg: msg}
}

// PartialFailureError is returned when an order reached PAID but its reward
// points could not be credited.  The order change is committed; the points
// must be settled later (see OrderService.SettlePoints).
type PartialFailureError struct {
	Order *model.Order
	Cause error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("order %d paid but reward points not credited: %v", e.Order.ID, e.Cause)
}

func (e *PartialFailureError) Unwrap() error { return e.Cause }
