package service

import (
	"errors"
	"fmt"
)

// Error kinds.  Every error returned by InventoryService matches exactly
// one of these with errors.Is.  All kinds except ErrPersistence describe
// caller-correctable input or state.
var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketUnavailable = errors.New("ticket unavailable")
	ErrInsufficientQuota = errors.New("insufficient quota")
	ErrEventDateInvalid  = errors.New("event date invalid")
	ErrBookingNotFound   = errors.New("booked ticket not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrPersistence       = errors.New("persistence failure")
)

var titles = map[error]string{
	ErrTicketNotFound:    "Ticket Not Found",
	ErrTicketUnavailable: "Ticket Unavailable",
	ErrInsufficientQuota: "Insufficient Quota",
	ErrEventDateInvalid:  "Event Date Invalid",
	ErrBookingNotFound:   "Booked Ticket Not Found",
	ErrInvalidQuantity:   "Invalid Quantity",
	ErrPersistence:       "Persistence Failure",
}

// Error is the concrete error returned by the service.  Title is a short
// human label for the kind and Detail a sentence describing this
// occurrence.  Op and Err are set for persistence failures and name the
// store operation that failed and its cause.
type Error struct {
	Kind   error
	Title  string
	Detail string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return e.Detail
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Title: titles[kind], Detail: fmt.Sprintf(format, args...)}
}

// persistence wraps a store failure.  Errors that already carry a kind are
// returned unchanged so validation failures raised inside a unit of work
// keep their meaning.
func persistence(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{
		Kind:   ErrPersistence,
		Title:  titles[ErrPersistence],
		Detail: "The operation could not be completed: " + op + ".",
		Op:     op,
		Err:    err,
	}
}
