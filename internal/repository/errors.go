// Package repository defines error types that are reused across the
// catalog and ledger repositories.  These sentinel values allow the
// service layer to tell an absent row apart from a failing store.  Any
// other error returned by a repository method comes from the database
// itself and should be treated as a persistence failure.
package repository

import (
	"errors"
	"fmt"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// ErrTicketNotFound is returned when no catalog row exists for the
// requested ticket code.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrBookingNotFound is returned when no ledger entry matches the
// requested booking id (and ticket code, when one is given).
var ErrBookingNotFound = errors.New("booked ticket not found")

// ErrInvalidTicket is returned by catalog writes when a ticket violates
// the catalog invariants (negative quota or price, inverted event window,
// empty identifiers).
var ErrInvalidTicket = errors.New("invalid ticket")

// ErrQuotaBelowBooked is returned by catalog writes that would lower a
// ticket's quota under the quantity already booked against it.
var ErrQuotaBelowBooked = errors.New("quota below booked quantity")

func quotaBelowBooked(t *model.Ticket, booked int) error {
	return fmt.Errorf("%w: ticket %s: quota %d, already booked %d", ErrQuotaBelowBooked, t.TicketCode, t.Quota, booked)
}
