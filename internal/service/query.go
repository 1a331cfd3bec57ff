package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// BookingDetail describes a ledger entry together with its ticket.
type BookingDetail struct {
	BookingID        string
	TicketCode       string
	TicketName       string
	CategoryName     string
	EventDateMinimum time.Time
	EventDateMaximum time.Time
	Quantity         int
}

// GetBooking loads a ledger entry and its ticket.  An orphaned entry is
// reported as ErrTicketNotFound.
func (s *InventoryService) GetBooking(ctx context.Context, bookingID string) (*BookingDetail, error) {
	var det *BookingDetail
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		entry, err := tx.Entry(ctx, bookingID)
		if errors.Is(err, repository.ErrBookingNotFound) {
			return newError(ErrBookingNotFound, "Booked Ticket with ID %s does not exist.", bookingID)
		}
		if err != nil {
			return persistence("load booked ticket "+bookingID, err)
		}
		if entry.Orphaned() {
			return orphaned(bookingID)
		}
		t, err := tx.Ticket(ctx, entry.TicketCode)
		if errors.Is(err, repository.ErrTicketNotFound) {
			return orphaned(bookingID)
		}
		if err != nil {
			return persistence("load ticket "+entry.TicketCode, err)
		}
		det = &BookingDetail{
			BookingID:        entry.BookingID,
			TicketCode:       t.TicketCode,
			TicketName:       t.TicketName,
			CategoryName:     t.CategoryName,
			EventDateMinimum: t.EventDateMinimum,
			EventDateMaximum: t.EventDateMaximum,
			Quantity:         entry.Quantity,
		}
		return nil
	})
	if err != nil {
		return nil, persistence("booking lookup transaction", err)
	}
	return det, nil
}

// ListAvailable returns one page of tickets with positive available
// quota and the total number of matching tickets.
func (s *InventoryService) ListAvailable(ctx context.Context, q repository.TicketSearchQuery) ([]model.AvailableTicket, int64, error) {
	items, total, err := s.store.SearchAvailable(ctx, q)
	if err != nil {
		return nil, 0, persistence("search available tickets", err)
	}
	return items, total, nil
}

func orphaned(bookingID string) *Error {
	e := newError(ErrTicketNotFound, "No ticket found for booking %s.", bookingID)
	e.Title = "Associated Ticket Not Found"
	return e
}
