package service

import (
	"context"
	"errors"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// RevokeResult reports the state of an entry after a revocation.  A
// RemainingQuantity of zero means the entry was deleted.
type RevokeResult struct {
	BookingID         string
	TicketCode        string
	TicketName        string
	CategoryName      string
	RevokedQuantity   int
	RemainingQuantity int
}

// RevokeQuantity removes qty units from the entry identified by bookingID
// and ticketCode.  An entry whose quantity reaches zero is deleted.
func (s *InventoryService) RevokeQuantity(ctx context.Context, bookingID, ticketCode string, qty int) (*RevokeResult, error) {
	var res *RevokeResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		entry, err := tx.EntryForTicketForUpdate(ctx, bookingID, ticketCode)
		if errors.Is(err, repository.ErrBookingNotFound) {
			return newError(ErrBookingNotFound,
				"Booked Ticket with ID %s and Ticket Code %s does not exist.", bookingID, ticketCode)
		}
		if err != nil {
			return persistence("load booked ticket "+bookingID, err)
		}
		if qty < 1 {
			return newError(ErrInvalidQuantity, "The quantity to revoke must be at least 1.")
		}
		if qty > entry.Quantity {
			return newError(ErrInvalidQuantity,
				"The requested quantity exceeds the booked quantity for ticket %s.", ticketCode)
		}

		entry.Quantity -= qty
		if entry.Quantity <= 0 {
			entry.Quantity = 0
			if err := tx.DeleteEntry(ctx, entry.BookingID); err != nil {
				return persistence("delete booked ticket "+bookingID, err)
			}
		} else if err := tx.UpdateEntry(ctx, entry); err != nil {
			return persistence("update booked ticket "+bookingID, err)
		}

		res = &RevokeResult{
			BookingID:         entry.BookingID,
			TicketCode:        entry.TicketCode,
			RevokedQuantity:   qty,
			RemainingQuantity: entry.Quantity,
		}
		t, err := tx.Ticket(ctx, ticketCode)
		switch {
		case err == nil:
			res.TicketName, res.CategoryName = t.TicketName, t.CategoryName
		case !errors.Is(err, repository.ErrTicketNotFound):
			return persistence("load ticket "+ticketCode, err)
		}
		return nil
	})
	if err != nil {
		return nil, persistence("revoke transaction", err)
	}

	s.log.InfoContext(ctx, "booked ticket revoked",
		"booking_id", res.BookingID, "ticket_code", res.TicketCode,
		"revoked", res.RevokedQuantity, "remaining", res.RemainingQuantity)
	s.notify(ctx, queue.BookingEvent{
		Type: queue.EventTicketRevoked,
		Lines: []queue.EventLine{{
			BookingID:    res.BookingID,
			TicketCode:   res.TicketCode,
			CategoryName: res.CategoryName,
			Quantity:     res.RevokedQuantity,
			Remaining:    res.RemainingQuantity,
		}},
	})
	return res, nil
}

// EditLine reports one applied update line.  RemainingQuota is the
// ticket's available quota right after the line was applied.
type EditLine struct {
	TicketCode     string
	TicketName     string
	CategoryName   string
	Quantity       int
	RemainingQuota int
}

// EditResult is returned by EditBooking.  Quantity is the entry's final
// quantity, which is the quantity of the last line.
type EditResult struct {
	BookingID string
	Quantity  int
	Lines     []EditLine
}

// EditBooking sets the quantity of an existing entry, one update line at
// a time, inside a single unit of work.  Each line is checked against the
// ticket's availability with the entry's own current quantity added back.
// The entry holds a single quantity, so with several valid lines the last
// one wins.  Any failing line aborts the whole edit.
func (s *InventoryService) EditBooking(ctx context.Context, bookingID string, updates []BookingRequest) (*EditResult, error) {
	var res *EditResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		entry, err := tx.EntryForUpdate(ctx, bookingID)
		if errors.Is(err, repository.ErrBookingNotFound) {
			return newError(ErrBookingNotFound, "Booked Ticket with ID %s does not exist.", bookingID)
		}
		if err != nil {
			return persistence("load booked ticket "+bookingID, err)
		}
		if len(updates) == 0 {
			return newError(ErrInvalidQuantity, "At least one update must be supplied.")
		}

		res = &EditResult{BookingID: entry.BookingID, Lines: make([]EditLine, 0, len(updates))}
		for _, up := range updates {
			line, err := applyEdit(ctx, tx, entry, up)
			if err != nil {
				return err
			}
			res.Lines = append(res.Lines, *line)
		}
		res.Quantity = entry.Quantity
		return nil
	})
	if err != nil {
		return nil, persistence("edit transaction", err)
	}

	s.log.InfoContext(ctx, "booked ticket edited",
		"booking_id", res.BookingID, "lines", len(res.Lines), "quantity", res.Quantity)
	ev := queue.BookingEvent{Type: queue.EventBookingEdited}
	for _, l := range res.Lines {
		ev.Lines = append(ev.Lines, queue.EventLine{
			BookingID:    res.BookingID,
			TicketCode:   l.TicketCode,
			CategoryName: l.CategoryName,
			Quantity:     l.Quantity,
			Remaining:    res.Quantity,
		})
	}
	s.notify(ctx, ev)
	return res, nil
}

// applyEdit validates a single update line against entry and writes the
// new quantity.  entry is updated in place so later lines see it.
func applyEdit(ctx context.Context, tx repository.Tx, entry *model.BookedTicket, up BookingRequest) (*EditLine, error) {
	ticket, err := loadTicket(ctx, tx, up.TicketCode)
	if err != nil {
		return nil, err
	}
	if up.Quantity < 1 {
		return nil, newError(ErrInvalidQuantity, "Quantity must be at least 1.")
	}
	// An entry only ever counts against its own ticket; an update naming
	// another ticket has no entry to change.  Checking the line against the
	// other ticket's quota while rewriting this entry would let the booked
	// sum of the entry's ticket drift from what was validated (DESIGN.md,
	// "Edit naming another ticket").
	if entry.Orphaned() || entry.TicketCode != ticket.TicketCode {
		return nil, newError(ErrBookingNotFound,
			"Booked Ticket with ID %s and Ticket Code %s does not exist.", entry.BookingID, up.TicketCode)
	}

	// quota - totalBooked + entry.Quantity, i.e. availability without
	// this entry's current contribution.
	ceiling, err := availableQuota(ctx, tx, ticket, entry.BookingID)
	if err != nil {
		return nil, err
	}
	if up.Quantity > ceiling {
		return nil, newError(ErrInsufficientQuota,
			"The requested quantity exceeds the available quota for ticket %s (at most %d).", up.TicketCode, ceiling)
	}

	entry.Quantity = up.Quantity
	if err := tx.UpdateEntry(ctx, entry); err != nil {
		return nil, persistence("update booked ticket "+entry.BookingID, err)
	}
	return &EditLine{
		TicketCode:     ticket.TicketCode,
		TicketName:     ticket.TicketName,
		CategoryName:   ticket.CategoryName,
		Quantity:       up.Quantity,
		RemainingQuota: ceiling - up.Quantity,
	}, nil
}
