package service

import (
	"context"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// BookingRequest is one requested line: a ticket code and the number of
// units to book.
type BookingRequest struct {
	TicketCode string
	Quantity   int
}

// BookingLine confirms one committed ledger entry.
type BookingLine struct {
	BookingID    string
	TicketCode   string
	TicketName   string
	CategoryName string
	Price        int
	Quantity     int
	TotalPrice   int
}

// BookingResult is returned by BookTickets.  CategoryTotals maps each
// category to the summed line totals of that category.
type BookingResult struct {
	Bookings       []BookingLine
	CategoryTotals map[string]int
	GrandTotal     int
}

// BookTickets validates and books every request line in order inside one
// unit of work.  Each line creates its own ledger entry, and later lines
// see the quantity consumed by earlier ones, so repeated ticket codes
// accumulate against the same quota.  The first failing line aborts the
// call and nothing is persisted.
func (s *InventoryService) BookTickets(ctx context.Context, requests []BookingRequest) (*BookingResult, error) {
	if len(requests) == 0 {
		return nil, newError(ErrInvalidQuantity, "At least one ticket must be requested.")
	}
	now := s.now()
	res := &BookingResult{
		Bookings:       make([]BookingLine, 0, len(requests)),
		CategoryTotals: make(map[string]int),
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, req := range requests {
			if req.Quantity < 1 {
				return newError(ErrInvalidQuantity, "Quantity for ticket %s must be at least 1.", req.TicketCode)
			}
			ticket, err := loadTicket(ctx, tx, req.TicketCode)
			if err != nil {
				return err
			}
			avail, err := availableQuota(ctx, tx, ticket, "")
			if err != nil {
				return err
			}
			if avail <= 0 {
				return newError(ErrTicketUnavailable, "Ticket %s is sold out or unavailable.", req.TicketCode)
			}
			if req.Quantity > avail {
				return newError(ErrInsufficientQuota, "Only %d tickets available for %s.", avail, req.TicketCode)
			}
			if !ticket.BookingOpen(now) {
				return newError(ErrEventDateInvalid, "The event date for ticket %s has already passed.", req.TicketCode)
			}

			entry := &model.BookedTicket{
				BookingID:  s.newID(),
				TicketCode: ticket.TicketCode,
				Quantity:   req.Quantity,
			}
			if err := tx.InsertEntry(ctx, entry); err != nil {
				return persistence("insert booked ticket "+entry.BookingID, err)
			}

			total := req.Quantity * ticket.Price
			res.Bookings = append(res.Bookings, BookingLine{
				BookingID:    entry.BookingID,
				TicketCode:   ticket.TicketCode,
				TicketName:   ticket.TicketName,
				CategoryName: ticket.CategoryName,
				Price:        ticket.Price,
				Quantity:     req.Quantity,
				TotalPrice:   total,
			})
			res.CategoryTotals[ticket.CategoryName] += total
			res.GrandTotal += total
		}
		return nil
	})
	if err != nil {
		return nil, persistence("booking transaction", err)
	}

	s.log.InfoContext(ctx, "tickets booked", "lines", len(res.Bookings), "grand_total", res.GrandTotal)
	ev := queue.BookingEvent{Type: queue.EventTicketBooked, GrandTotal: res.GrandTotal}
	for _, b := range res.Bookings {
		ev.Lines = append(ev.Lines, queue.EventLine{
			BookingID:    b.BookingID,
			TicketCode:   b.TicketCode,
			CategoryName: b.CategoryName,
			Quantity:     b.Quantity,
			Remaining:    b.Quantity,
			TotalPrice:   b.TotalPrice,
		})
	}
	s.notify(ctx, ev)
	return res, nil
}
