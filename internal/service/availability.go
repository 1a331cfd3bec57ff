package service

import (
	"context"
	"errors"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// availableQuota derives quota minus every active booked quantity for the
// ticket, leaving out excludeBookingID when it is set.  It reads the
// current state of tx, including entries staged earlier in the same unit
// of work.  The result may be negative; callers reject any change that
// would leave it below zero.
func availableQuota(ctx context.Context, tx repository.Tx, t *model.Ticket, excludeBookingID string) (int, error) {
	booked, err := tx.SumActiveQuantity(ctx, t.TicketCode, excludeBookingID)
	if err != nil {
		return 0, persistence("sum booked quantity for "+t.TicketCode, err)
	}
	return t.Quota - booked, nil
}

// AvailableQuota returns the available quota of a ticket.  When
// excludeBookingID is set, that ledger entry's quantity is treated as
// not booked.  It has no side effects.
func (s *InventoryService) AvailableQuota(ctx context.Context, ticketCode, excludeBookingID string) (int, error) {
	var avail int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		t, err := tx.Ticket(ctx, ticketCode)
		if errors.Is(err, repository.ErrTicketNotFound) {
			return newError(ErrTicketNotFound, "Ticket with code %s does not exist.", ticketCode)
		}
		if err != nil {
			return persistence("load ticket "+ticketCode, err)
		}
		avail, err = availableQuota(ctx, tx, t, excludeBookingID)
		return err
	})
	if err != nil {
		return 0, persistence("available quota transaction", err)
	}
	return avail, nil
}
