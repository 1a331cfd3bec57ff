// Package service implements the ticket inventory core: available quota
// derivation, atomic multi-line booking, and revocation or editing of
// booked quantities.  Every operation runs inside one unit of work of the
// underlying repository.Store and either commits all of its writes or
// none of them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// Notifier is told about booking changes after they have been committed.
// Notification failures are logged and never undo the change.
type Notifier interface {
	Notify(ctx context.Context, ev queue.BookingEvent) error
}

// InventoryService exposes the booking operations to the request layer.
type InventoryService struct {
	store     repository.Store
	now       func() time.Time
	newID     func() string
	notifiers []Notifier
	log       *slog.Logger
}

// Option configures an InventoryService.
type Option func(*InventoryService)

// WithClock overrides the time source used for the event date gate.
func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how booking ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *InventoryService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithNotifier registers a Notifier.  Nil notifiers are ignored.
func WithNotifier(n Notifier) Option {
	return func(s *InventoryService) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *InventoryService) {
		if l != nil {
			s.log = l
		}
	}
}

// NewInventoryService constructs the service on top of store.  It panics
// when store is nil.
func NewInventoryService(store repository.Store, opts ...Option) *InventoryService {
	if store == nil {
		panic("nil store passed to NewInventoryService")
	}
	s := &InventoryService{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InventoryService) notify(ctx context.Context, ev queue.BookingEvent) {
	ev.OccurredAt = s.now().UTC().Format(time.RFC3339)
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			s.log.WarnContext(ctx, "booking event notification failed", "type", ev.Type, "error", err)
		}
	}
}

// loadTicket fetches and locks a catalog row, translating an absent row
// into ErrTicketNotFound.
func loadTicket(ctx context.Context, tx repository.Tx, code string) (*model.Ticket, error) {
	t, err := tx.TicketForUpdate(ctx, code)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return nil, newError(ErrTicketNotFound, "Ticket with code %s does not exist.", code)
	}
	if err != nil {
		return nil, persistence("load ticket "+code, err)
	}
	return t, nil
}
