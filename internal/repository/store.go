package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// Tx is the set of catalog and ledger operations available inside one
// unit of work.  Reads observe writes made earlier through the same Tx.
// Absent rows are reported with ErrTicketNotFound or ErrBookingNotFound.
type Tx interface {
	// Ticket loads a catalog row without locking it.
	Ticket(ctx context.Context, code string) (*model.Ticket, error)
	// TicketForUpdate loads a catalog row and holds its lock until the
	// unit of work ends.
	TicketForUpdate(ctx context.Context, code string) (*model.Ticket, error)
	// SumActiveQuantity sums booked quantity for a ticket, leaving out
	// excludeBookingID when it is not empty.
	SumActiveQuantity(ctx context.Context, ticketCode, excludeBookingID string) (int, error)
	InsertEntry(ctx context.Context, e *model.BookedTicket) error
	UpdateEntry(ctx context.Context, e *model.BookedTicket) error
	DeleteEntry(ctx context.Context, bookingID string) error
	// Entry loads a ledger entry by booking id without locking it.
	Entry(ctx context.Context, bookingID string) (*model.BookedTicket, error)
	// EntryForUpdate loads and locks a ledger entry by booking id.
	EntryForUpdate(ctx context.Context, bookingID string) (*model.BookedTicket, error)
	// EntryForTicketForUpdate loads and locks the entry matching both the
	// booking id and the ticket code.
	EntryForTicketForUpdate(ctx context.Context, bookingID, ticketCode string) (*model.BookedTicket, error)
}

// Store is the transactional store consumed by the inventory service.
type Store interface {
	// WithinTx runs fn inside a single transaction.  The transaction is
	// committed when fn returns nil and rolled back when fn returns an
	// error or panics.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// SearchAvailable lists tickets with positive available quota.
	SearchAvailable(ctx context.Context, q TicketSearchQuery) ([]model.AvailableTicket, int64, error)
}

// MySQLStore implements Store on top of the MySQL repositories.
type MySQLStore struct {
	db        *sql.DB
	isolation sql.IsolationLevel
	Tickets   *TicketRepo
	Booked    *BookedTicketRepo
}

// NewMySQLStore builds a store whose transactions run at the given
// isolation level.  sql.LevelDefault leaves the server default in place.
func NewMySQLStore(db *sql.DB, isolation sql.IsolationLevel) *MySQLStore {
	return &MySQLStore{
		db:        db,
		isolation: isolation,
		Tickets:   NewTicketRepo(db),
		Booked:    NewBookedTicketRepo(db),
	}
}

// DB exposes the underlying sql.DB.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// WithinTx begins a transaction, hands it to fn and commits or rolls back
// on every exit path.
func (s *MySQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: s.isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &mysqlTx{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// SearchAvailable delegates to the ticket repository.
func (s *MySQLStore) SearchAvailable(ctx context.Context, q TicketSearchQuery) ([]model.AvailableTicket, int64, error) {
	return s.Tickets.SearchAvailable(ctx, q)
}

// UpsertTickets writes a batch of catalog rows in one transaction.  The
// batch is refused with ErrQuotaBelowBooked when a ticket's new quota is
// smaller than the quantity already booked against it.
func (s *MySQLStore) UpsertTickets(ctx context.Context, tickets []model.Ticket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for i := range tickets {
		t := &tickets[i]
		if err := s.Tickets.UpsertTx(ctx, tx, t); err != nil {
			return err
		}
		// the upsert holds the row lock, so no booking can slip in between
		booked, err := s.Booked.SumQuantityTx(ctx, tx, t.TicketCode, "")
		if err != nil {
			return err
		}
		if booked > t.Quota {
			return quotaBelowBooked(t, booked)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type mysqlTx struct {
	tx    *sql.Tx
	store *MySQLStore
}

func (t *mysqlTx) Ticket(ctx context.Context, code string) (*model.Ticket, error) {
	return t.store.Tickets.GetByCodeTx(ctx, t.tx, code, false)
}

func (t *mysqlTx) TicketForUpdate(ctx context.Context, code string) (*model.Ticket, error) {
	return t.store.Tickets.GetByCodeTx(ctx, t.tx, code, true)
}

func (t *mysqlTx) SumActiveQuantity(ctx context.Context, ticketCode, excludeBookingID string) (int, error) {
	return t.store.Booked.SumQuantityTx(ctx, t.tx, ticketCode, excludeBookingID)
}

func (t *mysqlTx) InsertEntry(ctx context.Context, e *model.BookedTicket) error {
	return t.store.Booked.CreateTx(ctx, t.tx, e)
}

func (t *mysqlTx) UpdateEntry(ctx context.Context, e *model.BookedTicket) error {
	return t.store.Booked.UpdateQuantityTx(ctx, t.tx, e)
}

func (t *mysqlTx) DeleteEntry(ctx context.Context, bookingID string) error {
	return t.store.Booked.DeleteTx(ctx, t.tx, bookingID)
}

func (t *mysqlTx) Entry(ctx context.Context, bookingID string) (*model.BookedTicket, error) {
	return t.store.Booked.GetByIDTx(ctx, t.tx, bookingID, false)
}

func (t *mysqlTx) EntryForUpdate(ctx context.Context, bookingID string) (*model.BookedTicket, error) {
	return t.store.Booked.GetByIDTx(ctx, t.tx, bookingID, true)
}

func (t *mysqlTx) EntryForTicketForUpdate(ctx context.Context, bookingID, ticketCode string) (*model.BookedTicket, error) {
	return t.store.Booked.GetByIDAndTicketTx(ctx, t.tx, bookingID, ticketCode)
}
