package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// BookedTicketRepo provides ledger operations on the booked_tickets table.
// Every method runs inside a caller-owned transaction; the caller must
// commit or roll back.
type BookedTicketRepo struct {
	db *sql.DB
}

// NewBookedTicketRepo returns a new BookedTicketRepo bound to the given database.
func NewBookedTicketRepo(db *sql.DB) *BookedTicketRepo { return &BookedTicketRepo{db: db} }

// SumQuantityTx returns the total quantity booked against a ticket.  When
// excludeBookingID is not empty that entry's quantity is left out of the
// sum.  A ticket with no entries sums to zero.
func (r *BookedTicketRepo) SumQuantityTx(ctx context.Context, tx *sql.Tx, ticketCode, excludeBookingID string) (int, error) {
	q := `SELECT COALESCE(SUM(quantity), 0) FROM booked_tickets WHERE ticket_code = ?`
	args := []any{ticketCode}
	if excludeBookingID != "" {
		q += ` AND booking_id <> ?`
		args = append(args, excludeBookingID)
	}
	var sum int
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// CreateTx inserts a new ledger entry.
func (r *BookedTicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.BookedTicket) error {
	const q = `INSERT INTO booked_tickets (booking_id, ticket_code, quantity) VALUES (?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, e.BookingID, nullableCode(e.TicketCode), e.Quantity)
	return err
}

// UpdateQuantityTx overwrites the quantity of an existing entry.  It
// returns ErrBookingNotFound when the entry does not exist.  The DSN
// enables clientFoundRows so an unchanged quantity still counts as a
// matched row.
func (r *BookedTicketRepo) UpdateQuantityTx(ctx context.Context, tx *sql.Tx, e *model.BookedTicket) error {
	const q = `UPDATE booked_tickets SET quantity = ? WHERE booking_id = ?`
	res, err := tx.ExecContext(ctx, q, e.Quantity, e.BookingID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteTx removes an entry.  It returns ErrBookingNotFound when nothing
// was deleted.
func (r *BookedTicketRepo) DeleteTx(ctx context.Context, tx *sql.Tx, bookingID string) error {
	const q = `DELETE FROM booked_tickets WHERE booking_id = ?`
	res, err := tx.ExecContext(ctx, q, bookingID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// GetByIDTx loads an entry by booking id, locking the row when forUpdate
// is set.
func (r *BookedTicketRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, bookingID string, forUpdate bool) (*model.BookedTicket, error) {
	q := `SELECT booking_id, ticket_code, quantity FROM booked_tickets WHERE booking_id = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanEntry(tx.QueryRowContext(ctx, q, bookingID))
}

// GetByIDAndTicketTx loads and locks an entry matching both the booking id
// and the ticket code.  Orphaned entries never match.
func (r *BookedTicketRepo) GetByIDAndTicketTx(ctx context.Context, tx *sql.Tx, bookingID, ticketCode string) (*model.BookedTicket, error) {
	const q = `SELECT booking_id, ticket_code, quantity FROM booked_tickets
               WHERE booking_id = ? AND ticket_code = ? FOR UPDATE`
	return scanEntry(tx.QueryRowContext(ctx, q, bookingID, ticketCode))
}

func scanEntry(row *sql.Row) (*model.BookedTicket, error) {
	var e model.BookedTicket
	var code sql.NullString
	err := row.Scan(&e.BookingID, &code, &e.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if code.Valid {
		e.TicketCode = code.String
	}
	return &e, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func nullableCode(code string) sql.NullString {
	return sql.NullString{String: code, Valid: code != ""}
}
