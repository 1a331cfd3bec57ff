package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// TicketRepo manages persistence for the ticket catalog.  Catalog rows are
// read by the booking core and written only by catalog management (the
// seed command).
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo constructs a TicketRepo with the given DB handle.
func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

// DB exposes the underlying sql.DB so callers can begin transactions that
// span the catalog and the ledger.
func (r *TicketRepo) DB() *sql.DB {
	return r.db
}

const ticketColumns = `ticket_code, ticket_name, category_name, event_date_minimum, event_date_maximum, quota, price`

// GetByCodeTx loads a ticket inside the caller's transaction.  When
// forUpdate is set the row is locked until the transaction ends, which
// serializes every quota decision taken for the same ticket.  It returns
// ErrTicketNotFound when no row matches.
func (r *TicketRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string, forUpdate bool) (*model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_code = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var t model.Ticket
	err := tx.QueryRowContext(ctx, q, code).Scan(
		&t.TicketCode, &t.TicketName, &t.CategoryName,
		&t.EventDateMinimum, &t.EventDateMaximum, &t.Quota, &t.Price,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTx inserts a ticket or replaces the descriptive fields, window,
// quota and price of an existing one.  The ticket is validated first.
func (r *TicketRepo) UpsertTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	if err := ValidateTicket(t); err != nil {
		return err
	}
	const q = `INSERT INTO tickets (` + ticketColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE
                   ticket_name = VALUES(ticket_name),
                   category_name = VALUES(category_name),
                   event_date_minimum = VALUES(event_date_minimum),
                   event_date_maximum = VALUES(event_date_maximum),
                   quota = VALUES(quota),
                   price = VALUES(price)`
	_, err := tx.ExecContext(ctx, q,
		t.TicketCode, t.TicketName, t.CategoryName,
		t.EventDateMinimum.UTC(), t.EventDateMaximum.UTC(), t.Quota, t.Price,
	)
	return err
}

// ValidateTicket checks the catalog invariants for a single ticket.
func ValidateTicket(t *model.Ticket) error {
	switch {
	case strings.TrimSpace(t.TicketCode) == "":
		return fmt.Errorf("%w: ticket code is required", ErrInvalidTicket)
	case strings.TrimSpace(t.TicketName) == "":
		return fmt.Errorf("%w: ticket %s: name is required", ErrInvalidTicket, t.TicketCode)
	case strings.TrimSpace(t.CategoryName) == "":
		return fmt.Errorf("%w: ticket %s: category is required", ErrInvalidTicket, t.TicketCode)
	case t.Quota < 0:
		return fmt.Errorf("%w: ticket %s: quota must not be negative", ErrInvalidTicket, t.TicketCode)
	case t.Price < 0:
		return fmt.Errorf("%w: ticket %s: price must not be negative", ErrInvalidTicket, t.TicketCode)
	case t.EventDateMaximum.Before(t.EventDateMinimum):
		return fmt.Errorf("%w: ticket %s: event date maximum is before minimum", ErrInvalidTicket, t.TicketCode)
	}
	return nil
}

// TicketSearchQuery defines filters, ordering and pagination for listing
// available tickets.  Zero values disable a filter.
type TicketSearchQuery struct {
	CategoryName string
	TicketCode   string
	TicketName   string
	MaxPrice     *int
	EventDateMin *time.Time
	EventDateMax *time.Time
	OrderBy      string // one of SortableColumns keys; defaults to TicketCode
	Descending   bool
	Page         int
	PageSize     int
}

// SortableColumns maps the public ordering names to their SQL columns.
var SortableColumns = map[string]string{
	"TicketCode":       "t.ticket_code",
	"TicketName":       "t.ticket_name",
	"CategoryName":     "t.category_name",
	"Price":            "t.price",
	"EventDateMinimum": "t.event_date_minimum",
}

// SortableColumnNames lists the accepted ordering names in a stable order
// for error messages.
var SortableColumnNames = []string{"TicketCode", "TicketName", "CategoryName", "Price", "EventDateMinimum"}

// Normalize fills defaults: ordering by ticket code, first page, ten rows
// per page and at most one hundred.  Page is capped so the row offset
// cannot overflow.
func (q *TicketSearchQuery) Normalize() {
	if _, ok := SortableColumns[q.OrderBy]; !ok {
		q.OrderBy = "TicketCode"
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	// keep (Page-1)*PageSize and the page end within int
	if maxPage := math.MaxInt/q.PageSize - 1; q.Page > maxPage {
		q.Page = maxPage
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likeContains builds a LIKE pattern matching s literally anywhere in the
// column.  The pattern uses '!' as its escape character.
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// SearchAvailable lists catalog rows whose derived available quota is
// positive, applying the filters in q.  The second return value is the
// number of matching rows before pagination.
func (r *TicketRepo) SearchAvailable(ctx context.Context, q TicketSearchQuery) ([]model.AvailableTicket, int64, error) {
	q.Normalize()
	where := []string{"t.quota - COALESCE(b.booked, 0) > 0"}
	args := []any{}

	if q.CategoryName != "" {
		where = append(where, "t.category_name LIKE ? ESCAPE '!'")
		args = append(args, likeContains(q.CategoryName))
	}
	if q.TicketCode != "" {
		where = append(where, "t.ticket_code LIKE ? ESCAPE '!'")
		args = append(args, likeContains(q.TicketCode))
	}
	if q.TicketName != "" {
		where = append(where, "t.ticket_name LIKE ? ESCAPE '!'")
		args = append(args, likeContains(q.TicketName))
	}
	if q.MaxPrice != nil {
		where = append(where, "t.price <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.EventDateMin != nil {
		where = append(where, "t.event_date_minimum >= ?")
		args = append(args, q.EventDateMin.UTC())
	}
	if q.EventDateMax != nil {
		where = append(where, "t.event_date_maximum <= ?")
		args = append(args, q.EventDateMax.UTC())
	}

	from := `FROM tickets t
		LEFT JOIN (
			SELECT ticket_code, SUM(quantity) AS booked
			FROM booked_tickets
			WHERE ticket_code IS NOT NULL
			GROUP BY ticket_code
		) b ON b.ticket_code = t.ticket_code
		WHERE ` + strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	dataSQL := `SELECT t.ticket_code, t.ticket_name, t.category_name,
			t.event_date_minimum, t.event_date_maximum, t.quota, t.price,
			t.quota - COALESCE(b.booked, 0) AS available_quota
		` + from + `
		ORDER BY ` + SortableColumns[q.OrderBy] + ` ` + dir + `, t.ticket_code ASC
		LIMIT ? OFFSET ?`
	dataArgs := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.AvailableTicket, 0, q.PageSize)
	for rows.Next() {
		var a model.AvailableTicket
		if err := rows.Scan(
			&a.TicketCode, &a.TicketName, &a.CategoryName,
			&a.EventDateMinimum, &a.EventDateMaximum, &a.Quota, &a.Price,
			&a.AvailableQuota,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
