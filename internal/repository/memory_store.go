package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// MemoryStore is an in-process Store.  Each unit of work holds a single
// store-wide lock and operates on a private copy of the data, which is
// swapped in on commit.  Transactions are therefore serializable and a
// failed unit of work leaves no trace.
type MemoryStore struct {
	mu      sync.Mutex
	tickets map[string]model.Ticket
	entries map[string]model.BookedTicket
	faults  map[string]*fault
}

type fault struct {
	skip int
	err  error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets: make(map[string]model.Ticket),
		entries: make(map[string]model.BookedTicket),
		faults:  make(map[string]*fault),
	}
}

// PutTicket inserts or replaces a catalog row after validating it.
func (s *MemoryStore) PutTicket(t model.Ticket) error {
	if err := ValidateTicket(&t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.TicketCode] = t
	return nil
}

// UpsertTickets writes a batch of catalog rows; either all are written or
// none are.  Like the MySQL store it refuses a quota below the booked
// quantity.
func (s *MemoryStore) UpsertTickets(_ context.Context, tickets []model.Ticket) error {
	for i := range tickets {
		if err := ValidateTicket(&tickets[i]); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	booked := make(map[string]int)
	for _, e := range s.entries {
		booked[e.TicketCode] += e.Quantity
	}
	for i := range tickets {
		if n := booked[tickets[i].TicketCode]; n > tickets[i].Quota {
			return quotaBelowBooked(&tickets[i], n)
		}
	}
	for _, t := range tickets {
		s.tickets[t.TicketCode] = t
	}
	return nil
}

// RemoveTicket deletes a catalog row.  Ledger entries referencing it are
// kept with an empty ticket code, mirroring ON DELETE SET NULL.
func (s *MemoryStore) RemoveTicket(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, code)
	for id, e := range s.entries {
		if e.TicketCode == code {
			e.TicketCode = ""
			s.entries[id] = e
		}
	}
}

// Entries returns a snapshot of the committed ledger ordered by booking id.
func (s *MemoryStore) Entries() []model.BookedTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.BookedTicket, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out
}

// FailNext makes the next call of the named Tx operation (for example
// "InsertEntry") return err.  It exists to exercise rollback paths.
func (s *MemoryStore) FailNext(op string, err error) {
	s.FailAfter(op, 0, err)
}

// FailAfter lets the named operation succeed skip times and then fail
// once with err.
func (s *MemoryStore) FailAfter(op string, skip int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{skip: skip, err: err}
}

// WithinTx runs fn against a private copy of the store and commits the
// copy when fn returns nil.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{
		tickets: make(map[string]model.Ticket, len(s.tickets)),
		entries: make(map[string]model.BookedTicket, len(s.entries)),
		faults:  s.faults,
	}
	for k, v := range s.tickets {
		tx.tickets[k] = v
	}
	for k, v := range s.entries {
		tx.entries[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.tickets = tx.tickets
	s.entries = tx.entries
	return nil
}

// SearchAvailable applies the same filters, ordering and pagination as
// the MySQL repository.
func (s *MemoryStore) SearchAvailable(_ context.Context, q TicketSearchQuery) ([]model.AvailableTicket, int64, error) {
	q.Normalize()
	s.mu.Lock()
	booked := make(map[string]int)
	for _, e := range s.entries {
		if e.TicketCode != "" {
			booked[e.TicketCode] += e.Quantity
		}
	}
	matches := make([]model.AvailableTicket, 0)
	for _, t := range s.tickets {
		avail := t.Quota - booked[t.TicketCode]
		if avail <= 0 || !q.matches(t) {
			continue
		}
		matches = append(matches, model.AvailableTicket{Ticket: t, AvailableQuota: avail})
	}
	s.mu.Unlock()

	less := ticketLess(q.OrderBy)
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := &matches[i].Ticket, &matches[j].Ticket
		if c := less(a, b); c != 0 {
			if q.Descending {
				return c > 0
			}
			return c < 0
		}
		return a.TicketCode < b.TicketCode
	})

	total := int64(len(matches))
	start := (q.Page - 1) * q.PageSize
	if start >= len(matches) {
		return []model.AvailableTicket{}, total, nil
	}
	end := start + q.PageSize
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

func (q *TicketSearchQuery) matches(t model.Ticket) bool {
	if q.CategoryName != "" && !containsFold(t.CategoryName, q.CategoryName) {
		return false
	}
	if q.TicketCode != "" && !containsFold(t.TicketCode, q.TicketCode) {
		return false
	}
	if q.TicketName != "" && !containsFold(t.TicketName, q.TicketName) {
		return false
	}
	if q.MaxPrice != nil && t.Price > *q.MaxPrice {
		return false
	}
	if q.EventDateMin != nil && t.EventDateMinimum.Before(*q.EventDateMin) {
		return false
	}
	if q.EventDateMax != nil && t.EventDateMaximum.After(*q.EventDateMax) {
		return false
	}
	return true
}

// containsFold matches the case-insensitive LIKE of the default MySQL collation.
func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func ticketLess(orderBy string) func(a, b *model.Ticket) int {
	switch orderBy {
	case "TicketName":
		return func(a, b *model.Ticket) int { return strings.Compare(a.TicketName, b.TicketName) }
	case "CategoryName":
		return func(a, b *model.Ticket) int { return strings.Compare(a.CategoryName, b.CategoryName) }
	case "Price":
		return func(a, b *model.Ticket) int { return a.Price - b.Price }
	case "EventDateMinimum":
		return func(a, b *model.Ticket) int { return a.EventDateMinimum.Compare(b.EventDateMinimum) }
	default:
		return func(a, b *model.Ticket) int { return strings.Compare(a.TicketCode, b.TicketCode) }
	}
}

type memoryTx struct {
	tickets map[string]model.Ticket
	entries map[string]model.BookedTicket
	faults  map[string]*fault
}

func (t *memoryTx) fault(op string) error {
	f, ok := t.faults[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(t.faults, op)
	return f.err
}

func (t *memoryTx) Ticket(_ context.Context, code string) (*model.Ticket, error) {
	if err := t.fault("Ticket"); err != nil {
		return nil, err
	}
	tk, ok := t.tickets[code]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return &tk, nil
}

func (t *memoryTx) TicketForUpdate(ctx context.Context, code string) (*model.Ticket, error) {
	if err := t.fault("TicketForUpdate"); err != nil {
		return nil, err
	}
	return t.Ticket(ctx, code)
}

func (t *memoryTx) SumActiveQuantity(_ context.Context, ticketCode, excludeBookingID string) (int, error) {
	if err := t.fault("SumActiveQuantity"); err != nil {
		return 0, err
	}
	sum := 0
	for id, e := range t.entries {
		if e.TicketCode == ticketCode && (excludeBookingID == "" || id != excludeBookingID) {
			sum += e.Quantity
		}
	}
	return sum, nil
}

func (t *memoryTx) InsertEntry(_ context.Context, e *model.BookedTicket) error {
	if err := t.fault("InsertEntry"); err != nil {
		return err
	}
	t.entries[e.BookingID] = *e
	return nil
}

func (t *memoryTx) UpdateEntry(_ context.Context, e *model.BookedTicket) error {
	if err := t.fault("UpdateEntry"); err != nil {
		return err
	}
	cur, ok := t.entries[e.BookingID]
	if !ok {
		return ErrBookingNotFound
	}
	cur.Quantity = e.Quantity
	t.entries[e.BookingID] = cur
	return nil
}

func (t *memoryTx) DeleteEntry(_ context.Context, bookingID string) error {
	if err := t.fault("DeleteEntry"); err != nil {
		return err
	}
	if _, ok := t.entries[bookingID]; !ok {
		return ErrBookingNotFound
	}
	delete(t.entries, bookingID)
	return nil
}

func (t *memoryTx) Entry(_ context.Context, bookingID string) (*model.BookedTicket, error) {
	if err := t.fault("Entry"); err != nil {
		return nil, err
	}
	e, ok := t.entries[bookingID]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &e, nil
}

func (t *memoryTx) EntryForUpdate(ctx context.Context, bookingID string) (*model.BookedTicket, error) {
	if err := t.fault("EntryForUpdate"); err != nil {
		return nil, err
	}
	return t.Entry(ctx, bookingID)
}

func (t *memoryTx) EntryForTicketForUpdate(ctx context.Context, bookingID, ticketCode string) (*model.BookedTicket, error) {
	if err := t.fault("EntryForTicketForUpdate"); err != nil {
		return nil, err
	}
	e, ok := t.entries[bookingID]
	if !ok || e.TicketCode == "" || e.TicketCode != ticketCode {
		return nil, ErrBookingNotFound
	}
	return &e, nil
}
