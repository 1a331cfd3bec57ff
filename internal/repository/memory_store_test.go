package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	for _, tk := range []model.Ticket{
		{TicketCode: "C001", TicketName: "Rock Night", CategoryName: "Concert", Quota: 10, Price: 150,
			EventDateMinimum: eventStart, EventDateMaximum: eventStart.Add(time.Hour)},
		{TicketCode: "C002", TicketName: "Jazz Brunch", CategoryName: "Concert", Quota: 4, Price: 90,
			EventDateMinimum: eventStart.Add(24 * time.Hour), EventDateMaximum: eventStart.Add(25 * time.Hour)},
		{TicketCode: "F001", TicketName: "Jakarta - Bali", CategoryName: "Flight", Quota: 2, Price: 700,
			EventDateMinimum: eventStart.Add(-24 * time.Hour), EventDateMaximum: eventStart.Add(-22 * time.Hour)},
	} {
		require.NoError(t, s.PutTicket(tk))
	}
	return s
}

func book(t *testing.T, s *MemoryStore, id, code string, qty int) {
	t.Helper()
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertEntry(ctx, &model.BookedTicket{BookingID: id, TicketCode: code, Quantity: qty})
	}))
}

func codes(items []model.AvailableTicket) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.TicketCode)
	}
	return out
}

func TestMemoryWithinTxDiscardsFailedWork(t *testing.T) {
	s := seedMemory(t)
	boom := errors.New("abort")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.InsertEntry(ctx, &model.BookedTicket{BookingID: "a", TicketCode: "C001", Quantity: 1}))
		sum, err := tx.SumActiveQuantity(ctx, "C001", "")
		require.NoError(t, err)
		assert.Equal(t, 1, sum, "reads see staged writes")
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, s.Entries())
}

func TestMemoryWithinTxHonorsCancelledContext(t *testing.T) {
	s := seedMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithinTx(ctx, func(context.Context, Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryFaults(t *testing.T) {
	s := seedMemory(t)
	boom := errors.New("io")
	s.FailAfter("InsertEntry", 1, boom)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.InsertEntry(ctx, &model.BookedTicket{BookingID: "a", TicketCode: "C001", Quantity: 1}))
		return tx.InsertEntry(ctx, &model.BookedTicket{BookingID: "b", TicketCode: "C001", Quantity: 1})
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, s.Entries())

	// a fault fires once
	book(t, s, "c", "C001", 1)
	assert.Len(t, s.Entries(), 1)
}

func TestMemoryRemoveTicketOrphansEntries(t *testing.T) {
	s := seedMemory(t)
	book(t, s, "a", "C001", 2)
	s.RemoveTicket("C001")

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Orphaned())

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.EntryForTicketForUpdate(ctx, "a", "C001")
		assert.ErrorIs(t, err, ErrBookingNotFound)
		_, err = tx.Ticket(ctx, "C001")
		assert.ErrorIs(t, err, ErrTicketNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryPutTicketValidates(t *testing.T) {
	s := NewMemoryStore()
	err := s.PutTicket(model.Ticket{TicketCode: "X", TicketName: "x", CategoryName: "c",
		EventDateMinimum: eventStart, EventDateMaximum: eventStart.Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrInvalidTicket)

	err = s.UpsertTickets(context.Background(), []model.Ticket{
		{TicketCode: "A", TicketName: "a", CategoryName: "c", EventDateMinimum: eventStart, EventDateMaximum: eventStart},
		{TicketCode: "", TicketName: "b", CategoryName: "c"},
	})
	assert.ErrorIs(t, err, ErrInvalidTicket)
	items, _, err := s.SearchAvailable(context.Background(), TicketSearchQuery{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemorySearchAvailable(t *testing.T) {
	s := seedMemory(t)
	book(t, s, "a", "F001", 2)
	book(t, s, "b", "C001", 4)
	ctx := context.Background()

	items, total, err := s.SearchAvailable(ctx, TicketSearchQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"C001", "C002"}, codes(items))
	assert.Equal(t, 6, items[0].AvailableQuota)

	items, _, err = s.SearchAvailable(ctx, TicketSearchQuery{OrderBy: "Price"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C002", "C001"}, codes(items))

	items, _, err = s.SearchAvailable(ctx, TicketSearchQuery{TicketName: "JAZZ"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C002"}, codes(items))

	from := eventStart.Add(time.Hour)
	items, _, err = s.SearchAvailable(ctx, TicketSearchQuery{EventDateMin: &from})
	require.NoError(t, err)
	assert.Equal(t, []string{"C002"}, codes(items))

	items, total, err = s.SearchAvailable(ctx, TicketSearchQuery{Page: 2, PageSize: 1, Descending: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"C001"}, codes(items))

	items, total, err = s.SearchAvailable(ctx, TicketSearchQuery{Page: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Empty(t, items)

	items, total, err = s.SearchAvailable(ctx, TicketSearchQuery{Page: 1000000000000000001, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Empty(t, items)

	items, _, err = s.SearchAvailable(ctx, TicketSearchQuery{TicketName: "%"})
	require.NoError(t, err)
	assert.Empty(t, items, "wildcards match literally")
}

func TestMemoryUpsertRefusesQuotaBelowBooked(t *testing.T) {
	s := seedMemory(t)
	book(t, s, "a", "C002", 3)

	lowered := model.Ticket{TicketCode: "C002", TicketName: "Jazz Brunch", CategoryName: "Concert", Quota: 2, Price: 90,
		EventDateMinimum: eventStart, EventDateMaximum: eventStart}
	err := s.UpsertTickets(context.Background(), []model.Ticket{lowered})
	require.ErrorIs(t, err, ErrQuotaBelowBooked)

	lowered.Quota = 3
	require.NoError(t, s.UpsertTickets(context.Background(), []model.Ticket{lowered}))
}
