package model

import "time"

// Ticket is a catalog entry.  Quota is the total number of units that can
// ever be sold for the ticket; the number still available is derived from
// the booked_tickets ledger and is never stored.
//
// Fields:
//  TicketCode       – primary key, immutable.
//  TicketName       – display name.
//  CategoryName     – grouping used for per-category totals.
//  EventDateMinimum – start of the event window; booking closes here.
//  EventDateMaximum – end of the event window.
//  Quota            – total sellable units (>= 0).
//  Price            – unit price (>= 0).
type Ticket struct {
	TicketCode       string    // tickets.ticket_code
	TicketName       string    // tickets.ticket_name
	CategoryName     string    // tickets.category_name
	EventDateMinimum time.Time // tickets.event_date_minimum
	EventDateMaximum time.Time // tickets.event_date_maximum
	Quota            int       // tickets.quota
	Price            int       // tickets.price
}

// BookingOpen reports whether the ticket can still be booked at now.
// Booking is closed once the event window has started.
func (t *Ticket) BookingOpen(now time.Time) bool {
	return t.EventDateMinimum.After(now)
}

// AvailableTicket is a catalog row together with its derived available
// quota, as returned by ticket listings.
type AvailableTicket struct {
	Ticket
	AvailableQuota int
}
