package model

// BookedTicket is one ledger entry: a quantity booked under a single
// booking id against one ticket.  Entries are deleted when their quantity
// drops to zero, so a stored entry always has Quantity >= 1.
//
// Fields:
//  BookingID  – primary key, generated at creation.
//  TicketCode – referenced ticket; empty when the ticket was removed from
//               the catalog (the entry is then orphaned).
//  Quantity   – booked units.
type BookedTicket struct {
	BookingID  string // booked_tickets.booking_id
	TicketCode string // booked_tickets.ticket_code (nullable)
	Quantity   int    // booked_tickets.quantity
}

// Orphaned reports whether the referenced ticket no longer exists.
func (b *BookedTicket) Orphaned() bool { return b.TicketCode == "" }
