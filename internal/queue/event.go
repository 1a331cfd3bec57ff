// Package queue defines message payloads exchanged over the message broker.
package queue

// Routing keys for booking events.  The consumer binds with "booking.#"
// style patterns, so every key starts with a two-part prefix.
const (
	EventTicketBooked  = "ticket.booked"
	EventTicketRevoked = "ticket.revoked"
	EventBookingEdited = "booking.edited"
)

// BookingEvent is published after a booking change has been committed.
// It contains enough information for downstream consumers to log, notify
// or trigger analytics without querying the primary database.
type BookingEvent struct {
	Type       string      `json:"type"`
	Lines      []EventLine `json:"lines"`
	GrandTotal int         `json:"grand_total,omitempty"`
	OccurredAt string      `json:"occurred_at"`
}

// EventLine describes one ledger entry touched by the change.  Quantity
// is the booked, revoked or new quantity depending on the event type;
// Remaining is the entry's quantity after the change.
type EventLine struct {
	BookingID    string `json:"booking_id"`
	TicketCode   string `json:"ticket_code"`
	CategoryName string `json:"category_name,omitempty"`
	Quantity     int    `json:"quantity"`
	Remaining    int    `json:"remaining"`
	TotalPrice   int    `json:"total_price,omitempty"`
}
