// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/handler"
)

// RegisterRoutes registers the probes.  db may be nil when the service
// runs on the in-memory store.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterTickets registers the catalog listing under /api/v1.  cache
// wraps the listing only; it is invalidated after booking changes.
func RegisterTickets(e *echo.Echo, h *handler.TicketHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/api/v1")
	g.GET("/get-available-ticket", h.ListAvailable, cache)
}

// RegisterBookings registers booking routes under /api/v1.  limit guards
// the mutating routes.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/api/v1")
	g.GET("/get-booked-ticket/:bookingId", h.GetBooked)
	g.POST("/book-ticket", h.BookTickets, limit)
	g.DELETE("/revoke-ticket/:bookingId/:ticketCode/:qty", h.Revoke, limit)
	g.PUT("/edit-booked-ticket/:bookingId", h.Edit, limit)
}
