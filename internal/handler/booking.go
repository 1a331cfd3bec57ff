package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/service"
)

// BookingHandler exposes booking, lookup, revocation and editing of
// booked tickets.
type BookingHandler struct {
	Inventory *service.InventoryService
}

// NewBookingHandler panics when inv is nil.
func NewBookingHandler(inv *service.InventoryService) *BookingHandler {
	if inv == nil {
		panic("nil inventory service passed to NewBookingHandler")
	}
	return &BookingHandler{Inventory: inv}
}

type bookingLineRequest struct {
	TicketCode string `json:"ticketCode"`
	Quantity   int    `json:"quantity"`
}

// bindLines decodes a JSON array of {ticketCode, quantity}.
func bindLines(c echo.Context) ([]service.BookingRequest, error) {
	var body []bookingLineRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return nil, err
	}
	out := make([]service.BookingRequest, 0, len(body))
	for _, l := range body {
		out = append(out, service.BookingRequest{TicketCode: strings.TrimSpace(l.TicketCode), Quantity: l.Quantity})
	}
	return out, nil
}

type bookingLineResponse struct {
	BookingID  string `json:"bookingId"`
	TicketName string `json:"ticketName"`
	TicketCode string `json:"ticketCode"`
	Price      int    `json:"price"`
	Quantity   int    `json:"quantity"`
	TotalPrice int    `json:"totalPrice"`
}

type bookingSummary struct {
	CategoryTotals map[string]int `json:"categoryTotals"`
	GrandTotal     int            `json:"grandTotal"`
}

type bookTicketsResponse struct {
	Bookings []bookingLineResponse `json:"bookings"`
	Summary  bookingSummary        `json:"summary"`
}

// BookTickets handles POST /api/v1/book-ticket.  The body is a JSON array
// of {ticketCode, quantity}; either every line is booked or none is.
func (h *BookingHandler) BookTickets(c echo.Context) error {
	reqs, err := bindLines(c)
	if err != nil {
		return badRequest(c, "Invalid Request Body", "Expected a JSON array of {ticketCode, quantity}.")
	}
	res, err := h.Inventory.BookTickets(c.Request().Context(), reqs)
	if err != nil {
		return serviceError(c, err)
	}

	out := bookTicketsResponse{
		Bookings: make([]bookingLineResponse, 0, len(res.Bookings)),
		Summary:  bookingSummary{CategoryTotals: res.CategoryTotals, GrandTotal: res.GrandTotal},
	}
	for _, b := range res.Bookings {
		out.Bookings = append(out.Bookings, bookingLineResponse{
			BookingID:  b.BookingID,
			TicketName: b.TicketName,
			TicketCode: b.TicketCode,
			Price:      b.Price,
			Quantity:   b.Quantity,
			TotalPrice: b.TotalPrice,
		})
	}
	return c.JSON(http.StatusOK, out)
}

type bookedTicketResponse struct {
	BookingID      string         `json:"bookingId"`
	TicketCode     string         `json:"ticketCode"`
	TicketName     string         `json:"ticketName"`
	EventDateRange eventDateRange `json:"eventDateRange"`
	Quantity       int            `json:"quantity"`
	CategoryName   string         `json:"categoryName"`
}

// GetBooked handles GET /api/v1/get-booked-ticket/:bookingId.
func (h *BookingHandler) GetBooked(c echo.Context) error {
	det, err := h.Inventory.GetBooking(c.Request().Context(), c.Param("bookingId"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, bookedTicketResponse{
		BookingID:      det.BookingID,
		TicketCode:     det.TicketCode,
		TicketName:     det.TicketName,
		EventDateRange: eventDateRange{Minimum: det.EventDateMinimum, Maximum: det.EventDateMaximum},
		Quantity:       det.Quantity,
		CategoryName:   det.CategoryName,
	})
}

type revokeResponse struct {
	TicketCode        string `json:"ticketCode"`
	TicketName        string `json:"ticketName"`
	CategoryName      string `json:"categoryName"`
	RemainingQuantity int    `json:"remainingQuantity"`
}

// Revoke handles DELETE /api/v1/revoke-ticket/:bookingId/:ticketCode/:qty.
// An entry revoked down to zero is removed.
func (h *BookingHandler) Revoke(c echo.Context) error {
	qty, err := strconv.Atoi(c.Param("qty"))
	if err != nil {
		return badRequest(c, "Invalid Quantity", "qty must be an integer.")
	}
	res, err := h.Inventory.RevokeQuantity(c.Request().Context(), c.Param("bookingId"), c.Param("ticketCode"), qty)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, revokeResponse{
		TicketCode:        res.TicketCode,
		TicketName:        res.TicketName,
		CategoryName:      res.CategoryName,
		RemainingQuantity: res.RemainingQuantity,
	})
}

type editLineResponse struct {
	TicketCode     string `json:"ticketCode"`
	TicketName     string `json:"ticketName"`
	CategoryName   string `json:"categoryName"`
	Quantity       int    `json:"quantity"`
	RemainingQuota int    `json:"remainingQuota"`
}

type editResponse struct {
	BookingID string             `json:"bookingId"`
	Lines     []editLineResponse `json:"lines"`
}

// Edit handles PUT /api/v1/edit-booked-ticket/:bookingId with the same
// body shape as BookTickets.
func (h *BookingHandler) Edit(c echo.Context) error {
	updates, err := bindLines(c)
	if err != nil {
		return badRequest(c, "Invalid Request Body", "Expected a JSON array of {ticketCode, quantity}.")
	}
	res, err := h.Inventory.EditBooking(c.Request().Context(), c.Param("bookingId"), updates)
	if err != nil {
		return serviceError(c, err)
	}
	out := editResponse{BookingID: res.BookingID, Lines: make([]editLineResponse, 0, len(res.Lines))}
	for _, l := range res.Lines {
		out.Lines = append(out.Lines, editLineResponse(l))
	}
	return c.JSON(http.StatusOK, out)
}
