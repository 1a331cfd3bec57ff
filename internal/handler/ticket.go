package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/service"
)

// TicketHandler serves the public catalog listing.
type TicketHandler struct {
	Inventory *service.InventoryService
}

// NewTicketHandler panics when inv is nil.
func NewTicketHandler(inv *service.InventoryService) *TicketHandler {
	if inv == nil {
		panic("nil inventory service passed to NewTicketHandler")
	}
	return &TicketHandler{Inventory: inv}
}

type eventDateRange struct {
	Minimum time.Time `json:"minimum"`
	Maximum time.Time `json:"maximum"`
}

type availableTicketResponse struct {
	CategoryName   string         `json:"categoryName"`
	TicketCode     string         `json:"ticketCode"`
	TicketName     string         `json:"ticketName"`
	EventDateRange eventDateRange `json:"eventDateRange"`
	Price          int            `json:"price"`
	AvailableQuota int            `json:"availableQuota"`
}

type ticketPage struct {
	TotalRecords int64                     `json:"totalRecords"`
	PageNumber   int                       `json:"pageNumber"`
	PageSize     int                       `json:"pageSize"`
	Data         []availableTicketResponse `json:"data"`
}

// accepted eventDateMin/eventDateMax layouts, tried in order
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) (*time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// ListAvailable handles GET /api/v1/get-available-ticket.  Filters are
// optional; categoryName, ticketCode and ticketName match substrings,
// price is an upper bound, and eventDateMin/eventDateMax bound the event
// date range.  Only tickets with available quota are listed.
func (h *TicketHandler) ListAvailable(c echo.Context) error {
	q := repository.TicketSearchQuery{
		CategoryName: strings.TrimSpace(c.QueryParam("categoryName")),
		TicketCode:   strings.TrimSpace(c.QueryParam("ticketCode")),
		TicketName:   strings.TrimSpace(c.QueryParam("ticketName")),
		OrderBy:      strings.TrimSpace(c.QueryParam("orderBy")),
		Descending:   strings.EqualFold(strings.TrimSpace(c.QueryParam("orderState")), "desc"),
	}

	if q.OrderBy == "" {
		q.OrderBy = "TicketCode"
	}
	if _, ok := repository.SortableColumns[q.OrderBy]; !ok {
		return badRequest(c, "Invalid OrderBy",
			"OrderBy must be one of: "+strings.Join(repository.SortableColumnNames, ", ")+".")
	}
	if v := c.QueryParam("price"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "Invalid Query", "price must be an integer.")
		}
		q.MaxPrice = &p
	}
	for _, f := range []struct {
		name string
		dst  **time.Time
	}{{"eventDateMin", &q.EventDateMin}, {"eventDateMax", &q.EventDateMax}} {
		v := c.QueryParam(f.name)
		if v == "" {
			continue
		}
		t, ok := parseDate(v)
		if !ok {
			return badRequest(c, "Invalid Query", f.name+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp.")
		}
		*f.dst = t
	}
	q.Page, _ = strconv.Atoi(c.QueryParam("pageNumber"))
	q.PageSize, _ = strconv.Atoi(c.QueryParam("pageSize"))
	q.Normalize()

	items, total, err := h.Inventory.ListAvailable(c.Request().Context(), q)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, ticketPage{
		TotalRecords: total,
		PageNumber:   q.Page,
		PageSize:     q.PageSize,
		Data:         toAvailableResponses(items),
	})
}

func toAvailableResponses(items []model.AvailableTicket) []availableTicketResponse {
	out := make([]availableTicketResponse, 0, len(items))
	for _, it := range items {
		out = append(out, availableTicketResponse{
			CategoryName:   it.CategoryName,
			TicketCode:     it.TicketCode,
			TicketName:     it.TicketName,
			EventDateRange: eventDateRange{Minimum: it.EventDateMinimum, Maximum: it.EventDateMaximum},
			Price:          it.Price,
			AvailableQuota: it.AvailableQuota,
		})
	}
	return out
}
