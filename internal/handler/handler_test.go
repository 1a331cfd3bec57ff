package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/router"
	"github.com/iliyamo/ticket-booking/internal/service"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

type server struct {
	e     *echo.Echo
	store *repository.MemoryStore
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := repository.NewMemoryStore()
	for _, tk := range []model.Ticket{
		{TicketCode: "C001", TicketName: "Rock Night", CategoryName: "Concert", Quota: 10, Price: 150,
			EventDateMinimum: now.Add(48 * time.Hour), EventDateMaximum: now.Add(50 * time.Hour)},
		{TicketCode: "C002", TicketName: "Jazz Brunch", CategoryName: "Concert", Quota: 2, Price: 90,
			EventDateMinimum: now.Add(72 * time.Hour), EventDateMaximum: now.Add(74 * time.Hour)},
		{TicketCode: "F001", TicketName: "Jakarta - Bali", CategoryName: "Flight", Quota: 5, Price: 700,
			EventDateMinimum: now.Add(24 * time.Hour), EventDateMaximum: now.Add(26 * time.Hour)},
		{TicketCode: "X001", TicketName: "Sold Out Show", CategoryName: "Concert", Quota: 0, Price: 10,
			EventDateMinimum: now.Add(24 * time.Hour), EventDateMaximum: now.Add(25 * time.Hour)},
	} {
		require.NoError(t, store.PutTicket(tk))
	}

	n := 0
	inv := service.NewInventoryService(store,
		service.WithClock(func() time.Time { return now }),
		service.WithIDGenerator(func() string { n++; return fmt.Sprintf("BK%02d", n) }),
	)
	e := echo.New()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	router.RegisterRoutes(e, nil)
	router.RegisterTickets(e, handler.NewTicketHandler(inv), passthrough)
	router.RegisterBookings(e, handler.NewBookingHandler(inv), passthrough)
	return &server{e: e, store: store}
}

func (s *server) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireProblem(t *testing.T, rec *httptest.ResponseRecorder, status int, title string) handler.Problem {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
	p := decode[handler.Problem](t, rec)
	assert.Equal(t, handler.ProblemType, p.Type)
	assert.Equal(t, status, p.Status)
	assert.Equal(t, title, p.Title)
	return p
}

type bookResponse struct {
	Bookings []struct {
		BookingID  string `json:"bookingId"`
		TicketCode string `json:"ticketCode"`
		TicketName string `json:"ticketName"`
		Price      int    `json:"price"`
		Quantity   int    `json:"quantity"`
		TotalPrice int    `json:"totalPrice"`
	} `json:"bookings"`
	Summary struct {
		CategoryTotals map[string]int `json:"categoryTotals"`
		GrandTotal     int            `json:"grandTotal"`
	} `json:"summary"`
}

func TestHealthAndReady(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("down") }

func TestReadyReportsDatabaseDown(t *testing.T) {
	e := echo.New()
	router.RegisterRoutes(e, failingPinger{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	requireProblem(t, rec, http.StatusServiceUnavailable, "Service Unavailable")
}

func TestBookTicketEndpoint(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/book-ticket",
		`[{"ticketCode":"C001","quantity":2},{"ticketCode":"F001","quantity":1}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[bookResponse](t, rec)
	require.Len(t, res.Bookings, 2)
	assert.Equal(t, "BK01", res.Bookings[0].BookingID)
	assert.Equal(t, "Rock Night", res.Bookings[0].TicketName)
	assert.Equal(t, 300, res.Bookings[0].TotalPrice)
	assert.Equal(t, map[string]int{"Concert": 300, "Flight": 700}, res.Summary.CategoryTotals)
	assert.Equal(t, 1000, res.Summary.GrandTotal)
}

func TestBookTicketErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		title  string
	}{
		{"unknown ticket", `[{"ticketCode":"NOPE","quantity":1}]`, http.StatusNotFound, "Ticket Not Found"},
		{"sold out", `[{"ticketCode":"X001","quantity":1}]`, http.StatusBadRequest, "Ticket Unavailable"},
		{"over quota", `[{"ticketCode":"C002","quantity":3}]`, http.StatusBadRequest, "Insufficient Quota"},
		{"zero quantity", `[{"ticketCode":"C001","quantity":0}]`, http.StatusBadRequest, "Invalid Quantity"},
		{"empty list", `[]`, http.StatusBadRequest, "Invalid Quantity"},
		{"malformed", `{"ticketCode":`, http.StatusBadRequest, "Invalid Request Body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			rec := s.do(t, http.MethodPost, "/api/v1/book-ticket", tt.body)
			requireProblem(t, rec, tt.status, tt.title)
			assert.Empty(t, s.store.Entries())
		})
	}
}

func TestInsufficientQuotaDetail(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/book-ticket", `[{"ticketCode":"C002","quantity":3}]`)
	p := requireProblem(t, rec, http.StatusBadRequest, "Insufficient Quota")
	assert.Equal(t, "Only 2 tickets available for C002.", p.Detail)
	assert.Equal(t, "/api/v1/book-ticket", p.Instance)
}

func TestGetBookedTicket(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/book-ticket", `[{"ticketCode":"C001","quantity":3}]`).Code)

	rec := s.do(t, http.MethodGet, "/api/v1/get-booked-ticket/BK01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "C001", got["ticketCode"])
	assert.Equal(t, "Concert", got["categoryName"])
	assert.EqualValues(t, 3, got["quantity"])
	assert.Contains(t, got, "eventDateRange")

	requireProblem(t, s.do(t, http.MethodGet, "/api/v1/get-booked-ticket/BK99", ""),
		http.StatusNotFound, "Booked Ticket Not Found")

	s.store.RemoveTicket("C001")
	requireProblem(t, s.do(t, http.MethodGet, "/api/v1/get-booked-ticket/BK01", ""),
		http.StatusNotFound, "Associated Ticket Not Found")
}

func TestRevokeEndpoint(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/book-ticket", `[{"ticketCode":"C001","quantity":3}]`).Code)

	rec := s.do(t, http.MethodDelete, "/api/v1/revoke-ticket/BK01/C001/1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "Rock Night", got["ticketName"])
	assert.EqualValues(t, 2, got["remainingQuantity"])

	requireProblem(t, s.do(t, http.MethodDelete, "/api/v1/revoke-ticket/BK01/C001/5", ""),
		http.StatusBadRequest, "Invalid Quantity")
	requireProblem(t, s.do(t, http.MethodDelete, "/api/v1/revoke-ticket/BK01/C001/abc", ""),
		http.StatusBadRequest, "Invalid Quantity")
	requireProblem(t, s.do(t, http.MethodDelete, "/api/v1/revoke-ticket/BK01/F001/1", ""),
		http.StatusNotFound, "Booked Ticket Not Found")

	rec = s.do(t, http.MethodDelete, "/api/v1/revoke-ticket/BK01/C001/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.store.Entries())
}

func TestEditEndpoint(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/book-ticket", `[{"ticketCode":"C001","quantity":3}]`).Code)

	rec := s.do(t, http.MethodPut, "/api/v1/edit-booked-ticket/BK01", `[{"ticketCode":"C001","quantity":7}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		BookingID string `json:"bookingId"`
		Lines     []struct {
			TicketCode     string `json:"ticketCode"`
			Quantity       int    `json:"quantity"`
			RemainingQuota int    `json:"remainingQuota"`
		} `json:"lines"`
	}](t, rec)
	assert.Equal(t, "BK01", got.BookingID)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 7, got.Lines[0].Quantity)
	assert.Equal(t, 3, got.Lines[0].RemainingQuota)

	requireProblem(t, s.do(t, http.MethodPut, "/api/v1/edit-booked-ticket/BK01", `[{"ticketCode":"C001","quantity":11}]`),
		http.StatusBadRequest, "Insufficient Quota")
	requireProblem(t, s.do(t, http.MethodPut, "/api/v1/edit-booked-ticket/BK01", `[{"ticketCode":"NOPE","quantity":1}]`),
		http.StatusNotFound, "Ticket Not Found")
	requireProblem(t, s.do(t, http.MethodPut, "/api/v1/edit-booked-ticket/BK77", `[{"ticketCode":"C001","quantity":1}]`),
		http.StatusNotFound, "Booked Ticket Not Found")
	assert.Equal(t, 7, s.store.Entries()[0].Quantity)
}

type listResponse struct {
	TotalRecords int64 `json:"totalRecords"`
	PageNumber   int   `json:"pageNumber"`
	PageSize     int   `json:"pageSize"`
	Data         []struct {
		TicketCode     string `json:"ticketCode"`
		CategoryName   string `json:"categoryName"`
		Price          int    `json:"price"`
		AvailableQuota int    `json:"availableQuota"`
	} `json:"data"`
}

func TestListAvailable(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/book-ticket", `[{"ticketCode":"C002","quantity":2}]`).Code)

	rec := s.do(t, http.MethodGet, "/api/v1/get-available-ticket", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[listResponse](t, rec)
	assert.EqualValues(t, 2, res.TotalRecords)
	assert.Equal(t, 1, res.PageNumber)
	assert.Equal(t, 10, res.PageSize)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "C001", res.Data[0].TicketCode)
	assert.Equal(t, 10, res.Data[0].AvailableQuota)
	assert.Equal(t, "F001", res.Data[1].TicketCode)

	rec = s.do(t, http.MethodGet, "/api/v1/get-available-ticket?orderBy=Price&orderState=desc&pageSize=1", "")
	res = decode[listResponse](t, rec)
	assert.EqualValues(t, 2, res.TotalRecords)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "F001", res.Data[0].TicketCode)

	rec = s.do(t, http.MethodGet, "/api/v1/get-available-ticket?categoryName=conc&price=200", "")
	res = decode[listResponse](t, rec)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "C001", res.Data[0].TicketCode)

	rec = s.do(t, http.MethodGet, "/api/v1/get-available-ticket?eventDateMax=2026-03-02T23:00:00Z", "")
	res = decode[listResponse](t, rec)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "F001", res.Data[0].TicketCode)
}

func TestListAvailableFarPageIsEmpty(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/get-available-ticket?pageNumber=1000000000000000001&pageSize=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[listResponse](t, rec)
	assert.EqualValues(t, 3, res.TotalRecords)
	assert.Empty(t, res.Data)
	assert.Positive(t, res.PageNumber)
}

func TestListAvailableRejectsBadQuery(t *testing.T) {
	s := newServer(t)
	p := requireProblem(t, s.do(t, http.MethodGet, "/api/v1/get-available-ticket?orderBy=Quota", ""),
		http.StatusBadRequest, "Invalid OrderBy")
	assert.Contains(t, p.Detail, "TicketCode, TicketName, CategoryName, Price, EventDateMinimum")

	requireProblem(t, s.do(t, http.MethodGet, "/api/v1/get-available-ticket?price=cheap", ""),
		http.StatusBadRequest, "Invalid Query")
	requireProblem(t, s.do(t, http.MethodGet, "/api/v1/get-available-ticket?eventDateMin=tomorrow", ""),
		http.StatusBadRequest, "Invalid Query")
}

func TestUnknownRouteUsesProblemFormat(t *testing.T) {
	s := newServer(t)
	requireProblem(t, s.do(t, http.MethodGet, "/api/v1/nothing-here", ""), http.StatusNotFound, "Not Found")
}

func TestPersistenceFailureIs500(t *testing.T) {
	s := newServer(t)
	s.store.FailNext("InsertEntry", errors.New("disk full"))
	p := requireProblem(t, s.do(t, http.MethodPost, "/api/v1/book-ticket", `[{"ticketCode":"C001","quantity":1}]`),
		http.StatusInternalServerError, "Persistence Failure")
	assert.NotContains(t, p.Detail, "disk full")
}
