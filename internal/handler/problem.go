package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/service"
)

// ProblemType is the "type" member of every problem document.
const ProblemType = "https://tools.ietf.org/html/rfc7807"

// Problem is an RFC 7807 problem details document.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeProblem(c echo.Context, status int, title, detail string) error {
	body, err := json.Marshal(Problem{
		Type:     ProblemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
	if err != nil {
		return err
	}
	return c.Blob(status, "application/problem+json", body)
}

func badRequest(c echo.Context, title, detail string) error {
	return writeProblem(c, http.StatusBadRequest, title, detail)
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrTicketNotFound), errors.Is(err, service.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTicketUnavailable),
		errors.Is(err, service.ErrInsufficientQuota),
		errors.Is(err, service.ErrEventDateInvalid),
		errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// serviceError renders err as a problem document.  Persistence failures
// are logged with their cause and reported without internals.
func serviceError(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		slog.ErrorContext(c.Request().Context(), "unexpected error", "path", c.Path(), "error", err)
		return writeProblem(c, http.StatusInternalServerError, "Internal Server Error", "")
	}
	status := statusFor(se)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "op", se.Op, "error", se.Err)
	}
	return writeProblem(c, status, se.Title, se.Detail)
}

// HTTPErrorHandler renders errors escaping the handlers, such as unknown
// routes or framework errors, in the same problem format.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		detail := ""
		if msg, ok := he.Message.(string); ok {
			detail = msg
		}
		_ = writeProblem(c, he.Code, http.StatusText(he.Code), detail)
		return
	}
	_ = serviceError(c, err)
}
