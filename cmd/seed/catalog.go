package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

type catalogFile struct {
	Tickets []catalogTicket `yaml:"tickets"`
}

type catalogTicket struct {
	Code     string    `yaml:"code"`
	Name     string    `yaml:"name"`
	Category string    `yaml:"category"`
	Starts   time.Time `yaml:"eventDateMinimum"`
	Ends     time.Time `yaml:"eventDateMaximum"`
	Quota    int       `yaml:"quota"`
	Price    int       `yaml:"price"`
}

// parseCatalog decodes and validates a catalog.  Every invalid ticket is
// reported, and duplicate codes are rejected.
func parseCatalog(r io.Reader) ([]model.Ticket, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f catalogFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Tickets))
	tickets := make([]model.Ticket, 0, len(f.Tickets))
	var errs []error
	for i, ct := range f.Tickets {
		t := model.Ticket{
			TicketCode:       ct.Code,
			TicketName:       ct.Name,
			CategoryName:     ct.Category,
			EventDateMinimum: ct.Starts.UTC(),
			EventDateMaximum: ct.Ends.UTC(),
			Quota:            ct.Quota,
			Price:            ct.Price,
		}
		if err := repository.ValidateTicket(&t); err != nil {
			errs = append(errs, fmt.Errorf("ticket #%d: %w", i+1, err))
			continue
		}
		if seen[t.TicketCode] {
			errs = append(errs, fmt.Errorf("ticket #%d: duplicate code %s", i+1, t.TicketCode))
			continue
		}
		seen[t.TicketCode] = true
		tickets = append(tickets, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(tickets) == 0 {
		return nil, errors.New("catalog has no tickets")
	}
	return tickets, nil
}
