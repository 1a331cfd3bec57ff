package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is applied in order by Migrate.  Ledger rows outlive their
// ticket: deleting a ticket nulls booked_tickets.ticket_code.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		ticket_code        VARCHAR(64)  NOT NULL,
		ticket_name        VARCHAR(255) NOT NULL,
		category_name      VARCHAR(128) NOT NULL,
		event_date_minimum DATETIME     NOT NULL,
		event_date_maximum DATETIME     NOT NULL,
		quota              INT          NOT NULL,
		price              INT          NOT NULL,
		PRIMARY KEY (ticket_code),
		CONSTRAINT chk_tickets_quota CHECK (quota >= 0),
		CONSTRAINT chk_tickets_price CHECK (price >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booked_tickets (
		booking_id  CHAR(36)    NOT NULL,
		ticket_code VARCHAR(64) NULL,
		quantity    INT         NOT NULL,
		PRIMARY KEY (booking_id),
		KEY idx_booked_tickets_ticket_code (ticket_code),
		CONSTRAINT fk_booked_tickets_ticket FOREIGN KEY (ticket_code)
			REFERENCES tickets (ticket_code) ON DELETE SET NULL,
		CONSTRAINT chk_booked_tickets_quantity CHECK (quantity > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
