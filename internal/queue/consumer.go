package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	bookingLogQueue = "booking.log"
	bookingLogFile  = "booking.log"
)

// BindingKeys are the routing patterns the booking log queue is bound to.
var BindingKeys = []string{"ticket.#", "booking.#"}

// LogConsumer drains the booking log queue and appends one line per event
// to <dir>/booking.log.
type LogConsumer struct {
	url      string
	exchange string
	dir      string
	log      *slog.Logger
}

// NewLogConsumer returns a consumer for the broker at url.  An empty dir
// means "logs".
func NewLogConsumer(url, exchange, dir string, log *slog.Logger) *LogConsumer {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if dir == "" {
		dir = "logs"
	}
	if log == nil {
		log = slog.Default()
	}
	return &LogConsumer{url: url, exchange: exchange, dir: dir, log: log.With("component", "booking-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled.  Dial
// failures and closed delivery channels are retried with exponential
// backoff capped at 30s.  Run returns ctx.Err() on shutdown.
func (c *LogConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended; reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *LogConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", "error", err)
	}
	if err := declareExchange(ch, c.exchange); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(bookingLogQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range BindingKeys {
		if err := ch.QueueBind(q.Name, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("consuming booking events", "queue", q.Name, "exchange", c.exchange)

	for d := range msgs {
		if err := c.HandleMessage(d.Body); err != nil {
			c.log.Error("handle message failed", "error", err)
			_ = d.Nack(false, false) // no requeue, a poison message would spin
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage decodes one event and appends it to the booking log.
func (c *LogConsumer) HandleMessage(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, bookingLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single newline-terminated log line.
func FormatLine(ev BookingEvent) string {
	parts := make([]string, 0, len(ev.Lines))
	for _, l := range ev.Lines {
		parts = append(parts, fmt.Sprintf("%s:%s x%d (remaining %d)", l.BookingID, l.TicketCode, l.Quantity, l.Remaining))
	}
	line := fmt.Sprintf("[%s] %s | lines=[%s]", ev.OccurredAt, ev.Type, strings.Join(parts, ", "))
	if ev.GrandTotal > 0 {
		line += fmt.Sprintf(" | total=%d", ev.GrandTotal)
	}
	return line + "\n"
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
