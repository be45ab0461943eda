// Package reminder periodically scans for due mistakes and publishes a
// nudge event so a notification frontend can alert the student.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mistakebook/pkg/domain"
)

// Event is one reminder notification. MistakeIDs is capped so the payload
// stays small when a backlog builds up.
type Event struct {
	DueCount    int       `json:"dueCount"`
	MistakeIDs  []string  `json:"mistakeIds"`
	GeneratedAt time.Time `json:"generatedAt"`
}

const maxEventIDs = 20

// DueLister is the slice of the application the worker needs.
type DueLister interface {
	DueNow() ([]domain.Mistake, error)
}

// Publisher delivers reminder events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// AMQPPublisher publishes events to a RabbitMQ fanout exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = "mistakebook.reminders"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   ev.GeneratedAt,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Worker drives the periodic scan.
type Worker struct {
	app      DueLister
	pub      Publisher
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// New builds a worker. Interval defaults to an hour.
func New(app DueLister, pub Publisher, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{
		app:      app,
		pub:      pub,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      slog.Default().With("component", "reminder"),
	}
}

// Run scans on every tick until the context is cancelled. Scan failures are
// logged and the loop keeps going.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ScanOnce(ctx); err != nil {
				w.log.Error("reminder scan failed", "error", err)
			}
		}
	}
}

// ScanOnce counts due mistakes and publishes one event when any are due.
func (w *Worker) ScanOnce(ctx context.Context) error {
	due, err := w.app.DueNow()
	if err != nil {
		return fmt.Errorf("list due: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	ev := Event{
		DueCount:    len(due),
		GeneratedAt: w.now(),
	}
	for _, m := range due {
		if len(ev.MistakeIDs) == maxEventIDs {
			break
		}
		ev.MistakeIDs = append(ev.MistakeIDs, m.ID)
	}
	if err := w.pub.Publish(ctx, ev); err != nil {
		return err
	}
	w.log.Info("published reminder", "due_count", ev.DueCount)
	return nil
}
