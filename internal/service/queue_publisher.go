package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/blog-cms/internal/queue"
)

// EventPublisher publishes auth events. Failures are reported to the
// caller, which is free to ignore them.
type EventPublisher interface {
	Publish(ctx context.Context, ev q.AuthEvent) error
}

// NoopPublisher drops every event. Used when EVENTS_ENABLED is off.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, q.AuthEvent) error { return nil }

// defaultDialTimeout applies when Publish is called without a deadline.
const defaultDialTimeout = 5 * time.Second

// QueuePublisher publishes AuthEvents to the durable auth.events queue over
// one long-lived connection. The connection is opened on first use and
// dropped after any failure so the next Publish reconnects. Dialing is
// bounded by the caller's context deadline.
type QueuePublisher struct {
	URL    string
	Logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewQueuePublisher(url string, logger *slog.Logger) *QueuePublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueuePublisher{URL: url, Logger: logger}
}

func (p *QueuePublisher) Publish(ctx context.Context, ev q.AuthEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(ctx)
	if err != nil {
		p.Logger.Warn("rabbitmq: connect failed", "err", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.AuthEventsQueue, false, false, pub); err != nil {
		p.Logger.Warn("rabbitmq: publish failed", "err", err, "type", ev.Type)
		p.reset()
		return err
	}
	return nil
}

// Close releases the broker connection.
func (p *QueuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// channel returns the open channel, connecting first if needed. p.mu is held.
func (p *QueuePublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	timeout := defaultDialTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(timeout)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// idempotent; durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(q.AuthEventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if ctx.Err() != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Join(errors.New("rabbitmq: connect outlived deadline"), ctx.Err())
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *QueuePublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
