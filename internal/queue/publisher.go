package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/model"
)

// TicketQueueName is the durable queue ticket events are routed to.
const TicketQueueName = "ticket.events"

const publishTimeout = 5 * time.Second

// Publisher sends ticket events to RabbitMQ. It satisfies the ledger's
// Notifier: publishing happens after commit and failures are logged,
// never returned, so the request that issued the ticket is unaffected.
// A nil *Publisher drops every event.
type Publisher struct {
	url string
	log *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	// send is replaced in tests.
	send func(ctx context.Context, body []byte) error
}

// NewPublisher returns a Publisher for url. The broker is dialled lazily
// on the first event and again after any publish failure. An empty url
// yields nil.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{url: url, log: logger.With("component", "queue.publisher")}
	p.send = p.publish
	return p
}

func (p *Publisher) TicketIssued(ctx context.Context, t model.Ticket) {
	p.emit(ctx, TypeTicketIssued, t)
}

func (p *Publisher) TicketCancelled(ctx context.Context, t model.Ticket) {
	p.emit(ctx, TypeTicketCancelled, t)
}

func (p *Publisher) emit(ctx context.Context, typ string, t model.Ticket) {
	if p == nil {
		return
	}
	body, err := json.Marshal(newTicketEvent(typ, t, clock.Format(time.Now())))
	if err != nil {
		p.log.Error("marshal ticket event", slog.String("type", typ), slog.Any("err", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.send(ctx, body); err != nil {
		p.log.Warn("publish ticket event failed",
			slog.String("type", typ), slog.String("ticket_id", t.ID), slog.Any("err", err))
	}
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", TicketQueueName, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// ensureChannel must be called with p.mu held.
func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}
	if _, err := declareTicketQueue(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	p.conn, p.ch = nil, nil
	return err
}

func declareTicketQueue(ch *amqp.Channel) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(TicketQueueName, true, false, false, false, nil)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}
