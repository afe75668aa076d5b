package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartTicketConsumer consumes the ticket events queue and appends one
// line per event to auditPath. It reconnects with backoff until ctx is
// done, then returns ctx.Err(). Undecodable messages are rejected
// without requeue.
func StartTicketConsumer(ctx context.Context, url, auditPath string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "queue.consumer")

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("dial broker failed", slog.Any("err", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, auditPath, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", slog.Any("err", err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
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

func consumeLoop(ctx context.Context, conn *amqp.Connection, auditPath string, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", slog.Any("err", err))
	}
	if _, err := declareTicketQueue(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(TicketQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	if dir := filepath.Dir(auditPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			ev, err := handleMessage(d.Body, f)
			if err != nil {
				log.Error("handle message failed", slog.Any("err", err))
				_ = d.Nack(false, false)
				continue
			}
			log.Info("ticket event",
				slog.String("type", ev.Type),
				slog.String("ticket_id", ev.TicketID),
				slog.String("event_id", ev.EventID))
			_ = d.Ack(false)
		}
	}
}

// handleMessage decodes body and writes its audit line to w.
func handleMessage(body []byte, w io.Writer) (TicketEvent, error) {
	var ev TicketEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.TicketID == "" {
		return ev, errors.New("ticket event without type or ticket id")
	}
	if _, err := io.WriteString(w, auditLine(ev)); err != nil {
		return ev, fmt.Errorf("write audit log: %w", err)
	}
	return ev, nil
}

func auditLine(ev TicketEvent) string {
	return fmt.Sprintf("[%s] %s | ticket_id=%s | group_id=%s | event_id=%s | owner_id=%s | person=%d | status=%s | family=%t\n",
		ev.OccurredAt, ev.Type, ev.TicketID, ev.GroupID, ev.EventID, ev.OwnerID, ev.Person, ev.Status, ev.IsFamilyTicket)
}
