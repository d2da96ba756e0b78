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

	"github.com/iliyamo/ration-connect/internal/logger"
)

// AuditConsumer drains EventsQueue into an append-only audit file, one
// line per event.
type AuditConsumer struct {
	url  string
	path string
	log  *slog.Logger
}

// NewAuditConsumer returns a consumer writing to path (logs/ledger.log
// when empty).
func NewAuditConsumer(url, path string, log *slog.Logger) *AuditConsumer {
	if path == "" {
		path = filepath.Join("logs", "ledger.log")
	}
	return &AuditConsumer{url: url, path: path, log: log.With(logger.Module("queue.consumer"))}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff (capped at 30s) whenever the connection drops.
func (a *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(a.url)
		if err != nil {
			a.log.Warn("dial failed, retrying", logger.Err(err), slog.Duration("backoff", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = a.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warn("consume loop ended, reconnecting", logger.Err(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.log.Warn("set qos failed", logger.Err(err))
	}
	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(EventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := a.handle(d.Type, d.Body); err != nil {
				a.log.Error("handle message failed", slog.String("type", d.Type), logger.Err(err))
				_ = d.Nack(false, false) // poison messages are dropped, not requeued
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (a *AuditConsumer) handle(typ string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return writeAuditLine(f, typ, body)
}

// writeAuditLine renders one event as a single human-readable line.
func writeAuditLine(w io.Writer, typ string, body []byte) error {
	var line string
	switch typ {
	case TypeProfileRegistered:
		var ev ProfileRegisteredEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Profile registered | profile_id=%d | phone=%s | card_type=%s | family_members=%d\n",
			ev.RegisteredAt, ev.ProfileID, ev.Phone, ev.CardType, ev.FamilyMembers)
	case TypeQuotaRecorded:
		var ev QuotaRecordedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Quota %s | record_id=%d | profile_id=%d | month=%s | quantity=%.3f kg | delivery=%s | remaining=%.3f kg\n",
			ev.RecordedAt, ev.Status, ev.RecordID, ev.ProfileID, ev.Month, ev.QuantityKg, ev.DeliveryMethod, ev.RemainingKg)
	default:
		return fmt.Errorf("unknown event type %q", typ)
	}
	_, err := io.WriteString(w, line)
	return err
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
