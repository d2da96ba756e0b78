package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/ration-connect/internal/logger"
)

// Publisher sends ledger events to EventsQueue.  Each publish dials its
// own connection, so a broker outage never leaves a dead channel behind;
// event volume is one message per registration or posting.
type Publisher struct {
	url string
	log *slog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *slog.Logger) *Publisher {
	return &Publisher{url: url, log: log.With(logger.Module("queue.publisher"))}
}

// ProfileRegistered publishes a profile.registered event.
func (p *Publisher) ProfileRegistered(ctx context.Context, ev ProfileRegisteredEvent) error {
	return p.publish(ctx, TypeProfileRegistered, ev)
}

// QuotaRecorded publishes a quota.recorded event.
func (p *Publisher) QuotaRecorded(ctx context.Context, ev QuotaRecordedEvent) error {
	return p.publish(ctx, TypeQuotaRecorded, ev)
}

func (p *Publisher) publish(ctx context.Context, typ string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		p.log.Error("marshal event failed", slog.String("type", typ), logger.Err(err))
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("dial failed", logger.Err(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", logger.Err(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", logger.Err(err))
		return err
	}

	id := uuid.NewString()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Type:         typ,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", EventsQueue, false, false, msg); err != nil {
		p.log.Warn("publish failed", slog.String("type", typ), logger.Err(err))
		return err
	}
	p.log.Debug("event published", slog.String("type", typ), slog.String("message_id", id))
	return nil
}
