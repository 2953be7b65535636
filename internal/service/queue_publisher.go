// Package service holds the RabbitMQ publisher for record.created events.
// Errors are returned so callers can log them without failing the request
// that produced the event.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/queue"
)

// Publisher dials the broker for every event and waits for the broker to
// confirm it.  No connection outlives a publish.
type Publisher struct {
	URL   string
	Queue string
}

func NewPublisher(url, queue string) *Publisher { return &Publisher{URL: url, Queue: queue} }

// PublishRecordCreated sends ev to the durable queue as a persistent message
// and returns once the broker has confirmed it or ctx is done.
func (p *Publisher) PublishRecordCreated(ctx context.Context, ev q.RecordCreatedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	conn, ch, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
		_ = conn.Close()
	}()

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.FormatUint(ev.ID, 10),
		AppId:        ev.Region,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: await confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked record %d", ev.ID)
	}
	return nil
}

// open dials, opens a confirming channel, and declares the durable queue.
func (p *Publisher) open(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(publishDialTimeout(ctx)),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: confirm mode: %w", err)
	}
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	return conn, ch, nil
}

// publishDialTimeout keeps the TCP dial within ctx's deadline.
func publishDialTimeout(ctx context.Context) time.Duration {
	dl, ok := ctx.Deadline()
	if !ok {
		return 30 * time.Second
	}
	if d := time.Until(dl); d > 0 {
		return d
	}
	return time.Millisecond
}
