package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultQueueName = "supplai.supplier_orders"

var _ Queue = &AmqpQueue{}

// AmqpQueue is a Queue on a durable RabbitMQ queue, shared by every server and worker process.
type AmqpQueue struct {
	logger *zap.SugaredLogger
	conn   *amqp.Connection
	ch     *amqp.Channel
	name   string
}

func NewAmqpQueue(logger *zap.SugaredLogger, url string, name string) (*AmqpQueue, error) {
	if name == "" {
		name = DefaultQueueName
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not open amqp channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not declare queue %s: %w", name, err)
	}
	return &AmqpQueue{logger: logger, conn: conn, ch: ch, name: name}, nil
}

func (q *AmqpQueue) Publish(ctx context.Context, jobs ...Job) error {
	for _, job := range jobs {
		body, err := json.Marshal(job)
		if err != nil {
			return err
		}
		err = q.ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.SupplierOrderID.String(),
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("could not publish job: %w", err)
		}
	}
	return nil
}

func (q *AmqpQueue) Consume(ctx context.Context, handler Handler) error {
	// each consumer gets its own channel so a slow handler doesn't stall publishing
	ch, err := q.conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("could not register consumer: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrClosed
			}
			var job Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				q.logger.Errorw("dropping malformed dispatch job", "error", err)
				_ = d.Reject(false)
				continue
			}
			if err := handler(ctx, job); err != nil {
				q.logger.Warnw("dispatch job failed", "supplier_order_id", job.SupplierOrderID, "error", err)
			}
			if err := d.Ack(false); err != nil {
				q.logger.Warnw("ack failed", "error", err)
			}
		}
	}
}

func (q *AmqpQueue) Close() error {
	_ = q.ch.Close()
	return q.conn.Close()
}
