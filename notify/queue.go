package notify

import (
	"context"
	"encoding/json"
	"time"

	identity "github.com/goliatone/go-identity"
	goerrors "github.com/goliatone/go-errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher puts a JSON job on a queue
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Queue hands notifications to a mail worker as Email jobs
type Queue struct {
	publisher Publisher
	links     Links
}

var _ identity.Notifier = (*Queue)(nil)

func NewQueue(publisher Publisher, clientURL string) *Queue {
	return &Queue{
		publisher: publisher,
		links:     Links{ClientURL: clientURL},
	}
}

// Notify renders n and publishes it
func (q *Queue) Notify(ctx context.Context, n identity.Notification) error {
	email, err := q.links.Render(n)
	if err != nil {
		return err
	}

	if err := q.publisher.PublishJSON(ctx, email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to publish email job").
			WithMetadata(map[string]any{"kind": string(n.Kind)})
	}

	return nil
}

// RabbitPublisher wraps an AMQP channel bound to one durable queue
type RabbitPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

var _ Publisher = (*RabbitPublisher)(nil)

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to connect to amqp broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open amqp channel")
	}

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to declare amqp queue").
			WithMetadata(map[string]any{"queue": queue})
	}

	return &RabbitPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *RabbitPublisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishJSON publishes body on the default exchange routed to the queue
func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}
