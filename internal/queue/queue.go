package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/legitrack/relnet/backend/internal/util"
	"github.com/legitrack/relnet/backend/pkg/logger"

	json "github.com/goccy/go-json"
	"github.com/rabbitmq/amqp091-go"
)

const (
	Exchange          = "pubsub"
	RefreshRoutingKey = "cooccurrence.refreshed"
)

// RefreshMessage announces that the co-occurrence table was rebuilt.
type RefreshMessage struct {
	Source      string    `json:"source"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Rows        int64     `json:"rows,omitempty"`
}

// Invalidator drops everything derived from the co-occurrence table.
type Invalidator interface {
	Invalidate()
}

// Configured reports whether a RabbitMQ host is set.
func Configured() bool {
	return util.GetEnvString("RABBITMQ_HOST", "") != ""
}

func URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

func Init() *amqp091.Connection {
	conn, err := amqp091.Dial(URL())
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	return conn
}

func SetupExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		false,    // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,
	)
}

func PublishRefresh(ctx context.Context, ch *amqp091.Channel, msg RefreshMessage) error {
	if err := SetupExchange(ch); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if msg.RefreshedAt.IsZero() {
		msg.RefreshedAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Transient,
		Timestamp:    time.Now(),
	}
	return ch.PublishWithContext(ctx, Exchange, RefreshRoutingKey, false, false, publishing)
}

// ConsumeRefresh binds an exclusive queue to refresh notifications and calls
// target.Invalidate for each one until ctx is done or the channel closes.
func ConsumeRefresh(ctx context.Context, ch *amqp091.Channel, target Invalidator) error {
	if err := SetupExchange(ch); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare refresh queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, RefreshRoutingKey, Exchange, false, nil); err != nil {
		return fmt.Errorf("bind refresh queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"network_refresh_consumer",
		true,  // autoAck
		true,  // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume refresh queue: %w", err)
	}

	logger.Info("[Queue][Refresh] Listening for refresh notifications", "queue", q.Name)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue][Refresh] Stopping consumer")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("refresh channel closed")
			}
			HandleRefresh(msg.Body, target)
		}
	}
}

// HandleRefresh invalidates target for one notification. A body that cannot
// be decoded still invalidates: the notification itself is the signal.
func HandleRefresh(body []byte, target Invalidator) {
	var msg RefreshMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Warn("[Queue][Refresh] Undecodable refresh notification", "err", err)
	}
	target.Invalidate()
	logger.Info("[Queue][Refresh] Co-occurrence table refreshed", "source", msg.Source, "rows", msg.Rows, "refreshed_at", msg.RefreshedAt)
}
