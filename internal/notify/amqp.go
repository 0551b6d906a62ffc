package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Event is the message published for each notification.
type Event struct {
	UserID     string                  `json:"user_id"`
	Type       domain.NotificationType `json:"type"`
	Title      string                  `json:"title"`
	Message    string                  `json:"message"`
	Attributes map[string]string       `json:"attributes,omitempty"`
	OccurredAt time.Time               `json:"occurred_at"`
}

// AMQPSender publishes notifications to a topic exchange with routing key
// "notification.<type>" for downstream consumers.
type AMQPSender struct {
	conn     *amqp.Connection
	channel  publisher
	exchange string
	now      func() time.Time
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewAMQPSender(amqpURL, exchange string) (*AMQPSender, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPSender{conn: conn, channel: channel, exchange: exchange, now: time.Now}, nil
}

func (s *AMQPSender) Name() string { return "amqp" }

func (s *AMQPSender) Send(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(Event{
		UserID:     n.UserID,
		Type:       n.Type,
		Title:      n.Title,
		Message:    n.Message,
		Attributes: n.Attributes,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}

	routingKey := "notification." + string(n.Type)
	logger.ExternalServiceCall("amqp", "Publish", "exchange", s.exchange, "routing_key", routingKey)
	err = s.channel.PublishWithContext(ctx, s.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    s.now(),
		Body:         body,
	})
	logger.ExternalServiceResult("amqp", "Publish", err, "routing_key", routingKey)
	return err
}

func (s *AMQPSender) Close() {
	if c, ok := s.channel.(*amqp.Channel); ok {
		c.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
