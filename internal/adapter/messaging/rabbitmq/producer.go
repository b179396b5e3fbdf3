// Package rabbitmq publishes domain events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"fractional-bonds/internal/core/domain"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const dialTimeout = 10 * time.Second

// channel is the subset of *amqp.Channel the producer uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventProducer implements ports.EventPublisher over a single AMQP channel.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	reopen   func() (channel, error)
	exchange string
	log      zerolog.Logger
}

// NewEventProducer dials the broker and declares a durable topic exchange.
func NewEventProducer(amqpURL, exchange string, log zerolog.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	p := newProducer(ch, exchange, log)
	p.conn = conn
	p.reopen = func() (channel, error) { return conn.Channel() }
	if err := p.declare(); err != nil {
		p.Close()
		return nil, err
	}

	log.Info().Str("exchange", exchange).Msg("amqp producer ready")
	return p, nil
}

func newProducer(ch channel, exchange string, log zerolog.Logger) *EventProducer {
	return &EventProducer{ch: ch, exchange: exchange, log: log}
}

func (p *EventProducer) declare() error {
	if err := p.ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	return nil
}

// Publish sends payload as JSON with the event type as routing key. A failed
// publish reopens the channel once and retries.
func (p *EventProducer) Publish(ctx context.Context, eventType domain.EventType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         string(eventType),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, string(eventType), false, false, msg)
	if err == nil {
		return nil
	}
	if p.reopen == nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	p.log.Warn().Err(err).Str("routing_key", string(eventType)).Msg("publish failed; reopening channel")
	ch, chErr := p.reopen()
	if chErr != nil {
		return fmt.Errorf("publish %s: %w", eventType, errors.Join(err, chErr))
	}
	_ = p.ch.Close()
	p.ch = ch
	if err := p.declare(); err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, string(eventType), false, false, msg); err != nil {
		return fmt.Errorf("publish %s after reopen: %w", eventType, err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct {
	log zerolog.Logger
}

func NewNoopPublisher(log zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{log: log}
}

func (p *NoopPublisher) Publish(_ context.Context, eventType domain.EventType, _ any) error {
	p.log.Debug().Str("routing_key", string(eventType)).Msg("publish skipped: no broker configured")
	return nil
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
