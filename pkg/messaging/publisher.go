package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cscportal/portal-backend/pkg/logger"
)

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Publisher handles publishing events to RabbitMQ
type Publisher struct {
	rmq      *RabbitMQ
	exchange string
	source   string
	logger   *logger.Logger
	// amqp channels are not safe for concurrent publishes
	mu sync.Mutex
}

// NewPublisher creates a new publisher for the given exchange
func NewPublisher(rmq *RabbitMQ, exchange, source string, log *logger.Logger) (*Publisher, error) {
	if err := rmq.DeclareExchange(exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		rmq:      rmq,
		exchange: exchange,
		source:   source,
		logger:   log,
	}, nil
}

// Publish publishes an event to the exchange using eventType as routing key
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	correlationID := getCorrelationID(ctx)

	event, err := NewEvent(eventType, p.source, correlationID, data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := p.rmq.Channel()
	if channel == nil {
		return fmt.Errorf("failed to publish event: %w", amqp.ErrClosed)
	}

	p.mu.Lock()
	err = channel.PublishWithContext(ctx,
		p.exchange, // exchange
		eventType,  // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     event.ID,
			CorrelationId: correlationID,
			Timestamp:     event.Timestamp,
			Type:          eventType,
			Body:          body,
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("correlation_id", correlationID).
		Msg("event published")

	return nil
}

// NopPublisher drops events. Used when the broker is disabled.
type NopPublisher struct {
	logger *logger.Logger
}

// NewNopPublisher creates a publisher that only logs at debug level
func NewNopPublisher(log *logger.Logger) *NopPublisher {
	return &NopPublisher{logger: log}
}

func (p *NopPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	if p.logger != nil {
		p.logger.Debug().Str("event_type", eventType).Msg("event dropped, broker disabled")
	}
	return nil
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

func getCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
