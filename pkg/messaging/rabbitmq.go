package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cscportal/portal-backend/pkg/config"
	"github.com/cscportal/portal-backend/pkg/logger"
)

// RabbitMQ manages the connection to RabbitMQ
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	logger  *logger.Logger
	mu      sync.RWMutex
	closed  bool
}

// New creates a new RabbitMQ connection and starts watching it for drops
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	rmq := &RabbitMQ{
		config: cfg,
		logger: log.WithComponent("rabbitmq"),
	}

	if err := rmq.connect(); err != nil {
		return nil, err
	}

	go rmq.watch()

	return rmq, nil
}

func (r *RabbitMQ) connect() error {
	conn, channel, err := r.dial()
	if err != nil {
		return err
	}

	r.conn = conn
	r.channel = channel

	r.logger.Info().Msg("connected to RabbitMQ")
	return nil
}

// dial opens a connection and channel without touching r's state.
func (r *RabbitMQ) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return conn, channel, nil
}

// watch reconnects when the broker drops the connection.
func (r *RabbitMQ) watch() {
	for {
		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()

		closeErr, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))

		r.mu.RLock()
		closed := r.closed
		r.mu.RUnlock()
		if closed || !ok {
			return
		}

		r.logger.Warn().Interface("reason", closeErr).Msg("RabbitMQ connection lost")
		if err := r.Reconnect(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("giving up on RabbitMQ")
			return
		}
	}
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close closes the RabbitMQ connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health returns the health status of RabbitMQ
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := map[string]string{
		"status": "up",
	}

	if r.conn == nil || r.conn.IsClosed() {
		status["status"] = "down"
		status["error"] = "connection closed"
	}

	return status
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
}

// Reconnect attempts to reconnect to RabbitMQ. Dialing and the delay
// between attempts happen without the lock, so Channel and Health keep
// answering with the stale connection until the new one is swapped in.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	if r.isClosed() {
		return errPermanentlyClosed
	}

	for i := 0; i < r.config.MaxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.logger.Info().Int("attempt", i+1).Msg("attempting to reconnect to RabbitMQ")

		conn, channel, err := r.dial()
		if err != nil {
			r.logger.Warn().Err(err).Msg("reconnection attempt failed")
			if err := sleep(ctx, r.config.ReconnectDelay); err != nil {
				return err
			}
			continue
		}

		return r.swap(conn, channel)
	}

	return fmt.Errorf("failed to reconnect after %d attempts", r.config.MaxRetries)
}

var errPermanentlyClosed = errors.New("connection is permanently closed")

func (r *RabbitMQ) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// swap installs a freshly dialed connection and closes the one it replaces.
// A Close that ran while dialing wins.
func (r *RabbitMQ) swap(conn *amqp.Connection, channel *amqp.Channel) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return errPermanentlyClosed
	}
	oldConn := r.conn
	r.conn = conn
	r.channel = channel
	r.mu.Unlock()

	if oldConn != nil && !oldConn.IsClosed() {
		_ = oldConn.Close()
	}

	r.logger.Info().Msg("reconnected to RabbitMQ")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
