package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Config holds the connection settings for the event publisher.
type Config struct {
	URL      string
	Exchange string
}

// Publisher publishes settlement events to a topic exchange.
// It re-dials in the background when the connection drops.
type Publisher struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *amqp091.Connection
	ch     *amqp091.Channel
	closed atomic.Bool
}

// NewPublisher dials RabbitMQ, declares the exchange and starts the reconnect loop.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{cfg: cfg, logger: logger}

	connClose, err := p.connect()
	if err != nil {
		return nil, err
	}

	go p.reconnect(connClose)
	return p, nil
}

func (p *Publisher) connect() (chan *amqp091.Error, error) {
	conn, err := amqp091.Dial(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.cfg.Exchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", p.cfg.Exchange, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.ch = ch
	p.mu.Unlock()

	connClose := make(chan *amqp091.Error, 1)
	conn.NotifyClose(connClose)
	return connClose, nil
}

func (p *Publisher) reconnect(connClose chan *amqp091.Error) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		amqpErr := <-connClose
		if p.closed.Load() {
			return
		}
		p.logger.Warn("rabbitmq connection lost", "error", amqpErr)

		for {
			if p.closed.Load() {
				return
			}
			next, err := p.connect()
			if err == nil {
				p.logger.Info("reconnected to rabbitmq")
				connClose = next
				backoff = time.Second
				break
			}
			p.logger.Warn("rabbitmq reconnect failed", "error", err, "retry_in", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// Publish sends a JSON body with the given routing key.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.RLock()
	ch := p.ch
	p.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("publish %s: channel not available", routingKey)
	}

	err := ch.PublishWithContext(ctx,
		p.cfg.Exchange, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Close stops the reconnect loop and closes the connection.
func (p *Publisher) Close() error {
	p.closed.Store(true)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
