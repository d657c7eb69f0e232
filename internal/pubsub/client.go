package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/marcus/wsmenu/internal/events"
)

// Client owns one AMQP connection and a publishing channel.
type Client struct {
	config Config
	logger *slog.Logger

	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel
}

// Dial connects and declares the exchange.
func Dial(ctx context.Context, config Config, logger *slog.Logger) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{config: config.withDefaults(), logger: logger.With("component", "pubsub")}

	host := ""
	if u, err := url.Parse(config.URL); err == nil {
		host = u.Host
	}
	c.logger.Info("connecting to broker", "host", host)

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// connect replaces the connection. Callers must not hold mu.
func (c *Client) connect(ctx context.Context) error {
	timeout := c.config.DialTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return fmt.Errorf("dial broker: %w", context.DeadlineExceeded)
	}

	conn, err := amqp.DialConfig(c.config.URL, amqp.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			return net.DialTimeout(network, addr, timeout)
		},
	})
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(c.config.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", c.config.Exchange, err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn, c.pubCh = conn, ch
	c.mu.Unlock()
	if old != nil && !old.IsClosed() {
		old.Close()
	}
	return nil
}

func (c *Client) connection() *amqp.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

// metaCarrier is implemented by event envelopes.
type metaCarrier interface {
	EventMeta() events.Meta
}

// Publish sends v as JSON under routingKey. Envelopes lend their id, type
// and time to the AMQP properties.
func (c *Client) Publish(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		AppId:        c.config.Producer,
	}
	if mc, ok := v.(metaCarrier); ok {
		meta := mc.EventMeta()
		msg.MessageId = meta.ID
		msg.CorrelationId = FirstNonEmpty(meta.CorrelationID, meta.ID)
		msg.Type = string(meta.Type)
		if !meta.Time.IsZero() {
			msg.Timestamp = meta.Time
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pubCh == nil || c.pubCh.IsClosed() {
		if c.conn == nil || c.conn.IsClosed() {
			return errors.New("publish: broker connection closed")
		}
		ch, err := c.conn.Channel()
		if err != nil {
			return fmt.Errorf("reopen channel: %w", err)
		}
		c.pubCh = ch
	}
	if err := c.pubCh.PublishWithContext(ctx, c.config.Exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}
