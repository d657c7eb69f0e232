package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPoison marks a message that can never be handled, such as one that
// does not decode. Poison messages are acked and dropped.
var ErrPoison = errors.New("poison message")

// ConsumerSpec describes one consumer. An empty Queue declares a private,
// auto-deleted queue.
type ConsumerSpec struct {
	Name       string
	Queue      string
	BindingKey string
	Prefetch   int
	Consume    func(ctx context.Context, d amqp.Delivery) error
}

// JSONHandler decodes the body into T, turning decode failures into ErrPoison.
func JSONHandler[T any](h func(context.Context, T) error) func(context.Context, amqp.Delivery) error {
	return func(ctx context.Context, d amqp.Delivery) error {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrPoison, err)
		}
		return h(ctx, v)
	}
}

type disposition int

const (
	dispAck disposition = iota
	dispDrop
	dispRequeue
)

// dispose maps a handler result to what happens to the delivery.
func dispose(err error) disposition {
	switch {
	case err == nil:
		return dispAck
	case errors.Is(err, ErrPoison):
		return dispDrop
	default:
		return dispRequeue
	}
}

// Consume runs spec until ctx is done, reconnecting with jittered
// exponential backoff whenever the channel or connection drops.
func (c *Client) Consume(ctx context.Context, spec ConsumerSpec) error {
	backoff := c.config.ReconnectBase
	for {
		err := c.consumeOnce(ctx, spec)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := JitteredDelay(backoff, c.config.ReconnectCap, c.config.ReconnectJitterPercent)
		c.logger.Warn("consumer stopped, reconnecting", "name", spec.Name, "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if conn := c.connection(); conn == nil || conn.IsClosed() {
			if err := c.connect(ctx); err != nil {
				c.logger.Error("reconnect failed", "err", err)
				backoff = min(backoff*2, c.config.ReconnectCap)
				continue
			}
		}
		backoff = c.config.ReconnectBase
	}
}

func (c *Client) consumeOnce(ctx context.Context, spec ConsumerSpec) error {
	conn := c.connection()
	if conn == nil || conn.IsClosed() {
		return errors.New("broker connection closed")
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer SafeClose(ch)

	prefetch := spec.Prefetch
	if prefetch <= 0 {
		prefetch = c.config.ConsumerPrefetch
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	private := spec.Queue == ""
	q, err := ch.QueueDeclare(spec.Queue, !private, private, private, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, spec.BindingKey, c.config.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}

	msgs, err := ch.Consume(q.Name, "", false, private, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	c.logger.Info("consumer started", "name", spec.Name, "queue", q.Name, "binding", spec.BindingKey, "prefetch", prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case aerr := <-closed:
			if aerr == nil {
				return errors.New("channel closed")
			}
			return aerr
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			err := spec.Consume(ctx, d)
			switch dispose(err) {
			case dispAck:
				_ = d.Ack(false)
			case dispDrop:
				c.logger.Warn("dropping poison message", "name", spec.Name, "id", d.MessageId, "err", err)
				_ = d.Ack(false)
			case dispRequeue:
				c.logger.Warn("handler failed, requeueing", "name", spec.Name, "id", d.MessageId, "err", err)
				_ = d.Nack(false, !d.Redelivered)
			}
		}
	}
}

// JitteredDelay spreads base by up to jitterPct percent, capped at limit.
func JitteredDelay(base, limit time.Duration, jitterPct int) time.Duration {
	if jitterPct <= 0 {
		jitterPct = 25
	}
	delta := (rand.Float64()*2 - 1) * float64(jitterPct) / 100.0
	wait := time.Duration(float64(base) * (1 + delta))
	if wait < 0 {
		wait = base
	}
	if wait > limit {
		wait = limit
	}
	return wait
}

// FirstNonEmpty returns a unless it is empty.
func FirstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// SafeClose closes ch, tolerating a nil or already closed channel.
func SafeClose(ch *amqp.Channel) error {
	if ch == nil {
		return nil
	}
	defer func() { _ = recover() }()
	return ch.Close()
}
