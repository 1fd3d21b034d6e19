package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"healthflow/internal/config"
	"healthflow/internal/constants"
	"healthflow/internal/logger"
	apperrors "healthflow/pkg/errors"
	"healthflow/pkg/retry"
	"healthflow/pkg/tracing"
)

// Client owns one long-lived AMQP connection shared by the publisher and
// consumer roles. The two roles use independent channels; the publish channel
// is additionally mutex-guarded because worker goroutines share it.
type Client struct {
	cfg    config.RabbitMQConfig
	logger logger.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	closed bool
}

func NewClient(cfg config.RabbitMQConfig, log logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: log,
	}
}

// Connect dials the broker and opens the publish channel. It is an explicit
// initialization step; constructing a Client does no I/O.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.closed {
		return apperrors.ErrTransport.WithDetail("reason", "client closed")
	}

	conn, err := amqp.Dial(c.url())
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransport)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return apperrors.Wrap(err, apperrors.ErrTransport)
	}

	c.conn = conn
	c.pubCh = pubCh

	c.logger.InfowCtx(ctx, "Broker connected",
		"host", c.cfg.Host,
		"port", c.cfg.Port,
	)
	return nil
}

func (c *Client) url() string {
	vhost := c.cfg.VHost
	if vhost == "" {
		vhost = "/"
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.cfg.User, c.cfg.Password, c.cfg.Host, c.cfg.Port, vhost)
}

func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.conn.IsClosed() && !c.closed
}

// DeclareTopology declares the exchanges, queues and bindings the pipeline
// uses. Declarations are idempotent and run on every startup.
func (c *Client) DeclareTopology(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		return apperrors.ErrTransport.WithDetail("reason", "connection not open")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransport)
	}
	defer ch.Close()

	return declareTopology(ch)
}

// TopologyDeclarer is the subset of amqp.Channel the declaration needs.
type TopologyDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

func declareTopology(ch TopologyDeclarer) error {
	exchanges := []string{constants.PatientEventsExchange, constants.AnalyticsEventsExchange}
	for _, exchange := range exchanges {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return apperrors.Wrap(err, apperrors.ErrTransport).WithDetail("exchange", exchange)
		}
	}

	bindings := []struct {
		queue    string
		exchange string
		key      string
	}{
		{constants.PatientProcessingQueue, constants.PatientEventsExchange, constants.PatientBindingKey},
		{constants.AnalyticsProcessingQueue, constants.AnalyticsEventsExchange, constants.AnalyticsBindingKey},
	}

	for _, b := range bindings {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return apperrors.Wrap(err, apperrors.ErrTransport).WithDetail("queue", b.queue)
		}
		if err := ch.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return apperrors.Wrap(err, apperrors.ErrTransport).WithDetail("queue", b.queue)
		}
	}

	return nil
}

// Publish sends one event. It fails fast with a transport error when the
// connection is not open; publishing on a dead connection is never retried
// here, the caller decides what a failed publish means.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDeserialization)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() || c.closed {
		return apperrors.ErrTransport.WithDetail("reason", "publish on closed connection")
	}

	headers := tracing.InjectTraceContext(ctx, amqp.Table{})

	pubCtx, cancel := context.WithTimeout(ctx, constants.DefaultPublishTimeout)
	defer cancel()

	err = c.pubCh.PublishWithContext(pubCtx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransport).
			WithDetail("exchange", exchange).
			WithDetail("routing_key", routingKey)
	}

	c.logger.DebugwCtx(ctx, "Event published",
		"exchange", exchange,
		"routing_key", routingKey,
	)
	return nil
}

// Subscribe consumes the queue with manual acknowledgement and the configured
// prefetch window. It blocks until ctx is cancelled, reconnecting with
// backoff whenever the broker drops the connection; unacked deliveries in
// flight at that point are redelivered by the broker.
func (c *Client) Subscribe(ctx context.Context, queue string, prefetch int, handler HandlerFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.ensureConnected(ctx); err != nil {
			return err
		}

		if err := c.consumeOnce(ctx, queue, prefetch, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.ErrorwCtx(ctx, "Subscription lost, reconnecting",
				"queue", queue,
				"error", err,
			)
		}
	}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if c.IsOpen() {
		return nil
	}

	initial := c.cfg.ReconnectInitialInterval
	if initial <= 0 {
		initial = constants.DefaultReconnectInitial
	}
	max := c.cfg.ReconnectMaxInterval
	if max <= 0 {
		max = constants.DefaultReconnectMax
	}

	return retry.RetryForever(ctx, initial, max, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn != nil && !c.conn.IsClosed() {
			return nil
		}
		return c.connectLocked(ctx)
	}, func(err error, nextDelay time.Duration) {
		c.logger.WarnwCtx(ctx, "Broker reconnect failed, retrying",
			"error", err,
			"next_delay", nextDelay,
		)
	})
}

func (c *Client) consumeOnce(ctx context.Context, queue string, prefetch int, handler HandlerFunc) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransport)
	}
	defer ch.Close()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransport)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransport)
	}

	c.logger.InfowCtx(ctx, "Consuming queue",
		"queue", queue,
		"prefetch", prefetch,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return apperrors.ErrTransport.WithDetail("reason", "delivery channel closed")
			}
			handler(ctx, Delivery{
				Body:    d.Body,
				Headers: map[string]interface{}(d.Headers),
				Ack:     &deliveryAck{ch: ch, tag: d.DeliveryTag},
			})
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	var err error
	if c.pubCh != nil {
		err = c.pubCh.Close()
	}
	if c.conn != nil {
		if closeErr := c.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

type deliveryAck struct {
	ch  *amqp.Channel
	tag uint64
}

func (a *deliveryAck) Ack() error {
	return a.ch.Ack(a.tag, false)
}

func (a *deliveryAck) Nack(requeue bool) error {
	return a.ch.Nack(a.tag, false, requeue)
}
