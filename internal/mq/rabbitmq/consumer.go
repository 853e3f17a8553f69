package rabbitmq

import (
	"context"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// Consumer consumes from one or more queues. Topics in a ConsumeRequest are
// queue names.
type Consumer struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	ch         *amqp.Channel
	queues     []string
	autoAck    bool
	closed     bool
	connClosed chan *amqp.Error
}

func NewConsumer() *Consumer {
	return &Consumer{}
}

func (c *Consumer) Connect(ctx context.Context, cfg *mq.ConnectionConfig) error {
	conn, ch, err := dial(cfg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn, c.ch = conn, ch
	c.connClosed = conn.NotifyClose(make(chan *amqp.Error, 1))
	return nil
}

// Subscribe declares each queue as durable so consuming a queue that does
// not exist yet creates it.
func (c *Consumer) Subscribe(ctx context.Context, req *mq.ConsumeRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return mq.NewConnectionError("consumer not connected", nil)
	}
	if len(req.Topics) == 0 {
		return mq.NewValidationError("no queues specified for subscription", "")
	}
	for _, q := range req.Topics {
		if _, err := c.ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return mq.NewSubscriptionError("failed to declare queue "+q, err)
		}
	}
	if err := c.ch.Qos(1, 0, false); err != nil {
		return mq.NewSubscriptionError("failed to set qos", err)
	}
	c.queues = append([]string(nil), req.Topics...)
	c.autoAck = req.AutoCommit
	return nil
}

// Consume fans in deliveries from all subscribed queues. Handler failures
// nack and requeue the delivery.
func (c *Consumer) Consume(ctx context.Context, handler mq.MessageHandler) error {
	c.mu.Lock()
	ch, queues, autoAck, connClosed := c.ch, c.queues, c.autoAck, c.connClosed
	c.mu.Unlock()
	if ch == nil || len(queues) == 0 {
		return mq.NewConnectionError("consumer not subscribed, call Subscribe first", nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		result  error
	)
	fail := func(err error) {
		errOnce.Do(func() { result = err })
		cancel()
	}

	// Deliveries from several queues arrive on separate goroutines; the
	// handler is serialized so callers see one message at a time.
	var handlerMu sync.Mutex

	for _, q := range queues {
		deliveries, err := ch.Consume(q, "", autoAck, false, false, false, nil)
		if err != nil {
			fail(mq.NewSubscriptionError("failed to consume queue "+q, err))
			break
		}
		wg.Add(1)
		go func(queue string, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						fail(c.closeReason(connClosed))
						return
					}
					handlerMu.Lock()
					err := handler(toMessage(queue, d))
					handlerMu.Unlock()
					if autoAck {
						if err != nil {
							fail(err)
							return
						}
						continue
					}
					if err != nil {
						d.Nack(false, true) //nolint:errcheck
						fail(err)
						return
					}
					d.Ack(false) //nolint:errcheck
				}
			}
		}(q, deliveries)
	}

	wg.Wait()
	if result != nil {
		return result
	}
	return ctx.Err()
}

// closeReason explains why a delivery channel closed: our own Close, or the
// broker dropping the connection.
func (c *Consumer) closeReason(connClosed <-chan *amqp.Error) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return mq.NewClosedError("consumer closed while reading")
	}
	select {
	case amqpErr := <-connClosed:
		if amqpErr != nil {
			return mq.NewNetworkError("connection lost", amqpErr)
		}
	default:
	}
	return mq.NewNetworkError("delivery channel closed by broker", nil)
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var firstErr error
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func toMessage(queue string, d amqp.Delivery) *mq.Message {
	return &mq.Message{
		ID:        uuid.New().String(),
		Topic:     queue,
		Key:       d.RoutingKey,
		Value:     string(d.Body),
		Headers:   headerMap(d.Headers),
		Offset:    int64(d.DeliveryTag),
		Timestamp: d.Timestamp,
	}
}
