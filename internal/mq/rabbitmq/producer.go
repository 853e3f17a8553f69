package rabbitmq

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// Producer publishes to Extra["exchange"] (the default exchange when unset)
// with the request topic as routing key.
type Producer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewProducer() *Producer {
	return &Producer{}
}

func (p *Producer) Connect(ctx context.Context, cfg *mq.ConnectionConfig) error {
	conn, ch, err := dial(cfg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn, p.ch = conn, ch
	p.exchange = cfg.Extra["exchange"]
	return nil
}

func (p *Producer) Produce(ctx context.Context, req *mq.ProduceRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publish(ctx, req)
}

func (p *Producer) ProduceBatch(ctx context.Context, reqs []*mq.ProduceRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, req := range reqs {
		if err := p.publish(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (p *Producer) publish(ctx context.Context, req *mq.ProduceRequest) error {
	if p.ch == nil {
		return mq.NewConnectionError("producer not connected", nil)
	}
	if req.Topic == "" {
		return mq.NewValidationError("topic is required", "")
	}
	// Publishing to the default exchange routes by queue name, so the queue
	// has to exist first.
	if p.exchange == "" {
		if _, err := p.ch.QueueDeclare(req.Topic, true, false, false, false, nil); err != nil {
			return mq.NewSubscriptionError("failed to declare queue "+req.Topic, err)
		}
	}
	msg := amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    req.Key,
		Headers:      headerTable(req.Headers),
		Body:         []byte(req.Value),
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, req.Topic, false, false, msg); err != nil {
		return mq.NewNetworkError("failed to publish message", err)
	}
	return nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	if p.ch != nil {
		firstErr = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.conn = nil
	}
	return firstErr
}
