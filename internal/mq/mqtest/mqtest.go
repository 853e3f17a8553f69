// Package mqtest provides in-memory broker clients for tests.
package mqtest

import (
	"context"
	"sync"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// Consumer delivers whatever is sent on Messages and ends with whatever is
// sent on Errors. Close makes Consume return a CONN_CLOSED error.
type Consumer struct {
	Messages chan *mq.Message
	Errors   chan error

	ConnectErr   error
	SubscribeErr error

	mu         sync.Mutex
	Config     *mq.ConnectionConfig
	Request    *mq.ConsumeRequest
	closed     chan struct{}
	closeOnce  sync.Once
	CloseCalls int
}

func NewConsumer() *Consumer {
	return &Consumer{
		Messages: make(chan *mq.Message, 64),
		Errors:   make(chan error, 1),
		closed:   make(chan struct{}),
	}
}

func (c *Consumer) Connect(ctx context.Context, cfg *mq.ConnectionConfig) error {
	c.mu.Lock()
	c.Config = cfg
	c.mu.Unlock()
	return c.ConnectErr
}

func (c *Consumer) Subscribe(ctx context.Context, req *mq.ConsumeRequest) error {
	c.mu.Lock()
	c.Request = req
	c.mu.Unlock()
	return c.SubscribeErr
}

func (c *Consumer) Consume(ctx context.Context, handler mq.MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return mq.NewClosedError("consumer closed")
		case err := <-c.Errors:
			return err
		case m := <-c.Messages:
			if err := handler(m); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	c.CloseCalls++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close was called.
func (c *Consumer) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Producer records every produced request.
type Producer struct {
	ConnectErr error
	ProduceErr error

	mu       sync.Mutex
	Produced []mq.ProduceRequest
	Closed   bool
}

func (p *Producer) Connect(ctx context.Context, cfg *mq.ConnectionConfig) error {
	return p.ConnectErr
}

func (p *Producer) Produce(ctx context.Context, req *mq.ProduceRequest) error {
	if p.ProduceErr != nil {
		return p.ProduceErr
	}
	p.mu.Lock()
	p.Produced = append(p.Produced, *req)
	p.mu.Unlock()
	return nil
}

func (p *Producer) ProduceBatch(ctx context.Context, reqs []*mq.ProduceRequest) error {
	for _, req := range reqs {
		if err := p.Produce(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	p.Closed = true
	p.mu.Unlock()
	return nil
}

// Admin keeps topics in a map.
type Admin struct {
	ConnectErr error
	Result     *mq.TestResult
	Groups     []mq.ConsumerGroup

	mu     sync.Mutex
	Topics map[string]mq.TopicInfo
}

func (a *Admin) Connect(ctx context.Context, cfg *mq.ConnectionConfig) error {
	return a.ConnectErr
}

func (a *Admin) TestConnection(ctx context.Context) *mq.TestResult {
	if a.Result != nil {
		return a.Result
	}
	return &mq.TestResult{Success: true, Message: "ok"}
}

func (a *Admin) ListTopics(ctx context.Context) ([]mq.TopicInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []mq.TopicInfo{}
	for _, t := range a.Topics {
		out = append(out, t)
	}
	return out, nil
}

func (a *Admin) CreateTopic(ctx context.Context, topic string, partitions int32, replicas int16) error {
	if topic == "" {
		return mq.NewValidationError("topic name is required", "")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Topics == nil {
		a.Topics = map[string]mq.TopicInfo{}
	}
	a.Topics[topic] = mq.TopicInfo{Name: topic, Partitions: partitions, Replicas: replicas}
	return nil
}

func (a *Admin) DeleteTopic(ctx context.Context, topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.Topics[topic]; !ok {
		return mq.NewNotFoundError("topic", topic)
	}
	delete(a.Topics, topic)
	return nil
}

func (a *Admin) ListConsumerGroups(ctx context.Context) ([]mq.ConsumerGroup, error) {
	if a.Groups == nil {
		return []mq.ConsumerGroup{}, nil
	}
	return a.Groups, nil
}

func (a *Admin) Close() error { return nil }

// Factory hands out the configured fakes. Each NewConsumer call creates a
// fresh Consumer, recorded in Consumers.
type Factory struct {
	Producer *Producer
	Admin    *Admin
	// ConsumerErr, when set, is returned by the next consumer's Connect.
	ConsumerErr error

	mu        sync.Mutex
	Consumers []*Consumer
}

func NewFactory() *Factory {
	return &Factory{Producer: &Producer{}, Admin: &Admin{}}
}

func (f *Factory) NewProducer(t mq.BrokerType) (mq.Producer, error) {
	if err := check(t); err != nil {
		return nil, err
	}
	return f.Producer, nil
}

func (f *Factory) NewConsumer(t mq.BrokerType) (mq.Consumer, error) {
	if err := check(t); err != nil {
		return nil, err
	}
	c := NewConsumer()
	f.mu.Lock()
	c.ConnectErr = f.ConsumerErr
	f.Consumers = append(f.Consumers, c)
	f.mu.Unlock()
	return c, nil
}

func (f *Factory) NewAdmin(t mq.BrokerType) (mq.Admin, error) {
	if err := check(t); err != nil {
		return nil, err
	}
	return f.Admin, nil
}

// LastConsumer returns the most recently created consumer, or nil.
func (f *Factory) LastConsumer() *Consumer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Consumers) == 0 {
		return nil
	}
	return f.Consumers[len(f.Consumers)-1]
}

func check(t mq.BrokerType) error {
	if t != mq.BrokerKafka && t != mq.BrokerRabbitMQ {
		return mq.NewValidationError("unsupported broker type", string(t))
	}
	return nil
}
