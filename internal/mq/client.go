package mq

import "context"

// MessageHandler is called for every consumed message. Returning an error
// ends the Consume loop with that error.
type MessageHandler func(msg *Message) error

// Producer publishes messages to a broker.
type Producer interface {
	Connect(ctx context.Context, cfg *ConnectionConfig) error
	Produce(ctx context.Context, req *ProduceRequest) error
	ProduceBatch(ctx context.Context, reqs []*ProduceRequest) error
	Close() error
}

// Consumer reads messages from a broker. Consume blocks until ctx is
// cancelled, the consumer is closed, or a read fails.
type Consumer interface {
	Connect(ctx context.Context, cfg *ConnectionConfig) error
	Subscribe(ctx context.Context, req *ConsumeRequest) error
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}

// Admin manages topics (queues for RabbitMQ) and consumer groups.
type Admin interface {
	Connect(ctx context.Context, cfg *ConnectionConfig) error
	TestConnection(ctx context.Context) *TestResult
	ListTopics(ctx context.Context) ([]TopicInfo, error)
	CreateTopic(ctx context.Context, topic string, partitions int32, replicas int16) error
	DeleteTopic(ctx context.Context, topic string) error
	ListConsumerGroups(ctx context.Context) ([]ConsumerGroup, error)
	Close() error
}

// Factory builds broker clients for a broker type.
type Factory interface {
	NewProducer(t BrokerType) (Producer, error)
	NewConsumer(t BrokerType) (Consumer, error)
	NewAdmin(t BrokerType) (Admin, error)
}
