// Package factory builds broker clients by broker type.
package factory

import (
	"github.com/darkden-lab/mqscope/internal/mq"
	"github.com/darkden-lab/mqscope/internal/mq/kafka"
	"github.com/darkden-lab/mqscope/internal/mq/rabbitmq"
)

type factory struct{}

// New returns the Factory for every supported broker.
func New() mq.Factory {
	return factory{}
}

func (factory) NewProducer(t mq.BrokerType) (mq.Producer, error) {
	switch t {
	case mq.BrokerKafka:
		return kafka.NewProducer(), nil
	case mq.BrokerRabbitMQ:
		return rabbitmq.NewProducer(), nil
	}
	return nil, unsupported(t)
}

func (factory) NewConsumer(t mq.BrokerType) (mq.Consumer, error) {
	switch t {
	case mq.BrokerKafka:
		return kafka.NewConsumer(), nil
	case mq.BrokerRabbitMQ:
		return rabbitmq.NewConsumer(), nil
	}
	return nil, unsupported(t)
}

func (factory) NewAdmin(t mq.BrokerType) (mq.Admin, error) {
	switch t {
	case mq.BrokerKafka:
		return kafka.NewAdmin(), nil
	case mq.BrokerRabbitMQ:
		return rabbitmq.NewAdmin(), nil
	}
	return nil, unsupported(t)
}

func unsupported(t mq.BrokerType) error {
	return mq.NewValidationError("unsupported broker type", string(t))
}
