package factory

import (
	"testing"

	"github.com/darkden-lab/mqscope/internal/mq"
	"github.com/darkden-lab/mqscope/internal/mq/kafka"
	"github.com/darkden-lab/mqscope/internal/mq/rabbitmq"
)

func TestFactory_KnownTypes(t *testing.T) {
	f := New()

	c, err := f.NewConsumer(mq.BrokerKafka)
	if err != nil {
		t.Fatalf("kafka consumer: %v", err)
	}
	if _, ok := c.(*kafka.Consumer); !ok {
		t.Errorf("expected *kafka.Consumer, got %T", c)
	}

	p, err := f.NewProducer(mq.BrokerRabbitMQ)
	if err != nil {
		t.Fatalf("rabbitmq producer: %v", err)
	}
	if _, ok := p.(*rabbitmq.Producer); !ok {
		t.Errorf("expected *rabbitmq.Producer, got %T", p)
	}

	a, err := f.NewAdmin(mq.BrokerKafka)
	if err != nil {
		t.Fatalf("kafka admin: %v", err)
	}
	if _, ok := a.(*kafka.Admin); !ok {
		t.Errorf("expected *kafka.Admin, got %T", a)
	}
}

func TestFactory_UnsupportedType(t *testing.T) {
	f := New()
	if _, err := f.NewConsumer("rocketmq"); !mq.IsType(err, mq.ErrorValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := f.NewProducer(""); err == nil {
		t.Error("expected error for empty type")
	}
	if _, err := f.NewAdmin("pulsar"); err == nil {
		t.Error("expected error for unknown type")
	}
}
