package rabbitmq

import (
	"context"
	"strings"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/darkden-lab/mqscope/internal/mq"
)

func TestURI_DefaultVHostAndEscaping(t *testing.T) {
	cfg := &mq.ConnectionConfig{
		Type:     mq.BrokerRabbitMQ,
		Host:     "rabbit.local",
		Port:     5673,
		Username: "guest",
		Password: "p@ss",
	}
	got := uri(cfg)
	if !strings.HasPrefix(got, "amqp://") {
		t.Errorf("expected amqp scheme, got %s", got)
	}
	if !strings.Contains(got, "rabbit.local:5673") {
		t.Errorf("expected host and port in %s", got)
	}
	if strings.Contains(got, "p@ss@") {
		t.Errorf("expected password to be escaped in %s", got)
	}

	cfg.Extra = map[string]string{"tls": "true"}
	if got := uri(cfg); !strings.HasPrefix(got, "amqps://") {
		t.Errorf("expected amqps scheme with tls, got %s", got)
	}
}

func TestDial_RejectsWrongType(t *testing.T) {
	_, _, err := dial(&mq.ConnectionConfig{Type: mq.BrokerKafka})
	if !mq.IsType(err, mq.ErrorValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	_, _, err = dial(nil)
	if !mq.IsType(err, mq.ErrorValidation) {
		t.Errorf("expected validation error for nil config, got %v", err)
	}
}

func TestConfiguredQueues(t *testing.T) {
	cfg := &mq.ConnectionConfig{Extra: map[string]string{"queues": " orders, ,audit "}}
	got := configuredQueues(cfg)
	if len(got) != 2 || got[0] != "orders" || got[1] != "audit" {
		t.Errorf("unexpected queues: %v", got)
	}
	if got := configuredQueues(&mq.ConnectionConfig{}); len(got) != 0 {
		t.Errorf("expected no queues, got %v", got)
	}
}

func TestHeaderConversion(t *testing.T) {
	if headerTable(nil) != nil {
		t.Error("expected nil table for no headers")
	}
	table := headerTable(map[string]string{"trace": "abc"})
	if table["trace"] != "abc" {
		t.Errorf("unexpected table: %v", table)
	}
	m := headerMap(amqp.Table{"retries": int32(3), "trace": "abc"})
	if m["retries"] != "3" || m["trace"] != "abc" {
		t.Errorf("unexpected header map: %v", m)
	}
}

func TestToMessage(t *testing.T) {
	msg := toMessage("orders", amqp.Delivery{RoutingKey: "orders", Body: []byte("hello"), DeliveryTag: 7})
	if msg.Topic != "orders" || msg.Value != "hello" || msg.Offset != 7 || msg.ID == "" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestNotConnected(t *testing.T) {
	ctx := context.Background()
	c := NewConsumer()
	if err := c.Subscribe(ctx, &mq.ConsumeRequest{Topics: []string{"q"}}); !mq.IsType(err, mq.ErrorConnection) {
		t.Errorf("expected connection error, got %v", err)
	}
	if err := c.Consume(ctx, func(*mq.Message) error { return nil }); !mq.IsType(err, mq.ErrorConnection) {
		t.Errorf("expected connection error, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("close: %v", err)
	}

	p := NewProducer()
	if err := p.Produce(ctx, &mq.ProduceRequest{Topic: "q"}); !mq.IsType(err, mq.ErrorConnection) {
		t.Errorf("expected connection error, got %v", err)
	}

	a := NewAdmin()
	if res := a.TestConnection(ctx); res.Success {
		t.Error("expected failed probe")
	}
	groups, err := a.ListConsumerGroups(ctx)
	if err != nil || len(groups) != 0 {
		t.Errorf("expected empty groups, got %v, %v", groups, err)
	}
}
