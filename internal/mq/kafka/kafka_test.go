package kafka

import (
	"context"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/darkden-lab/mqscope/internal/mq"
)

func kafkaConfig() *mq.ConnectionConfig {
	return &mq.ConnectionConfig{
		ID:    "c1",
		Type:  mq.BrokerKafka,
		Host:  "localhost",
		Port:  9092,
		Extra: map[string]string{},
	}
}

func TestBrokerAddrs_IncludesExtraBrokers(t *testing.T) {
	cfg := kafkaConfig()
	cfg.Extra["brokers"] = "kafka-2:9092, kafka-3:9092,,localhost:9092"

	got := brokerAddrs(cfg)
	want := []string{"localhost:9092", "kafka-2:9092", "kafka-3:9092"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("addr %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestExtraInt(t *testing.T) {
	cfg := kafkaConfig()
	cfg.Extra["max_bytes"] = "2048"
	cfg.Extra["min_bytes"] = "-1"
	cfg.Extra["bad"] = "abc"

	if got := extraInt(cfg, "max_bytes", 1); got != 2048 {
		t.Errorf("expected 2048, got %d", got)
	}
	if got := extraInt(cfg, "min_bytes", 7); got != 7 {
		t.Errorf("expected fallback for negative value, got %d", got)
	}
	if got := extraInt(cfg, "bad", 7); got != 7 {
		t.Errorf("expected fallback for invalid value, got %d", got)
	}
	if got := extraInt(cfg, "missing", 9); got != 9 {
		t.Errorf("expected fallback for missing key, got %d", got)
	}
}

func TestConnect_RejectsWrongType(t *testing.T) {
	cfg := kafkaConfig()
	cfg.Type = mq.BrokerRabbitMQ

	if err := NewConsumer().Connect(context.Background(), cfg); !mq.IsType(err, mq.ErrorValidation) {
		t.Errorf("expected validation error from consumer, got %v", err)
	}
	if err := NewProducer().Connect(context.Background(), cfg); !mq.IsType(err, mq.ErrorValidation) {
		t.Errorf("expected validation error from producer, got %v", err)
	}
	if err := NewAdmin().Connect(context.Background(), cfg); !mq.IsType(err, mq.ErrorValidation) {
		t.Errorf("expected validation error from admin, got %v", err)
	}
}

func TestConsumer_SubscribeRequiresConnectAndTopics(t *testing.T) {
	c := NewConsumer()
	err := c.Subscribe(context.Background(), &mq.ConsumeRequest{Topics: []string{"orders"}})
	if !mq.IsType(err, mq.ErrorConnection) {
		t.Errorf("expected connection error before Connect, got %v", err)
	}

	if err := c.Connect(context.Background(), kafkaConfig()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	err = c.Subscribe(context.Background(), &mq.ConsumeRequest{})
	if !mq.IsType(err, mq.ErrorValidation) {
		t.Errorf("expected validation error for empty topics, got %v", err)
	}
}

func TestConsumer_ConsumeWithoutSubscribe(t *testing.T) {
	c := NewConsumer()
	err := c.Consume(context.Background(), func(*mq.Message) error { return nil })
	if err == nil {
		t.Fatal("expected error consuming without a reader")
	}
	if !strings.Contains(err.Error(), "CONN_001") {
		t.Errorf("expected CONN_001 code, got %q", err.Error())
	}
}

func TestConsumer_DoubleCloseIsNoop(t *testing.T) {
	c := NewConsumer()
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := c.Connect(context.Background(), kafkaConfig()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	err := c.Subscribe(context.Background(), &mq.ConsumeRequest{Topics: []string{"orders"}})
	if err == nil || !strings.Contains(err.Error(), "CONN_CLOSED") {
		t.Errorf("expected CONN_CLOSED after close, got %v", err)
	}
}

func TestProducer_NotConnected(t *testing.T) {
	p := NewProducer()
	err := p.Produce(context.Background(), &mq.ProduceRequest{Topic: "orders", Value: "x"})
	if !mq.IsType(err, mq.ErrorConnection) {
		t.Errorf("expected connection error, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("close of unconnected producer: %v", err)
	}
}

func TestProducer_RequiresTopic(t *testing.T) {
	p := NewProducer()
	if err := p.Connect(context.Background(), kafkaConfig()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Close()

	err := p.Produce(context.Background(), &mq.ProduceRequest{Value: "x"})
	if !mq.IsType(err, mq.ErrorValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestToKafkaMessage(t *testing.T) {
	m := toKafkaMessage(&mq.ProduceRequest{
		Topic:   "orders",
		Key:     "k1",
		Value:   `{"id":1}`,
		Headers: map[string]string{"trace": "abc"},
	})
	if m.Topic != "orders" || string(m.Key) != "k1" || string(m.Value) != `{"id":1}` {
		t.Errorf("unexpected message: %+v", m)
	}
	if len(m.Headers) != 1 || m.Headers[0].Key != "trace" || string(m.Headers[0].Value) != "abc" {
		t.Errorf("unexpected headers: %+v", m.Headers)
	}

	empty := toKafkaMessage(&mq.ProduceRequest{Topic: "orders"})
	if empty.Key != nil {
		t.Error("expected nil key for empty request key")
	}
}

func TestToMessage(t *testing.T) {
	msg := toMessage(kafka.Message{
		Topic:     "orders",
		Partition: 2,
		Offset:    42,
		Key:       []byte("k"),
		Value:     []byte("v"),
		Headers:   []kafka.Header{{Key: "h", Value: []byte("1")}},
	})
	if msg.ID == "" {
		t.Error("expected generated id")
	}
	if msg.Partition != 2 || msg.Offset != 42 || msg.Key != "k" || msg.Value != "v" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Headers["h"] != "1" {
		t.Errorf("expected header h=1, got %v", msg.Headers)
	}
}

func TestTopicsFromPartitions(t *testing.T) {
	parts := []kafka.Partition{
		{Topic: "orders", ID: 0, Replicas: []kafka.Broker{{ID: 1}, {ID: 2}}},
		{Topic: "orders", ID: 2, Replicas: []kafka.Broker{{ID: 1}, {ID: 2}}},
		{Topic: "audit", ID: 0, Replicas: []kafka.Broker{{ID: 1}}},
	}
	topics := topicsFromPartitions(parts)
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	if topics[0].Name != "audit" || topics[1].Name != "orders" {
		t.Errorf("expected sorted topics, got %+v", topics)
	}
	if topics[1].Partitions != 3 || topics[1].Replicas != 2 {
		t.Errorf("unexpected orders info: %+v", topics[1])
	}
}

func TestAdmin_NotConnected(t *testing.T) {
	a := NewAdmin()
	if res := a.TestConnection(context.Background()); res.Success {
		t.Error("expected failed test result")
	}
	if _, err := a.ListTopics(context.Background()); err == nil {
		t.Error("expected error listing topics")
	}
	if err := a.CreateTopic(context.Background(), "", 1, 1); !mq.IsType(err, mq.ErrorValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := a.ListConsumerGroups(context.Background()); err == nil {
		t.Error("expected error listing groups")
	}
}
