package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// Producer writes messages with a shared kafka-go Writer. Requests pinned to
// an explicit partition go through a leader connection instead, since the
// Writer always picks partitions through its balancer.
type Producer struct {
	cfg    *mq.ConnectionConfig
	mu     sync.Mutex
	writer *kafka.Writer
}

func NewProducer() *Producer {
	return &Producer{}
}

func (p *Producer) Connect(ctx context.Context, cfg *mq.ConnectionConfig) error {
	if err := checkType(cfg); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokerAddrs(cfg)...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: cfg.Extra["auto_create_topics"] == "true",
	}
	return nil
}

func (p *Producer) Produce(ctx context.Context, req *mq.ProduceRequest) error {
	return p.ProduceBatch(ctx, []*mq.ProduceRequest{req})
}

func (p *Producer) ProduceBatch(ctx context.Context, reqs []*mq.ProduceRequest) error {
	p.mu.Lock()
	writer := p.writer
	p.mu.Unlock()
	if writer == nil {
		return mq.NewConnectionError("producer not connected", nil)
	}

	var balanced []kafka.Message
	for _, req := range reqs {
		if req.Topic == "" {
			return mq.NewValidationError("topic is required", "")
		}
		if req.Partition != nil {
			if err := p.writePartition(ctx, req); err != nil {
				return err
			}
			continue
		}
		balanced = append(balanced, toKafkaMessage(req))
	}
	if len(balanced) == 0 {
		return nil
	}
	if err := writer.WriteMessages(ctx, balanced...); err != nil {
		return mq.NewNetworkError("failed to write messages", err)
	}
	return nil
}

func (p *Producer) writePartition(ctx context.Context, req *mq.ProduceRequest) error {
	conn, err := kafka.DialLeader(ctx, "tcp", brokerAddrs(p.cfg)[0], req.Topic, int(*req.Partition))
	if err != nil {
		return mq.NewConnectionError("failed to dial partition leader", err)
	}
	defer conn.Close()

	m := toKafkaMessage(req)
	m.Topic = "" // a leader connection is already bound to the topic
	if _, err := conn.WriteMessages(m); err != nil {
		return mq.NewNetworkError("failed to write message", err)
	}
	return nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

func toKafkaMessage(req *mq.ProduceRequest) kafka.Message {
	m := kafka.Message{
		Topic: req.Topic,
		Value: []byte(req.Value),
	}
	if req.Key != "" {
		m.Key = []byte(req.Key)
	}
	for k, v := range req.Headers {
		m.Headers = append(m.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return m
}
