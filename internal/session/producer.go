package session

import (
	"context"
	"log"
	"time"

	"github.com/darkden-lab/mqscope/internal/history"
	"github.com/darkden-lab/mqscope/internal/mq"
)

// ProduceResult reports how many messages were published and how long it
// took.
type ProduceResult struct {
	Count     int   `json:"count"`
	LatencyMs int64 `json:"latency_ms"`
}

// Producer publishes messages on a short-lived broker client and records
// each attempt in history.
type Producer struct {
	factory mq.Factory
	conns   ConnectionResolver
	history *history.Store
}

func NewProducer(factory mq.Factory, conns ConnectionResolver, hist *history.Store) *Producer {
	return &Producer{factory: factory, conns: conns, history: hist}
}

func (p *Producer) Produce(ctx context.Context, req *mq.ProduceRequest) (*ProduceResult, error) {
	return p.ProduceBatch(ctx, []*mq.ProduceRequest{req})
}

// ProduceBatch publishes reqs in order through one client. All requests must
// target the same connection.
func (p *Producer) ProduceBatch(ctx context.Context, reqs []*mq.ProduceRequest) (*ProduceResult, error) {
	if len(reqs) == 0 {
		return nil, mq.NewValidationError("no messages to produce", "")
	}
	for _, req := range reqs {
		if req == nil {
			return nil, mq.NewValidationError("empty message in batch", "")
		}
	}
	connID := reqs[0].ConnectionID
	for _, req := range reqs {
		if req.ConnectionID != connID {
			return nil, mq.NewValidationError("batch spans several connections", req.ConnectionID)
		}
		if req.Topic == "" {
			return nil, mq.NewValidationError("topic is required", "")
		}
	}

	cfg, err := p.conns.Get(ctx, connID)
	if err != nil {
		return nil, err
	}
	producer, err := p.factory.NewProducer(cfg.Type)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := producer.Connect(ctx, cfg); err != nil {
		p.record(reqs, false, err, start)
		return nil, err
	}
	defer producer.Close() //nolint:errcheck

	if len(reqs) == 1 {
		err = producer.Produce(ctx, reqs[0])
	} else {
		err = producer.ProduceBatch(ctx, reqs)
	}
	p.record(reqs, err == nil, err, start)
	if err != nil {
		return nil, err
	}
	return &ProduceResult{Count: len(reqs), LatencyMs: time.Since(start).Milliseconds()}, nil
}

func (p *Producer) record(reqs []*mq.ProduceRequest, ok bool, err error, start time.Time) {
	if p.history == nil {
		return
	}
	latency := time.Since(start).Milliseconds()
	for _, req := range reqs {
		rec := history.Record{
			Type:         history.TypeProduce,
			ConnectionID: req.ConnectionID,
			Topic:        req.Topic,
			Key:          req.Key,
			Value:        req.Value,
			Success:      ok,
			LatencyMs:    latency,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if insErr := p.history.Insert(context.Background(), rec); insErr != nil {
			log.Printf("session: failed to record produce: %v", insErr)
		}
	}
}
