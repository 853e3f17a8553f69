package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// Consumer reads from one or more topics through a kafka-go Reader.
type Consumer struct {
	cfg        *mq.ConnectionConfig
	mu         sync.Mutex
	reader     *kafka.Reader
	autoCommit bool
	closed     bool
}

func NewConsumer() *Consumer {
	return &Consumer{}
}

// Connect validates and stores the connection config. kafka-go dials lazily,
// so the first network round trip happens in Consume.
func (c *Consumer) Connect(ctx context.Context, cfg *mq.ConnectionConfig) error {
	if err := checkType(cfg); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// Subscribe builds the reader. Several topics are only supported with a
// consumer group, which is always set here.
func (c *Consumer) Subscribe(ctx context.Context, req *mq.ConsumeRequest) error {
	if c.cfg == nil {
		return mq.NewConnectionError("consumer not connected", nil)
	}
	if len(req.Topics) == 0 {
		return mq.NewValidationError("no topics specified for subscription", "")
	}

	groupID := req.GroupID
	if groupID == "" {
		groupID = c.cfg.GroupID
	}
	if groupID == "" {
		groupID = DefaultGroupID
	}

	rc := kafka.ReaderConfig{
		Brokers:  brokerAddrs(c.cfg),
		GroupID:  groupID,
		MinBytes: extraInt(c.cfg, "min_bytes", 1),
		MaxBytes: extraInt(c.cfg, "max_bytes", 10e6),
		MaxWait:  500 * time.Millisecond,
	}
	if len(req.Topics) == 1 {
		rc.Topic = req.Topics[0]
	} else {
		rc.GroupTopics = req.Topics
	}
	if req.FromBeginning {
		rc.StartOffset = kafka.FirstOffset
	} else {
		rc.StartOffset = kafka.LastOffset
	}
	if err := rc.Validate(); err != nil {
		return mq.NewSubscriptionError("invalid reader config", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return mq.NewClosedError("consumer closed")
	}
	c.reader = kafka.NewReader(rc)
	c.autoCommit = req.AutoCommit
	return nil
}

// Consume blocks reading messages until ctx is done, Close is called, or a
// read fails. Reads after Close surface as a CONN_CLOSED error.
func (c *Consumer) Consume(ctx context.Context, handler mq.MessageHandler) error {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader == nil {
		return mq.NewConnectionError("consumer not subscribed, call Subscribe first", nil)
	}

	for {
		var (
			m   kafka.Message
			err error
		)
		if c.autoCommit {
			m, err = reader.ReadMessage(ctx)
		} else {
			m, err = reader.FetchMessage(ctx)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.isClosed() {
				return mq.NewClosedError("consumer closed while reading")
			}
			return mq.NewNetworkError("failed to read message", err)
		}

		if err := handler(toMessage(m)); err != nil {
			return err
		}

		if !c.autoCommit {
			if err := reader.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
				return mq.NewNetworkError("failed to commit offset", err)
			}
		}
	}
}

func (c *Consumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close is safe to call more than once.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

func toMessage(m kafka.Message) *mq.Message {
	msg := &mq.Message{
		ID:        uuid.New().String(),
		Topic:     m.Topic,
		Key:       string(m.Key),
		Value:     string(m.Value),
		Partition: int32(m.Partition),
		Offset:    m.Offset,
		Timestamp: m.Time,
	}
	if len(m.Headers) > 0 {
		msg.Headers = make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}
