package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// Admin manages queues. Partition and replica counts do not apply.
type Admin struct {
	cfg  *mq.ConnectionConfig
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAdmin() *Admin {
	return &Admin{}
}

func (a *Admin) Connect(ctx context.Context, cfg *mq.ConnectionConfig) error {
	conn, ch, err := dial(cfg)
	if err != nil {
		return err
	}
	a.cfg, a.conn, a.ch = cfg, conn, ch
	return nil
}

// TestConnection round-trips an exclusive auto-delete queue.
func (a *Admin) TestConnection(ctx context.Context) *mq.TestResult {
	start := time.Now()
	if a.ch == nil {
		return &mq.TestResult{Success: false, Message: "not connected to rabbitmq"}
	}
	name := "mqscope-probe-" + uuid.New().String()
	q, err := a.ch.QueueDeclare(name, false, true, true, false, nil)
	if err != nil {
		return &mq.TestResult{
			Success: false,
			Message: fmt.Sprintf("failed to declare probe queue: %v", err),
			Latency: time.Since(start).Milliseconds(),
		}
	}
	if _, err := a.ch.QueueDelete(q.Name, false, false, false); err != nil {
		return &mq.TestResult{
			Success: false,
			Message: fmt.Sprintf("failed to delete probe queue: %v", err),
			Latency: time.Since(start).Milliseconds(),
		}
	}
	return &mq.TestResult{
		Success: true,
		Message: "connected, queue declare/delete succeeded",
		Latency: time.Since(start).Milliseconds(),
	}
}

// ListTopics reports the queues configured on the connection that exist on
// the broker. A passive declare on a missing queue closes the channel, so
// the channel is reopened after a miss.
func (a *Admin) ListTopics(ctx context.Context) ([]mq.TopicInfo, error) {
	if a.ch == nil {
		return nil, mq.NewConnectionError("not connected to rabbitmq", nil)
	}
	topics := []mq.TopicInfo{}
	for _, name := range configuredQueues(a.cfg) {
		if _, err := a.ch.QueueDeclarePassive(name, true, false, false, false, nil); err != nil {
			ch, chErr := a.conn.Channel()
			if chErr != nil {
				return nil, mq.NewConnectionError("failed to reopen channel", chErr)
			}
			a.ch = ch
			continue
		}
		topics = append(topics, mq.TopicInfo{Name: name, Partitions: 1, Replicas: 1})
	}
	return topics, nil
}

func (a *Admin) CreateTopic(ctx context.Context, topic string, partitions int32, replicas int16) error {
	if topic == "" {
		return mq.NewValidationError("queue name is required", "")
	}
	if a.ch == nil {
		return mq.NewConnectionError("not connected to rabbitmq", nil)
	}
	if _, err := a.ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
		return mq.NewNetworkError("failed to declare queue", err)
	}
	return nil
}

func (a *Admin) DeleteTopic(ctx context.Context, topic string) error {
	if topic == "" {
		return mq.NewValidationError("queue name is required", "")
	}
	if a.ch == nil {
		return mq.NewConnectionError("not connected to rabbitmq", nil)
	}
	if _, err := a.ch.QueueDelete(topic, false, false, false); err != nil {
		return mq.NewNetworkError("failed to delete queue", err)
	}
	return nil
}

// ListConsumerGroups returns an empty list; RabbitMQ has no consumer groups.
func (a *Admin) ListConsumerGroups(ctx context.Context) ([]mq.ConsumerGroup, error) {
	return []mq.ConsumerGroup{}, nil
}

func (a *Admin) Close() error {
	var firstErr error
	if a.ch != nil {
		firstErr = a.ch.Close()
		a.ch = nil
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.conn = nil
	}
	return firstErr
}
