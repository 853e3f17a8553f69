package kafka

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// Admin runs metadata and topic management requests against a cluster.
type Admin struct {
	cfg    *mq.ConnectionConfig
	conn   *kafka.Conn
	client *kafka.Client
}

func NewAdmin() *Admin {
	return &Admin{}
}

func (a *Admin) Connect(ctx context.Context, cfg *mq.ConnectionConfig) error {
	if err := checkType(cfg); err != nil {
		return err
	}
	addrs := brokerAddrs(cfg)
	conn, err := kafka.DialContext(ctx, "tcp", addrs[0])
	if err != nil {
		return mq.NewConnectionError("failed to connect to kafka", err)
	}
	a.cfg = cfg
	a.conn = conn
	a.client = &kafka.Client{Addr: kafka.TCP(addrs...), Timeout: 10 * time.Second}
	return nil
}

func (a *Admin) TestConnection(ctx context.Context) *mq.TestResult {
	start := time.Now()
	if a.conn == nil {
		return &mq.TestResult{Success: false, Message: "not connected to kafka"}
	}
	brokers, err := a.conn.Brokers()
	if err != nil {
		return &mq.TestResult{
			Success: false,
			Message: fmt.Sprintf("failed to get brokers: %v", err),
			Latency: time.Since(start).Milliseconds(),
		}
	}
	return &mq.TestResult{
		Success: true,
		Message: fmt.Sprintf("connected, found %d brokers", len(brokers)),
		Latency: time.Since(start).Milliseconds(),
	}
}

func (a *Admin) ListTopics(ctx context.Context) ([]mq.TopicInfo, error) {
	if a.conn == nil {
		return nil, mq.NewConnectionError("not connected to kafka", nil)
	}
	partitions, err := a.conn.ReadPartitions()
	if err != nil {
		return nil, mq.NewNetworkError("failed to read partitions", err)
	}
	return topicsFromPartitions(partitions), nil
}

// topicsFromPartitions folds partition metadata into one entry per topic,
// sorted by name.
func topicsFromPartitions(partitions []kafka.Partition) []mq.TopicInfo {
	byName := make(map[string]*mq.TopicInfo)
	for _, p := range partitions {
		t, ok := byName[p.Topic]
		if !ok {
			t = &mq.TopicInfo{Name: p.Topic, Replicas: int16(len(p.Replicas))}
			byName[p.Topic] = t
		}
		if int32(p.ID)+1 > t.Partitions {
			t.Partitions = int32(p.ID) + 1
		}
	}
	topics := make([]mq.TopicInfo, 0, len(byName))
	for _, t := range byName {
		topics = append(topics, *t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })
	return topics
}

func (a *Admin) CreateTopic(ctx context.Context, topic string, partitions int32, replicas int16) error {
	if topic == "" {
		return mq.NewValidationError("topic name is required", "")
	}
	if partitions <= 0 {
		partitions = 1
	}
	if replicas <= 0 {
		replicas = 1
	}
	ctrl, err := a.controller(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     int(partitions),
		ReplicationFactor: int(replicas),
	})
	if err != nil {
		return mq.NewNetworkError("failed to create topic", err)
	}
	return nil
}

func (a *Admin) DeleteTopic(ctx context.Context, topic string) error {
	if topic == "" {
		return mq.NewValidationError("topic name is required", "")
	}
	ctrl, err := a.controller(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err := ctrl.DeleteTopics(topic); err != nil {
		return mq.NewNetworkError("failed to delete topic", err)
	}
	return nil
}

func (a *Admin) ListConsumerGroups(ctx context.Context) ([]mq.ConsumerGroup, error) {
	if a.client == nil {
		return nil, mq.NewConnectionError("not connected to kafka", nil)
	}
	listed, err := a.client.ListGroups(ctx, &kafka.ListGroupsRequest{})
	if err != nil {
		return nil, mq.NewNetworkError("failed to list groups", err)
	}
	if listed.Error != nil {
		return nil, mq.NewNetworkError("failed to list groups", listed.Error)
	}
	if len(listed.Groups) == 0 {
		return []mq.ConsumerGroup{}, nil
	}

	ids := make([]string, 0, len(listed.Groups))
	for _, g := range listed.Groups {
		ids = append(ids, g.GroupID)
	}
	described, err := a.client.DescribeGroups(ctx, &kafka.DescribeGroupsRequest{GroupIDs: ids})
	if err != nil {
		return nil, mq.NewNetworkError("failed to describe groups", err)
	}

	groups := make([]mq.ConsumerGroup, 0, len(described.Groups))
	for _, g := range described.Groups {
		cg := mq.ConsumerGroup{ID: g.GroupID, Members: []string{}, Topics: []string{}}
		seen := make(map[string]bool)
		for _, m := range g.Members {
			cg.Members = append(cg.Members, m.MemberID)
			for _, t := range m.MemberMetadata.Topics {
				if !seen[t] {
					seen[t] = true
					cg.Topics = append(cg.Topics, t)
				}
			}
		}
		groups = append(groups, cg)
	}
	return groups, nil
}

// controller dials the cluster controller; topic creation and deletion must
// be sent there.
func (a *Admin) controller(ctx context.Context) (*kafka.Conn, error) {
	if a.conn == nil {
		return nil, mq.NewConnectionError("not connected to kafka", nil)
	}
	broker, err := a.conn.Controller()
	if err != nil {
		return nil, mq.NewNetworkError("failed to find controller", err)
	}
	addr := net.JoinHostPort(broker.Host, strconv.Itoa(broker.Port))
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, mq.NewConnectionError("failed to connect to controller", err)
	}
	return conn, nil
}

func (a *Admin) Close() error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}
