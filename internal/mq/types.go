package mq

import "time"

// BrokerType identifies the broker family a connection talks to.
type BrokerType string

const (
	BrokerKafka    BrokerType = "kafka"
	BrokerRabbitMQ BrokerType = "rabbitmq"
)

// ConnectionConfig describes how to reach a broker. Extra carries
// broker-specific knobs (additional bootstrap brokers, fetch sizes, exchange).
type ConnectionConfig struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      BrokerType        `json:"type"`
	Host      string            `json:"host"`
	Port      int               `json:"port"`
	Username  string            `json:"username"`
	Password  string            `json:"password,omitempty"`
	VHost     string            `json:"vhost"`
	GroupID   string            `json:"group_id"`
	Extra     map[string]string `json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Message is a consumed record. Fields are passed through untouched.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Key       string            `json:"key"`
	Value     string            `json:"value"`
	Headers   map[string]string `json:"headers"`
	Partition int32             `json:"partition"`
	Offset    int64             `json:"offset"`
	Timestamp time.Time         `json:"timestamp"`
}

// ProduceRequest is a single message to publish.
type ProduceRequest struct {
	ConnectionID string            `json:"connection_id"`
	Topic        string            `json:"topic"`
	Key          string            `json:"key"`
	Value        string            `json:"value"`
	Headers      map[string]string `json:"headers"`
	Partition    *int32            `json:"partition,omitempty"`
}

// ConsumeRequest starts a consumption session.
type ConsumeRequest struct {
	ConnectionID  string   `json:"connection_id"`
	Topics        []string `json:"topics"`
	GroupID       string   `json:"group_id"`
	AutoCommit    bool     `json:"auto_commit"`
	FromBeginning bool     `json:"from_beginning"`
}

// TestResult reports the outcome of a connectivity probe.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Latency int64  `json:"latency"` // milliseconds
}

type TopicInfo struct {
	Name       string `json:"name"`
	Partitions int32  `json:"partitions"`
	Replicas   int16  `json:"replicas"`
}

type ConsumerGroup struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
	Topics  []string `json:"topics"`
}
