package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// Topics published by consumption sessions.
const (
	TopicMessageReceived = "message:received"
	TopicConsumerError   = "consumer:error"
)

// Event is a single push notification from a consumption session. Message
// is set for TopicMessageReceived, Error for TopicConsumerError.
type Event struct {
	ID             string      `json:"id"`
	Topic          string      `json:"topic"`
	SubscriptionID string      `json:"subscription_id,omitempty"`
	Message        *mq.Message `json:"message,omitempty"`
	Error          string      `json:"error,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// NewMessageEvent wraps a consumed message.
func NewMessageEvent(subscriptionID string, msg *mq.Message) Event {
	return Event{
		ID:             uuid.New().String(),
		Topic:          TopicMessageReceived,
		SubscriptionID: subscriptionID,
		Message:        msg,
		Timestamp:      time.Now().UTC(),
	}
}

// NewErrorEvent reports the error that ended a consumption session.
func NewErrorEvent(subscriptionID string, err error) Event {
	e := Event{
		ID:             uuid.New().String(),
		Topic:          TopicConsumerError,
		SubscriptionID: subscriptionID,
		Timestamp:      time.Now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Handler is invoked for each delivered event.
type Handler func(event Event)
