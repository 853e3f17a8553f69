package settings

import "sync"

const (
	DefaultGroupID     = "mqscope-consumer"
	DefaultMaxMessages = 100
)

// State is the consumer session state shown to and edited by the UI.
type State struct {
	Consuming      bool     `json:"consuming"`
	SubscriptionID string   `json:"subscription_id,omitempty"`
	ConnectionID   string   `json:"connection_id,omitempty"`
	GroupID        string   `json:"group_id"`
	FromBeginning  bool     `json:"from_beginning"`
	MaxMessages    int      `json:"max_messages"`
	ConsumerTopics []string `json:"consumer_topics,omitempty"`
	ProducerTopic  string   `json:"producer_topic,omitempty"`
}

// ConsumerState guards the shared State. Its MaxMessages method is read by the
// ingestion controller on every message.
type ConsumerState struct {
	mu    sync.RWMutex
	state State

	hooksMu sync.RWMutex
	hooks   []func(State)
}

// NewConsumerState returns a state holding the given defaults. Empty or
// non-positive values fall back to DefaultGroupID and DefaultMaxMessages.
func NewConsumerState(groupID string, maxMessages int) *ConsumerState {
	if groupID == "" {
		groupID = DefaultGroupID
	}
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &ConsumerState{state: State{GroupID: groupID, MaxMessages: maxMessages}}
}

// Get returns a copy of the current state.
func (c *ConsumerState) Get() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	s.ConsumerTopics = append([]string(nil), c.state.ConsumerTopics...)
	return s
}

// Update applies fn to the state under the write lock and returns the result.
func (c *ConsumerState) Update(fn func(*State)) State {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	s := c.Get()
	c.changed(s)
	return s
}

// MaxMessages reports the store capacity.
func (c *ConsumerState) MaxMessages() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.MaxMessages
}

// StartConsuming records a running subscription. It fails with false when a
// session is already recorded.
func (c *ConsumerState) StartConsuming(subscriptionID, connectionID string, topics []string) bool {
	c.mu.Lock()
	if c.state.Consuming {
		c.mu.Unlock()
		return false
	}
	c.state.Consuming = true
	c.state.SubscriptionID = subscriptionID
	c.state.ConnectionID = connectionID
	c.state.ConsumerTopics = append([]string(nil), topics...)
	c.mu.Unlock()

	c.changed(c.Get())
	return true
}

// StopConsuming clears the running flag and returns the subscription that
// was recorded, or "" when nothing was running.
func (c *ConsumerState) StopConsuming() string {
	c.mu.Lock()
	wasConsuming := c.state.Consuming
	id := c.state.SubscriptionID
	c.state.Consuming = false
	c.state.SubscriptionID = ""
	c.mu.Unlock()

	if !wasConsuming {
		return ""
	}
	c.changed(c.Get())
	return id
}

// OnChange registers a hook called with the new state after every change.
func (c *ConsumerState) OnChange(hook func(State)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, hook)
}

func (c *ConsumerState) changed(s State) {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	for _, hook := range c.hooks {
		hook(s)
	}
}

// replace swaps the whole state, normalising defaults.
func (c *ConsumerState) replace(s State) {
	if s.GroupID == "" {
		s.GroupID = DefaultGroupID
	}
	if s.MaxMessages <= 0 {
		s.MaxMessages = DefaultMaxMessages
	}
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.changed(c.Get())
}
