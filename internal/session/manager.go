package session

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darkden-lab/mqscope/internal/events"
	"github.com/darkden-lab/mqscope/internal/history"
	"github.com/darkden-lab/mqscope/internal/mq"
)

// ConnectionResolver looks up a stored connection, password included.
type ConnectionResolver interface {
	Get(ctx context.Context, id string) (*mq.ConnectionConfig, error)
}

// Info describes a running consumption session.
type Info struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	Topics       []string  `json:"topics"`
	GroupID      string    `json:"group_id"`
	StartedAt    time.Time `json:"started_at"`
}

type activeSession struct {
	info     Info
	consumer mq.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
}

// Manager runs consumers and turns what they read into bus events. Each
// session publishes message:received per record, and consumer:error when
// the consumer ends with an error other than its own cancellation.
type Manager struct {
	factory mq.Factory
	conns   ConnectionResolver
	bus     events.Bus
	history *history.Store

	mu       sync.Mutex
	sessions map[string]*activeSession
}

func NewManager(factory mq.Factory, conns ConnectionResolver, bus events.Bus, hist *history.Store) *Manager {
	return &Manager{
		factory:  factory,
		conns:    conns,
		bus:      bus,
		history:  hist,
		sessions: make(map[string]*activeSession),
	}
}

// Start connects and subscribes synchronously, then consumes in the
// background. Errors before consumption begins are returned and no session
// is registered.
func (m *Manager) Start(ctx context.Context, req *mq.ConsumeRequest) (string, error) {
	if len(req.Topics) == 0 {
		return "", mq.NewValidationError("at least one topic is required", "")
	}
	cfg, err := m.conns.Get(ctx, req.ConnectionID)
	if err != nil {
		return "", err
	}
	consumer, err := m.factory.NewConsumer(cfg.Type)
	if err != nil {
		return "", err
	}
	if err := consumer.Connect(ctx, cfg); err != nil {
		consumer.Close() //nolint:errcheck
		return "", err
	}
	if err := consumer.Subscribe(ctx, req); err != nil {
		consumer.Close() //nolint:errcheck
		return "", err
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &activeSession{
		info: Info{
			ID:           uuid.New().String(),
			ConnectionID: req.ConnectionID,
			Topics:       append([]string(nil), req.Topics...),
			GroupID:      req.GroupID,
			StartedAt:    time.Now(),
		},
		consumer: consumer,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[s.info.ID] = s
	m.mu.Unlock()

	log.Printf("session: started %s on %s topics=%v", s.info.ID, cfg.Name, req.Topics)
	go m.run(sessCtx, s)
	return s.info.ID, nil
}

func (m *Manager) run(ctx context.Context, s *activeSession) {
	defer close(s.done)
	id := s.info.ID

	err := s.consumer.Consume(ctx, func(msg *mq.Message) error {
		if err := m.bus.Publish(events.TopicMessageReceived, events.NewMessageEvent(id, msg)); err != nil {
			return err
		}
		m.record(msg, s.info.ConnectionID)
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		log.Printf("session: %s ended: %v", id, err)
		if pubErr := m.bus.Publish(events.TopicConsumerError, events.NewErrorEvent(id, err)); pubErr != nil {
			log.Printf("session: failed to publish error for %s: %v", id, pubErr)
		}
	}
	m.remove(id)
}

func (m *Manager) record(msg *mq.Message, connectionID string) {
	if m.history == nil {
		return
	}
	rec := history.Record{
		Type:         history.TypeConsume,
		ConnectionID: connectionID,
		Topic:        msg.Topic,
		Key:          msg.Key,
		Value:        msg.Value,
		Success:      true,
	}
	if err := m.history.Insert(context.Background(), rec); err != nil {
		log.Printf("session: failed to record consume: %v", err)
	}
}

// remove unregisters and closes a session. It reports false when the
// session was already gone.
func (m *Manager) remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.cancel()
	if err := s.consumer.Close(); err != nil {
		log.Printf("session: close %s: %v", id, err)
	}
	log.Printf("session: stopped %s", id)
	return true
}

// Stop cancels and closes a session. Unknown or already stopped ids are
// ignored.
func (m *Manager) Stop(id string) bool {
	return m.remove(id)
}

// StopAll stops every running session and waits for their consumers to
// return.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]*activeSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		m.remove(s.info.ID)
		<-s.done
	}
}

// Active lists running sessions ordered by start time.
func (m *Manager) Active() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Wait blocks until the session has returned from Consume, or ctx ends.
func (m *Manager) Wait(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}
