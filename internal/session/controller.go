package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/darkden-lab/mqscope/internal/mq"
	"github.com/darkden-lab/mqscope/internal/settings"
)

// ErrAlreadyConsuming is returned by Start while a session is recorded in
// the consumer state.
var ErrAlreadyConsuming = errors.New("a consumption session is already running")

// StartRequest starts the single UI consumption session. Unset fields take
// their values from the consumer state.
type StartRequest struct {
	ConnectionID  string   `json:"connection_id"`
	Topics        []string `json:"topics"`
	GroupID       string   `json:"group_id"`
	FromBeginning *bool    `json:"from_beginning"`
	AutoCommit    *bool    `json:"auto_commit"`
}

// Controller owns the one session tracked in the consumer state. It is the
// SessionController handed to the ingestion router.
type Controller struct {
	manager   *Manager
	state     *settings.ConsumerState
	persister *settings.Persister

	mu sync.Mutex
}

func NewController(manager *Manager, state *settings.ConsumerState, persister *settings.Persister) *Controller {
	return &Controller{manager: manager, state: state, persister: persister}
}

// Start begins consuming and records the session in the consumer state.
func (c *Controller) Start(ctx context.Context, req StartRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state.Get()
	if s.Consuming {
		return "", ErrAlreadyConsuming
	}
	if req.ConnectionID == "" {
		return "", mq.NewValidationError("connection_id is required", "")
	}

	consume := &mq.ConsumeRequest{
		ConnectionID:  req.ConnectionID,
		Topics:        req.Topics,
		GroupID:       req.GroupID,
		FromBeginning: s.FromBeginning,
		AutoCommit:    true,
	}
	if consume.GroupID == "" {
		consume.GroupID = s.GroupID
	}
	if req.FromBeginning != nil {
		consume.FromBeginning = *req.FromBeginning
	}
	if req.AutoCommit != nil {
		consume.AutoCommit = *req.AutoCommit
	}

	id, err := c.manager.Start(ctx, consume)
	if err != nil {
		return "", err
	}
	c.state.Update(func(s *settings.State) {
		s.GroupID = consume.GroupID
		s.FromBeginning = consume.FromBeginning
	})
	c.state.StartConsuming(id, req.ConnectionID, req.Topics)
	c.persister.Checkpoint(ctx, "session start")
	return id, nil
}

// StopSession stops the recorded session, if any, and saves a checkpoint.
// Calling it with nothing running does nothing.
func (c *Controller) StopSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.state.StopConsuming()
	if id == "" {
		return
	}
	c.manager.Stop(id)
	log.Printf("session: consumer state cleared for %s", id)
	c.persister.Checkpoint(context.Background(), "session stop")
}
