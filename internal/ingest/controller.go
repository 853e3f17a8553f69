package ingest

import (
	"fmt"
	"log"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// DefaultMaxMessages applies when the limits source reports no positive
// limit.
const DefaultMaxMessages = 100

// LimitsSource supplies the current store capacity. It is read on every
// message, so a changed limit applies from the next message on.
type LimitsSource interface {
	MaxMessages() int
}

// Controller admits messages into the store and stops the session once the
// store is full.
type Controller struct {
	store    *MessageStore
	limits   LimitsSource
	notifier Notifier
	sessions SessionController
	metrics  *Metrics
}

// NewController builds a Controller. limits, notifier, sessions and metrics
// may be nil.
func NewController(store *MessageStore, limits LimitsSource, notifier Notifier, sessions SessionController, metrics *Metrics) *Controller {
	return &Controller{
		store:    store,
		limits:   limits,
		notifier: notifier,
		sessions: sessions,
		metrics:  metrics,
	}
}

func (c *Controller) maxMessages() int {
	if c.limits == nil {
		return DefaultMaxMessages
	}
	if n := c.limits.MaxMessages(); n > 0 {
		return n
	}
	return DefaultMaxMessages
}

// HandleMessage admits msg, or rejects it when the store already holds the
// maximum number of messages. A rejection stops the session and raises a
// warning; the message is dropped.
func (c *Controller) HandleMessage(msg mq.Message) bool {
	limit := c.maxMessages()
	admitted, size := c.store.admit(msg, limit)
	c.metrics.storeSize(size)
	if admitted {
		c.metrics.admitted()
		return true
	}

	c.metrics.rejected()
	log.Printf("ingest: message limit %d reached, stopping session", limit)
	if c.sessions != nil {
		c.sessions.StopSession()
	}
	if c.notifier != nil {
		c.notifier.Notify(LimitReachedText(limit), SeverityWarning)
	}
	return false
}

// LimitReachedText is the warning shown when the store is full.
func LimitReachedText(limit int) string {
	return fmt.Sprintf("maximum message limit reached (%d)", limit)
}
