package ingest

import (
	"fmt"
	"log"
	"sync"

	"github.com/darkden-lab/mqscope/internal/events"
)

// Router is the process-wide dispatcher from the event bus to the
// Controller and Classifier. Build one in main and share it.
type Router struct {
	bus        events.Bus
	slot       *callbacks
	controller *Controller
	classifier *Classifier

	mu     sync.Mutex
	msgSub string // subscription ids, set once each
	errSub string
}

// NewRouter wires a Controller and Classifier over store and limits. No
// subscription is made until Setup.
func NewRouter(bus events.Bus, store *MessageStore, limits LimitsSource, metrics *Metrics) *Router {
	slot := &callbacks{}
	return &Router{
		bus:        bus,
		slot:       slot,
		controller: NewController(store, limits, slot, slot, metrics),
		classifier: NewClassifier(slot, slot, metrics),
	}
}

// Setup installs the callbacks and subscribes to message and error events.
// Only the first successful call has any effect; later calls return nil
// without touching callbacks or subscriptions. Use UpdateCallbacks to swap
// callbacks afterwards. After a partial failure a retry subscribes only the
// topic still missing.
func (r *Router) Setup(notifier Notifier, sessions SessionController) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.msgSub != "" && r.errSub != "" {
		return nil
	}

	r.slot.set(notifier, sessions)
	if r.msgSub == "" {
		id, err := r.bus.Subscribe(events.TopicMessageReceived, r.onMessage)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", events.TopicMessageReceived, err)
		}
		r.msgSub = id
	}
	if r.errSub == "" {
		id, err := r.bus.Subscribe(events.TopicConsumerError, r.onError)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", events.TopicConsumerError, err)
		}
		r.errSub = id
	}
	log.Println("ingest: router subscribed to session events")
	return nil
}

// UpdateCallbacks replaces the registered callbacks. Subscriptions are left
// alone.
func (r *Router) UpdateCallbacks(notifier Notifier, sessions SessionController) {
	r.slot.set(notifier, sessions)
}

func (r *Router) onMessage(e events.Event) {
	if e.Message == nil {
		log.Printf("ingest: dropping message event %s without payload", e.ID)
		return
	}
	r.controller.HandleMessage(*e.Message)
}

func (r *Router) onError(e events.Event) {
	r.classifier.HandleError(e.Error)
}
