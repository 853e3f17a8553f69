package events

// Bus carries push events from broker sessions to their listeners.
// InMemoryBus is the only implementation; it delivers on a single goroutine
// so handlers observe events one at a time in publish order.
type Bus interface {
	// Publish enqueues an event for asynchronous delivery to every handler
	// subscribed to topic.
	Publish(topic string, event Event) error

	// Subscribe registers a handler for topic and returns a subscription ID.
	Subscribe(topic string, handler Handler) (string, error)

	// Close stops delivery. Events already queued are still delivered
	// before Close returns. After Close, Publish and Subscribe fail.
	Close() error
}
