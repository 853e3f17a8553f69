package ingest

import "sync"

// Severity of a user-facing notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier shows text to the user. Calls are fire-and-forget.
type Notifier interface {
	Notify(text string, severity Severity)
}

// SessionController ends the active consumption session. StopSession is a
// request and must be safe to call when nothing is running.
type SessionController interface {
	StopSession()
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(text string, severity Severity)

func (f NotifierFunc) Notify(text string, severity Severity) { f(text, severity) }

// SessionControllerFunc adapts a function to SessionController.
type SessionControllerFunc func()

func (f SessionControllerFunc) StopSession() { f() }

// callbacks is the replaceable registration slot shared by the Controller
// and Classifier a Router builds. Last writer wins.
type callbacks struct {
	mu       sync.RWMutex
	notifier Notifier
	sessions SessionController
}

func (c *callbacks) set(n Notifier, s SessionController) {
	c.mu.Lock()
	c.notifier = n
	c.sessions = s
	c.mu.Unlock()
}

func (c *callbacks) Notify(text string, severity Severity) {
	c.mu.RLock()
	n := c.notifier
	c.mu.RUnlock()
	if n != nil {
		n.Notify(text, severity)
	}
}

func (c *callbacks) StopSession() {
	c.mu.RLock()
	s := c.sessions
	c.mu.RUnlock()
	if s != nil {
		s.StopSession()
	}
}
