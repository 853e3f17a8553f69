package ingest

import (
	"log"
	"strings"
)

// ShutdownPattern is one entry of the expected-shutdown allow-list. Matching
// is case-sensitive substring containment against the error text.
type ShutdownPattern struct {
	Name      string
	Substring string
}

// ShutdownPatterns lists error texts produced by tearing a session down on
// purpose. The wording comes from the broker client libraries and from the
// CONN_ codes of mq.Error; extend the table rather than the control flow.
var ShutdownPatterns = []ShutdownPattern{
	{Name: "connection-closed", Substring: "connection closed"},
	{Name: "closed-network-connection", Substring: "use of closed network connection"},
	{Name: "connection-code", Substring: "CONN_"},
}

// Classification is the outcome of classifying a session error.
type Classification int

const (
	// Failure is any error not on the allow-list. It is shown to the user.
	Failure Classification = iota
	// ExpectedShutdown is teardown noise. It is not shown.
	ExpectedShutdown
)

func (c Classification) String() string {
	if c == ExpectedShutdown {
		return "expected_shutdown"
	}
	return "failure"
}

// Classify matches errMsg against ShutdownPatterns and returns the matching
// pattern name for expected shutdowns. An empty message is a Failure unless
// a pattern happens to match it.
func Classify(errMsg string) (Classification, string) {
	for _, p := range ShutdownPatterns {
		if strings.Contains(errMsg, p.Substring) {
			return ExpectedShutdown, p.Name
		}
	}
	return Failure, ""
}

// Classifier turns session errors into a stop request and, for failures, an
// error notification.
type Classifier struct {
	notifier Notifier
	sessions SessionController
	metrics  *Metrics
}

// NewClassifier builds a Classifier. Any argument may be nil.
func NewClassifier(notifier Notifier, sessions SessionController, metrics *Metrics) *Classifier {
	return &Classifier{notifier: notifier, sessions: sessions, metrics: metrics}
}

// HandleError classifies errMsg, notifies on failures, and always requests a
// session stop. Repeated calls repeat the same side effects.
func (c *Classifier) HandleError(errMsg string) Classification {
	class, pattern := Classify(errMsg)
	c.metrics.classified(class)

	if class == ExpectedShutdown {
		log.Printf("ingest: session ended normally (%s)", pattern)
	} else {
		log.Printf("ingest: consume error: %s", errMsg)
		if c.notifier != nil {
			c.notifier.Notify(ConsumeErrorText(errMsg), SeverityError)
		}
	}

	if c.sessions != nil {
		c.sessions.StopSession()
	}
	return class
}

// ConsumeErrorText is the notification shown for a failed session.
func ConsumeErrorText(errMsg string) string {
	return "consume error: " + errMsg
}
