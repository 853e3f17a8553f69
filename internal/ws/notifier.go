package ws

import (
	"github.com/darkden-lab/mqscope/internal/applog"
	"github.com/darkden-lab/mqscope/internal/ingest"
	"github.com/darkden-lab/mqscope/internal/mq"
	"github.com/darkden-lab/mqscope/internal/settings"
)

// Notification is the payload of a "notification" frame.
type Notification struct {
	Text     string          `json:"text"`
	Severity ingest.Severity `json:"severity"`
}

// Notifier pushes ingestion notifications to the notifications channel.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Notify(text string, severity ingest.Severity) {
	n.hub.Broadcast(ChannelNotifications, "notification", Notification{Text: text, Severity: severity})
}

// MessageHook returns a store hook that pushes each admitted message.
func MessageHook(hub *Hub) func(mq.Message) {
	return func(m mq.Message) {
		hub.Broadcast(ChannelMessages, "message", m)
	}
}

// StateHook returns a consumer state hook that pushes every change.
func StateHook(hub *Hub) func(settings.State) {
	return func(s settings.State) {
		hub.Broadcast(ChannelSession, "state", s)
	}
}

// LogHook returns a log buffer listener that pushes each entry to the logs
// channel. Dropped frames are not logged.
func LogHook(hub *Hub) func(applog.Entry) {
	return func(e applog.Entry) {
		hub.enqueue(ChannelLogs, "log", e) //nolint:errcheck
	}
}
