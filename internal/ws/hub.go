package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// Channels a client can subscribe to.
const (
	ChannelMessages      = "messages"
	ChannelNotifications = "notifications"
	ChannelSession       = "session"
	ChannelLogs          = "logs"

	// ChannelControl carries replies to a client's own control messages.
	// It is never broadcast.
	ChannelControl = "control"
)

// DefaultChannels are subscribed for every new client.
var DefaultChannels = []string{ChannelMessages, ChannelNotifications, ChannelSession, ChannelLogs}

// Frame is the envelope pushed to clients.
type Frame struct {
	Channel   string      `json:"channel"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub manages the lifecycle of WebSocket clients and broadcasts frames to
// subscribers. It is safe for concurrent use.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

type broadcastMsg struct {
	channel string
	data    []byte
}

// NewHub allocates and initialises a Hub. Call Run() in a goroutine to start
// the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan broadcastMsg, 256),
		stop:       make(chan struct{}),
	}
}

// Run is the hub's main event loop. It returns after Stop, closing every
// client's send channel.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("ws: client %s registered", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				client.closeSend()
			}
			h.mu.Unlock()
			log.Printf("ws: client %s unregistered", client.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if client.IsSubscribed(msg.channel) {
					select {
					case client.send <- msg.data:
					default:
						// Slow consumer: drop the frame to avoid blocking.
					}
				}
			}
			h.mu.RUnlock()

		case <-h.stop:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.closeSend()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast encodes a frame and queues it for every client subscribed to
// channel. It never blocks: when the queue is full the frame is dropped.
func (h *Hub) Broadcast(channel, typ string, payload interface{}) {
	if err := h.enqueue(channel, typ, payload); err != nil {
		log.Printf("ws: %v", err)
	}
}

// enqueue is Broadcast without logging. Log hooks use it directly since they
// run inside the log writer.
func (h *Hub) enqueue(channel, typ string, payload interface{}) error {
	data, err := json.Marshal(Frame{Channel: channel, Type: typ, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", typ, err)
	}
	select {
	case h.broadcast <- broadcastMsg{channel: channel, data: data}:
	case <-h.stop:
	default:
		return fmt.Errorf("broadcast queue full, dropping %s frame", typ)
	}
	return nil
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register enqueues a new client for addition to the hub. After Stop the
// client's send channel is closed instead so its write pump exits.
func (h *Hub) Register(c *Client) {
	select {
	case <-h.stop:
		c.closeSend()
		return
	default:
	}
	select {
	case h.register <- c:
	case <-h.stop:
		c.closeSend()
	}
}

// Unregister enqueues a client for removal from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
	}
}
