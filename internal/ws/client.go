package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the maximum time to wait for a pong reply from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize is the maximum inbound message size in bytes.
	maxMessageSize = 4096
)

// controlMessage is sent by the UI to change which channels it receives.
type controlMessage struct {
	Action  string `json:"action"` // "subscribe" | "unsubscribe"
	Channel string `json:"channel"`
}

// Client represents a single WebSocket connection.
type Client struct {
	ID            string
	conn          *websocket.Conn
	subscriptions map[string]bool
	subMu         sync.RWMutex
	send          chan []byte
	hub           *Hub

	sendMu     sync.Mutex // guards sendClosed and sends outside the hub loop
	sendClosed bool
}

// NewClient creates a Client subscribed to channels.
func NewClient(hub *Hub, conn *websocket.Conn, channels ...string) *Client {
	c := &Client{
		ID:            uuid.New().String(),
		conn:          conn,
		subscriptions: make(map[string]bool),
		send:          make(chan []byte, 256),
		hub:           hub,
	}
	for _, ch := range channels {
		c.subscriptions[ch] = true
	}
	return c
}

// IsSubscribed reports whether this client is subscribed to channel.
func (c *Client) IsSubscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[channel]
}

func knownChannel(name string) bool {
	for _, ch := range DefaultChannels {
		if ch == name {
			return true
		}
	}
	return false
}

// apply changes the subscription set and answers on the control channel
// with "subscribed", "unsubscribed" or "error".
func (c *Client) apply(cm controlMessage) {
	if !knownChannel(cm.Channel) {
		c.reply("error", map[string]string{"error": "unknown channel", "channel": cm.Channel})
		return
	}

	c.subMu.Lock()
	switch cm.Action {
	case "subscribe":
		c.subscriptions[cm.Channel] = true
	case "unsubscribe":
		delete(c.subscriptions, cm.Channel)
	default:
		c.subMu.Unlock()
		c.reply("error", map[string]string{"error": "unknown action", "action": cm.Action})
		return
	}
	c.subMu.Unlock()

	c.reply(cm.Action+"d", map[string]string{"channel": cm.Channel})
}

// reply queues a frame for this client only. It is dropped when the send
// buffer is full.
func (c *Client) reply(typ string, payload interface{}) {
	data, err := json.Marshal(Frame{Channel: ChannelControl, Type: typ, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		log.Printf("ws: encode reply for %s: %v", c.ID, err)
		return
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("ws: client %s send buffer full, dropping %s reply", c.ID, typ)
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// ReadPump handles subscribe / unsubscribe control messages until the
// connection fails.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: client %s read error: %v", c.ID, err)
			}
			break
		}

		var cm controlMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			c.reply("error", map[string]string{"error": "invalid control message"})
			continue
		}
		c.apply(cm)
	}
}

// WritePump pumps frames from the hub's send channel to the WebSocket
// connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
