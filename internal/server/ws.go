package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lgr"
	"github.com/ayusman/mudra/internal/tracking"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dashboard
	},
}

const (
	clientBuffer = 16
	writeWait    = 2 * time.Second
)

// Hub fans JSON messages out to websocket clients. A client that falls
// behind loses messages rather than stalling the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends v as JSON to every client.
func (h *Hub) Broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(v)
	if err != nil {
		lgr.Logger.Error("websocket marshal failed", slog.Any("error", err))
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ServeHTTP upgrades the request and keeps the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		lgr.Logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.close()
	}()

	// Reads only detect the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// JointFeed delivers the sampled joints of every visible tick.
type JointFeed interface {
	WatchJoints(fn func(tracking.JointSet)) (cancel func())
}

type jointsMessage struct {
	Joints    tracking.JointSet `json:"joints"`
	Timestamp int64             `json:"timestamp"`
}

// jointsInterval caps the joint stream at about 15 messages per second.
const jointsInterval = 66 * time.Millisecond

// streamJoints broadcasts joints from feed on hub, throttled to
// jointsInterval.
func streamJoints(feed JointFeed, hub *Hub) (cancel func()) {
	var last time.Time
	return feed.WatchJoints(func(js tracking.JointSet) {
		if hub.Len() == 0 {
			return
		}
		now := time.Now()
		if now.Sub(last) < jointsInterval {
			return
		}
		last = now
		hub.Broadcast(jointsMessage{Joints: js, Timestamp: now.UnixMilli()})
	})
}

// streamEvents broadcasts every bus event on hub.
func streamEvents(bus *gesture.Bus, hub *Hub) *gesture.Subscription {
	return bus.Subscribe(func(e gesture.Event) {
		hub.Broadcast(e)
	})
}
