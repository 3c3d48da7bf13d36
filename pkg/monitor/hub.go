package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ============================================
// OPERATOR MONITOR
// Live WebSocket feed of call events for human operators
// ============================================

// EventKind classifies a published call event
type EventKind string

const (
	EventGreeting EventKind = "greeting"
	EventTurn     EventKind = "turn"
	EventFallback EventKind = "fallback"
	EventTransfer EventKind = "transfer"
	EventStatus   EventKind = "status"
)

// CallEvent is one monitor message
type CallEvent struct {
	Kind       EventKind `json:"kind"`
	CallID     string    `json:"call_id"`
	Caller     string    `json:"caller,omitempty"`
	CustomerID string    `json:"customer_id,omitempty"`
	Utterance  string    `json:"utterance,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	Status     string    `json:"status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher accepts call events. Publish must never block the caller.
type Publisher interface {
	Publish(event CallEvent)
}

// Nop discards events
type Nop struct{}

// Publish does nothing
func (Nop) Publish(CallEvent) {}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 64
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Operator consoles are served from other origins
		return true
	},
}

// Hub fans call events out to connected operator clients
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex

	logger   *logrus.Logger
	onChange func(subscribers int)
}

type client struct {
	id     string
	callID string // empty means all calls
	conn   *websocket.Conn
	send   chan []byte

	closeOnce sync.Once
}

// NewHub creates an empty hub. onChange, if set, receives the subscriber count.
func NewHub(logger *logrus.Logger, onChange func(subscribers int)) *Hub {
	return &Hub{
		clients:  make(map[string]*client),
		logger:   logger,
		onChange: onChange,
	}
}

// Subscribers returns the number of connected clients
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish delivers an event to every matching client. Slow clients lose the event.
func (h *Hub) Publish(event CallEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).WithField("component", "Monitor").Error("Failed to encode call event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.callID != "" && c.callID != event.CallID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.WithFields(logrus.Fields{
				"component": "Monitor",
				"client_id": c.id,
				"call_sid":  event.CallID,
			}).Warn("Monitor client buffer full, dropped event")
		}
	}
}

// HandleStream upgrades the request and streams events until the client leaves.
// An optional call_id query parameter narrows the feed to one call.
func (h *Hub) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).WithField("component", "Monitor").Warn("WebSocket upgrade failed")
		return
	}

	c := &client{
		id:     uuid.New().String(),
		callID: r.URL.Query().Get("call_id"),
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
	}
	h.register(c)

	h.logger.WithFields(logrus.Fields{
		"component": "Monitor",
		"client_id": c.id,
		"call_sid":  c.callID,
	}).Info("Monitor client connected")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	if h.onChange != nil {
		h.onChange(n)
	}
}

func (h *Hub) unregister(c *client) {
	c.closeOnce.Do(func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		n := len(h.clients)
		close(c.send)
		h.mu.Unlock()

		c.conn.Close()

		if h.onChange != nil {
			h.onChange(n)
		}
		h.logger.WithFields(logrus.Fields{
			"component": "Monitor",
			"client_id": c.id,
		}).Info("Monitor client disconnected")
	})
}

// readPump drains client frames so pongs and close frames are processed
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).WithField("component", "Monitor").Debug("Monitor read error")
			}
			return
		}
	}
}

// writePump sends queued events and keepalive pings
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.unregister(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
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

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
	}
}
