// Package realtime fans typed JSON events out to WebSocket clients. Every
// client receives every broadcast; filtering, if any, is client-side.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/risk-sentinel/internal/logging"
	"github.com/risk-sentinel/internal/types"
)

// Event is the envelope for every server-to-client message
type Event struct {
	Type      types.EventType        `json:"type"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// clientMessage is the only client-to-server message the hub understands
type clientMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
}

// client is one connected peer. The connection allows only one concurrent
// writer, so every outbound message is queued on send and written by a
// single write pump.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// queue enqueues a message for the write pump. Returns false when the
// client is shut down or its buffer is full.
func (c *client) queue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel exactly once, ending the write pump.
func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump is the sole writer on the connection. It drains send until the
// hub shuts the client down, then closes the connection, which also ends
// the read pump.
func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Hub manages WebSocket connections and broadcasts events to all connected
// clients. Delivery is fire-and-forget: a slow or failed client is dropped,
// and reconnection is entirely client-driven.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	logger     *logging.Logger
}

// NewHub creates a new realtime hub
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger,
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", total).Info("WebSocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.shutdown()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", total).Info("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.queue(msg) {
					delete(h.clients, c)
					c.shutdown()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for delivery to all connected clients. Drops
// the event if the buffer is full rather than blocking the caller.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode broadcast event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.WithField("eventType", event.Type).Warn("Broadcast buffer full, dropping event")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWS handles WebSocket upgrade requests at GET /ws. It greets the new
// client with a connected event and answers ping messages with pong.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.register <- c
	go c.writePump()

	greeting, err := json.Marshal(Event{
		Type:      types.EventConnected,
		Message:   "Connected to DeFi Risk Sentinel",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil {
		c.queue(greeting)
	}

	// Read pump: answer pings and detect disconnects.
	go func() {
		defer func() { h.unregister <- c }()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg clientMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				h.logger.WithError(err).Debug("Ignoring malformed WebSocket message")
				continue
			}
			if msg.Type == "ping" {
				pong, err := json.Marshal(Event{
					Type:      types.EventPong,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
				if err == nil {
					c.queue(pong)
				}
			}
		}
	}()
}

// NotifyProtocolUpdate broadcasts changed protocol fields
func (h *Hub) NotifyProtocolUpdate(protocolID string, data map[string]interface{}) {
	payload := map[string]interface{}{"protocolId": protocolID}
	for k, v := range data {
		payload[k] = v
	}
	h.Broadcast(Event{Type: types.EventProtocolUpdate, Data: payload})
}

// NotifyRiskAlert broadcasts a high-risk alert for a protocol
func (h *Hub) NotifyRiskAlert(protocolID string, riskScore int, message string) {
	h.Broadcast(Event{Type: types.EventRiskAlert, Data: map[string]interface{}{
		"protocolId": protocolID,
		"riskScore":  riskScore,
		"message":    message,
	}})
}

// NotifyNewInsight broadcasts that a new insight was stored for a wallet
func (h *Hub) NotifyNewInsight(insightID, walletAddress, severity string) {
	h.Broadcast(Event{Type: types.EventNewInsight, Data: map[string]interface{}{
		"insightId":     insightID,
		"walletAddress": walletAddress,
		"severity":      severity,
	}})
}

// NotifyPositionChange broadcasts a position change for a wallet
func (h *Hub) NotifyPositionChange(walletAddress string, change map[string]interface{}) {
	payload := map[string]interface{}{"walletAddress": walletAddress}
	for k, v := range change {
		payload[k] = v
	}
	h.Broadcast(Event{Type: types.EventPositionChange, Data: payload})
}
