// Package ws implements the WebSocket hub that streams deal lifecycle events
// and scan-cycle summaries to connected dashboards.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/pipeline"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 64
)

// Channel names clients can subscribe to.
const (
	ChannelDeals  = "deals"
	ChannelCycles = "cycles"
)

var defaultChannels = []string{ChannelDeals, ChannelCycles}

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
	mu   sync.RWMutex
}

// subscribeMsg is the JSON message a client sends to manage its channel
// subscriptions.
type subscribeMsg struct {
	Action   string   `json:"action"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// DealEvent is the wire envelope for a committed deal state change.
type DealEvent struct {
	Type      string           `json:"type"` // "deal_transition"
	DealID    string           `json:"deal_id"`
	Item      string           `json:"item"`
	FromState domain.DealState `json:"from_state"`
	ToState   domain.DealState `json:"to_state"`
	Score     float64          `json:"score"`
	Timestamp time.Time        `json:"timestamp"`
}

// Hub manages connected WebSocket clients and broadcasts deal lifecycle
// events to those subscribed to the relevant channel.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	logger     *slog.Logger
	mode       string
	startedAt  time.Time
}

type broadcastMsg struct {
	channel string
	data    []byte
}

// Config captures runtime metadata included in the status snapshot sent to
// clients on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
}

// NewHub creates a WebSocket hub.
func NewHub(logger *slog.Logger, cfg Config) *Hub {
	mode := cfg.Mode
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger.With(slog.String("component", "ws_hub")),
		mode:       mode,
		startedAt:  startedAt,
	}
}

// DealTransition broadcasts a committed deal state change to subscribed
// clients. It implements the deal manager's event sink and never blocks.
func (h *Hub) DealTransition(d domain.Deal, from, to domain.DealState) {
	data, err := json.Marshal(DealEvent{
		Type:      "deal_transition",
		DealID:    d.ID,
		Item:      d.Identity.Name,
		FromState: from,
		ToState:   to,
		Score:     d.Score.TotalScore,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	h.Publish(ChannelDeals, data)
}

// CycleEvent is the wire envelope for a finished scan cycle.
type CycleEvent struct {
	Type      string               `json:"type"` // "cycle_report"
	Report    pipeline.CycleReport `json:"report"`
	Timestamp time.Time            `json:"timestamp"`
}

// CycleFinished broadcasts a scan-cycle summary to subscribed clients. It
// implements the orchestrator's cycle sink and never blocks.
func (h *Hub) CycleFinished(report pipeline.CycleReport) {
	data, err := json.Marshal(CycleEvent{
		Type:      "cycle_report",
		Report:    report,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	h.Publish(ChannelCycles, data)
}

// Publish queues raw JSON for broadcast on a channel, dropping the message if
// the hub is saturated.
func (h *Hub) Publish(channel string, data []byte) {
	select {
	case h.broadcast <- broadcastMsg{channel: channel, data: data}:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping message",
			slog.String("channel", channel),
		)
	}
}

// Run starts the hub's main event loop. It should be called in a goroutine
// and exits when the context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.Int("total_clients", h.clientCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.isSubscribed(msg.channel) {
					select {
					case c.send <- msg.data:
					default:
						// Client's send buffer is full; drop the message.
						h.logger.Warn("ws: dropping message for slow client")
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}

	// Subscribe to all channels initially.
	for _, ch := range defaultChannels {
		c.subs[ch] = true
	}

	h.register <- c
	c.sendInitialStatus()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump reads messages from the WebSocket connection and handles
// subscription management requests.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if jsonErr := json.Unmarshal(message, &sub); jsonErr == nil && sub.Action != "" {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
	}
}

// sendInitialStatus pushes a small JSON envelope so clients can immediately
// mark the connection as healthy before any deal events flow.
func (c *client) sendInitialStatus() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	msg, err := json.Marshal(map[string]any{
		"type": "status",
		"payload": map[string]any{
			"mode":           c.hub.mode,
			"ws_connected":   true,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

// writePump pumps messages from the hub to the WebSocket connection, with
// periodic ping frames for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
