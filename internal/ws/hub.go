// Package ws is the push channel: browsers subscribe to named channels
// ("alerts", "dashboard", "commands", optionally scoped to one instrument)
// and the server fans events out to them. Delivery is at-most-once with no
// acknowledgment or replay beyond the alert history handshake; a client
// that cannot keep up is dropped.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

// Event is the wire shape of every push message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type subscribeMsg struct {
	Action       string `json:"action"`
	Channel      string `json:"channel"`
	InstrumentID string `json:"instrument_id,omitempty"`
}

type client struct {
	send     chan []byte
	closing  sync.Once
	channels map[string]bool
}

func (c *client) close() {
	c.closing.Do(func() { close(c.send) })
}

// enqueue drops the message when the client's buffer is full; slow clients
// do not hold up the fan-out.
func (c *client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	// history supplies the payload pushed to a client right after it
	// subscribes to a channel (nil payload means no handshake for that
	// channel). Wired to the alert store's recent-10 view.
	history func(channel string) any

	log zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		log:     log.With().Str("component", "ws-hub").Logger(),
	}
}

func (h *Hub) SetHistory(fn func(channel string) any) {
	h.history = fn
}

// Broadcast sends one event to every client subscribed to the channel.
// Fire-and-forget: delivery failures are not reported to the caller.
func (h *Hub) Broadcast(channel, event string, payload any) {
	msg, err := json.Marshal(Event{Type: event, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal broadcast")
		return
	}

	h.mu.RLock()
	var stale []*client
	for c := range h.clients {
		if !c.channels[channel] {
			continue
		}
		if !c.enqueue(msg) {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	if len(stale) > 0 {
		h.mu.Lock()
		for _, c := range stale {
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
		}
		h.mu.Unlock()
		h.log.Warn().Int("dropped", len(stale)).Msg("dropped slow websocket clients")
	}
}

// Subscribers reports how many clients currently listen on a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.channels[channel] {
			n++
		}
	}
	return n
}

// UpgradeGuard rejects plain HTTP requests on the websocket route.
func UpgradeGuard(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns the fiber handler serving one websocket connection.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *Hub) serve(conn *websocket.Conn) {
	cl := &client{
		send:     make(chan []byte, sendBuffer),
		channels: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[cl] = true
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writer(conn, cl, done)

	defer func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		cl.close()
		<-done
		conn.Close()
	}()

	for {
		var msg subscribeMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		h.handleSubscribe(cl, msg)
	}
}

func (h *Hub) handleSubscribe(cl *client, msg subscribeMsg) {
	key := msg.Channel
	if msg.InstrumentID != "" {
		key = msg.Channel + ":" + msg.InstrumentID
	}
	if key == "" {
		return
	}

	switch msg.Action {
	case "subscribe":
		// Registering and pushing history under the write lock keeps the
		// handshake ahead of any live event on the same channel.
		h.mu.Lock()
		cl.channels[key] = true
		if h.history != nil {
			if payload := h.history(key); payload != nil {
				if b, err := json.Marshal(Event{Type: "history", Payload: payload}); err == nil {
					cl.enqueue(b)
				}
			}
		}
		h.mu.Unlock()
		h.log.Debug().Str("channel", key).Msg("client subscribed")
	case "unsubscribe":
		h.mu.Lock()
		delete(cl.channels, key)
		h.mu.Unlock()
	}
}

func (h *Hub) writer(conn *websocket.Conn, cl *client, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-cl.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
