package bridge

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/monavatar/internal/bus"
	"github.com/normanking/monavatar/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxCommandSize = 1 << 20 // say commands can carry a full cue track
	sendBuffer     = 64      // about one second of frames at 60Hz
)

// client is one connected render adapter. Frames are fanned out through
// a buffered channel; a client that stops draining loses frames rather
// than stalling the animation loop.
type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the adapter connections. Broadcast never blocks.
type Hub struct {
	log      zerolog.Logger
	events   *bus.Bus
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]*client

	commands chan Command
}

func NewHub(log zerolog.Logger, events *bus.Bus) *Hub {
	return &Hub{
		log:    log,
		events: events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[uuid.UUID]*client),
		commands: make(chan Command, 16),
	}
}

// Commands returns adapter control messages for the host to drain.
func (h *Hub) Commands() <-chan Command {
	return h.commands
}

// ClientCount reports connected adapters.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleFrames upgrades an HTTP request to the frame stream.
func (h *Hub) HandleFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast marshals the frame once and fans it out. Slow clients drop
// frames; the next frame supersedes anything they missed.
func (h *Hub) Broadcast(frame Frame) {
	frame.Type = "frame"
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	h.fanOut(data)
}

// BroadcastEvent forwards a bus event to every adapter.
func (h *Hub) BroadcastEvent(ev bus.Event) {
	data, err := json.Marshal(Notice{Type: "event", Event: string(ev.Type), Data: ev.Data})
	if err != nil {
		return
	}
	h.fanOut(data)
}

func (h *Hub) fanOut(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			metrics.WSFramesDropped.Inc()
		}
	}
}

// Close disconnects every adapter.
func (h *Hub) Close() {
	h.mu.Lock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.mu.Unlock()
	metrics.WSClients.Set(0)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSClients.Set(float64(n))
	h.log.Info().Str("client", c.id.String()).Int("clients", n).Msg("Render adapter connected")
	h.publish(bus.Event{Type: bus.EventTypeClientJoined, Data: map[string]any{"client": c.id.String()}})
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSClients.Set(float64(n))
	h.log.Info().Str("client", c.id.String()).Int("clients", n).Msg("Render adapter disconnected")
	h.publish(bus.Event{Type: bus.EventTypeClientLeft, Data: map[string]any{"client": c.id.String()}})
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxCommandSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("client", c.id.String()).Msg("WebSocket read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			h.log.Warn().Err(err).Str("client", c.id.String()).Msg("Invalid command payload")
			continue
		}
		select {
		case h.commands <- cmd:
		default:
			h.log.Warn().Str("type", cmd.Type).Msg("Command queue full, dropping")
		}
	}
}

func (h *Hub) writePump(c *client) {
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

func (h *Hub) publish(ev bus.Event) {
	if h.events != nil {
		h.events.Publish(ev)
	}
}
