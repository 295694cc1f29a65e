// Package realtime pushes lifecycle events to websocket clients. Each
// battle is a room; every event published on the bus is forwarded verbatim
// to all sockets subscribed to that battle.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkalnins/arena/internal/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*client]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uuid.UUID]map[*client]bool)}
}

// envelope is the wire shape: the event name plus its payload unchanged.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Run consumes events until the channel closes. Call in its own goroutine.
func (h *Hub) Run(events <-chan event.Event) {
	for ev := range events {
		payload, err := json.Marshal(envelope{Event: ev.Name(), Data: ev})
		if err != nil {
			slog.Error("failed to encode event", "event", ev.Name(), "error", err)
			continue
		}
		h.broadcast(ev.RoomID(), payload)
	}
}

// broadcast queues the payload to every socket in the room. A client whose
// buffer is full is dropped rather than waited on.
func (h *Hub) broadcast(roomID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[roomID] {
		select {
		case c.send <- payload:
		default:
			go c.conn.Close()
		}
	}
}

// ServeWS upgrades the request and subscribes the socket to the battle's
// room until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, battleID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.addClient(battleID, c)

	go c.writePump()
	c.readPump()

	h.removeClient(battleID, c)
	conn.Close()
	close(c.send)
}

func (h *Hub) addClient(roomID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*client]bool)
	}
	h.rooms[roomID][c] = true
}

func (h *Hub) removeClient(roomID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[roomID], c)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
}

// readPump discards inbound frames; the stream is push-only. It exists to
// notice disconnects and answer pings.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
