package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/persist/pkg/storage"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Watch clients only send control frames.
	maxClientMessage = 512
)

// EventHello is the first event sent on a watch connection.
const EventHello = "hello"

// Event is a message on the watch stream.
type Event struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Key   string          `json:"key,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// hub fans store changes out to watch connections.
type hub struct {
	upgrader websocket.Upgrader
	buffer   int
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]*watchClient
	closed  bool
}

type watchClient struct {
	id   string
	key  string
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newHub(buffer int, checkOrigin func(*http.Request) bool, logger *slog.Logger) *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		buffer:  buffer,
		logger:  logger,
		clients: make(map[string]*watchClient),
	}
}

// handleWatch upgrades the connection and streams events until the client
// goes away.
func (h *hub) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("watch upgrade failed", "error", err)
		return
	}

	c := &watchClient{
		id:   uuid.NewString(),
		key:  r.URL.Query().Get("key"),
		conn: conn,
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}

	hello, _ := json.Marshal(Event{Type: EventHello, ID: c.id})
	c.send <- hello

	if !h.register(c) {
		c.close()
		return
	}
	h.logger.Debug("watch client connected", "client", c.id, "key", c.key)

	go c.writePump()
	c.readPump()

	h.unregister(c)
	c.close()
	h.logger.Debug("watch client disconnected", "client", c.id)
}

func (h *hub) register(c *watchClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *hub) unregister(c *watchClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

// publish queues change for every interested client. A client whose queue
// is full is disconnected rather than blocking the publisher.
func (h *hub) publish(change storage.Change) {
	ev := Event{Type: string(change.Kind), Key: change.Key}
	if change.Kind == storage.ChangeSet {
		if !json.Valid([]byte(change.Text)) {
			h.logger.Warn("skipping change with invalid JSON", "key", change.Key)
			return
		}
		ev.Value = json.RawMessage(change.Text)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	var slow []*watchClient
	for _, c := range h.clients {
		if c.key != "" && c.key != change.Key {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow watch client", "client", c.id)
		h.unregister(c)
		c.close()
	}
}

// count returns the number of connected clients.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// close disconnects every client and rejects new ones.
func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*watchClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*watchClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (c *watchClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

// readPump discards client messages and returns when the connection fails.
func (c *watchClient) readPump() {
	c.conn.SetReadLimit(maxClientMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer of data frames on the connection.
func (c *watchClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}
