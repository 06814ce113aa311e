package devserver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/assetpack/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Message types sent to the browser.
const (
	MessageReload     = "full_reload"
	MessageBuildError = "build_error"
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// client is one connected browser.
type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *hub
}

// hub fans build notifications out to every connected browser.
type hub struct {
	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan []byte

	clients      map[*websocket.Conn]*client
	clientsMutex sync.RWMutex

	// done is closed when run returns.
	done chan struct{}

	logger logging.Logger
}

func newHub(logger logging.Logger) *hub {
	return &hub{
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 16),
		clients:    make(map[*websocket.Conn]*client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *hub) count() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// send queues msg for every client. It never blocks the caller.
func (h *hub) send(msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn(context.Background(), nil, "Dropping browser notification, hub is busy")
	}
}

func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.clientsMutex.Lock()
			h.clients[c.conn] = c
			total := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(ctx, "Client connected", "total", total)

		case conn := <-h.unregister:
			h.drop(conn)

		case message := <-h.broadcast:
			h.clientsMutex.RLock()
			var failed []*websocket.Conn
			for conn, c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Client's send channel is full, mark for removal
					failed = append(failed, conn)
				}
			}
			h.clientsMutex.RUnlock()

			for _, conn := range failed {
				h.drop(conn)
			}
		}
	}
}

func (h *hub) drop(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if c, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(c.send)
		h.logger.Debug(context.Background(), "Client disconnected", "total", len(h.clients))
	}
}

func (h *hub) closeAll() {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	for conn, c := range h.clients {
		close(c.send)
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.clients = make(map[*websocket.Conn]*client)
}

// readPump discards browser messages and notices disconnects.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c.conn:
		case <-c.hub.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
