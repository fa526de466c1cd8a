// Package livereload tells connected browsers to reload when the content
// root changes.
//
// Browsers load a small script from ScriptPath which opens a websocket to
// SocketPath. Every call to Hub.Reload sends each connected browser a
// {"type":"reload"} message.
package livereload

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/docsite/internal/logging"
)

const (
	// SocketPath is where browsers connect.
	SocketPath = "/__livereload"

	// ScriptPath serves the client script.
	ScriptPath = "/__livereload.js"

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Messages queued per client before it counts as slow.
	sendBuffer = 8
)

// Message is the JSON frame sent to browsers.
type Message struct {
	Type string `json:"type"`
}

// ErrHubStopped is returned once the hub's Run loop has exited.
var ErrHubStopped = errors.New("live reload hub stopped")

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected browsers and fans reload messages out to them.
type Hub struct {
	logger     logging.Logger
	clients    map[*client]struct{}
	mutex      sync.RWMutex
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger:     logger.WithComponent("livereload"),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 1),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug(ctx, "browser connected", "clients", count)

		case c := <-h.unregister:
			h.remove(c)

		case message := <-h.broadcast:
			h.mutex.RLock()
			var slow []*client
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					slow = append(slow, c)
				}
			}
			h.mutex.RUnlock()

			for _, c := range slow {
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Reload asks every connected browser to reload. It never blocks: a reload
// already queued covers this one.
func (h *Hub) Reload() {
	message, _ := json.Marshal(Message{Type: "reload"})
	select {
	case h.broadcast <- message:
	default:
	}
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Register mounts the socket and script endpoints on mux.
func (h *Hub) Register(mux *http.ServeMux) {
	mux.Handle(SocketPath, h)
	mux.HandleFunc(ScriptPath, serveScript)
}

// ServeHTTP upgrades the request to a websocket and holds it until the
// browser or the hub goes away. Origins must match the request host.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, ErrHubStopped.Error(), http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	case <-r.Context().Done():
		conn.Close(websocket.StatusGoingAway, "")
		return
	}

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

// readPump discards incoming frames and returns when the peer disconnects.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!errors.Is(err, context.Canceled) {
				h.logger.Debug(ctx, "websocket read ended", "error", err.Error())
			}
			return
		}
	}
}

// writePump sends queued messages and pings until the send channel closes.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusGoingAway, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
