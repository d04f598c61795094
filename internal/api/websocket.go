package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/GitaCompanion/internal/logging"
	"github.com/FocuswithJustin/GitaCompanion/internal/store"
)

const (
	wsReadTimeout    = 60 * time.Second
	wsPingInterval   = 54 * time.Second
	wsWriteTimeout   = 10 * time.Second
	wsMaxMessageSize = 4096
	wsSendBuffer     = 256
)

// Event types pushed to reading-sync clients.
const (
	EventConnected = "connected"
	EventProgress  = "progress"
)

// Event is a reading-sync message sent over WebSocket.
type Event struct {
	Type      string          `json:"type"`
	Progress  *store.Progress `json:"progress,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Publisher delivers events to one user's open connections.
type Publisher interface {
	Publish(userID string, ev Event)
}

// Client represents a WebSocket client connection.
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

type userMessage struct {
	userID string
	data   []byte
}

// Hub keeps every user's open connections and fans events out to them.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan userMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	stopped    chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan userMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run handles registration and delivery until Stop is called.
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for userID, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			set := h.clients[client.userID]
			if set == nil {
				set = make(map[*Client]bool)
				h.clients[client.userID] = set
			}
			set[client] = true
			count := len(set)
			h.mu.Unlock()
			if hello, err := encodeEvent(Event{Type: EventConnected}); err == nil {
				client.send <- hello
			}
			logging.WebSocketEvent("client_connected", count, "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			set := h.clients[client.userID]
			if _, ok := set[client]; ok {
				delete(set, client)
				close(client.send)
				if len(set) == 0 {
					delete(h.clients, client.userID)
				}
			}
			count := len(set)
			h.mu.Unlock()
			logging.WebSocketEvent("client_disconnected", count, "user_id", client.userID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			set := h.clients[msg.userID]
			for client := range set {
				select {
				case client.send <- msg.data:
				default:
					// Client channel full, disconnect
					close(client.send)
					delete(set, client)
				}
			}
			if set != nil && len(set) == 0 {
				delete(h.clients, msg.userID)
			}
			h.mu.Unlock()
		}
	}
}

// Stop closes every client connection and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// Publish queues ev for every connection of userID. Events are dropped when
// the hub is stopped or its queue is full.
func (h *Hub) Publish(userID string, ev Event) {
	data, err := encodeEvent(ev)
	if err != nil {
		logging.Error("failed to marshal reading-sync event", "error", err)
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- userMessage{userID: userID, data: data}:
	default:
		logging.Warn("broadcast channel full, dropping message", "user_id", userID)
	}
}

// ClientCount returns the number of open connections for userID.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// TotalClients returns the number of open connections across all users.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func encodeEvent(ev Event) ([]byte, error) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(ev)
}

// readPump reads (and discards) client messages so pongs and close frames
// are processed.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			return
		}
	}
}

// writePump writes queued events and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// upgrader builds a WebSocket upgrader that accepts requests without an
// Origin header and, when origins are configured, only those origins.
func upgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			for _, o := range allowed {
				if o == "*" || o == origin {
					return true
				}
			}
			logging.SecurityEvent("websocket_origin_rejected", "websocket", "origin", origin)
			return false
		},
	}
}

// handleWebSocket authenticates the caller from the Authorization header
// or the token query parameter and subscribes the connection to that
// user's reading-sync events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	userID, err := s.authenticate(r, token)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	up := upgrader(s.cfg.AllowedOrigins)
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    s.hub,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
	}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
