package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/logger"
	"github.com/AlexTLDR/seatplan/internal/metrics"
	"github.com/AlexTLDR/seatplan/internal/roster"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	sendBuffer = 32
)

// Named streams.
const (
	StreamGuests  = "guests"
	StreamSeating = "seating"
	StreamNotices = "notices"
)

// Events.
const (
	EventChanged = "changed"
	EventNotice  = "notice"
	EventPong    = "pong"
)

// Message is the JSON payload written to clients.
type Message struct {
	Stream string `json:"stream"`
	Event  string `json:"event"`
	Data   any    `json:"data,omitempty"`
}

type control struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// Hub fans messages out to websocket clients subscribed to named streams.
type Hub struct {
	mu       sync.RWMutex
	streams  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[hostOf(o)] = struct{}{}
	}

	return &Hub{
		streams: make(map[string]map[*client]struct{}),
		log:     logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				host := hostOf(origin)
				if host == hostOf(r.Host) || isLoopback(host) {
					return true
				}
				_, ok := allowed[host]
				return ok
			},
		},
	}
}

// ServeHTTP upgrades the request and subscribes the client to the streams
// named in the "streams" query parameter (comma separated, default all).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	streams := []string{StreamGuests, StreamSeating, StreamNotices}
	if q := r.URL.Query().Get("streams"); q != "" {
		streams = strings.Split(q, ",")
	}

	c := &client{hub: h, conn: conn, send: make(chan Message, sendBuffer), subs: make(map[string]struct{})}
	h.subscribe(c, streams)
	metrics.RealtimeClients.Inc()

	go c.writeLoop()
	c.readLoop()
}

// Broadcast delivers a message to every client subscribed to stream.
func (h *Hub) Broadcast(stream string, msg Message) {
	stream = normalize(stream)
	msg.Stream = stream

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.streams[stream] {
		h.enqueue(c, msg)
	}
}

// Notify forwards a roster notice to the notices stream.
func (h *Hub) Notify(n roster.Notice) {
	h.Broadcast(StreamNotices, Message{Event: EventNotice, Data: n})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*client]struct{})
	for _, clients := range h.streams {
		for c := range clients {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

func (h *Hub) subscribe(c *client, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}

	for _, s := range streams {
		s = normalize(s)
		if s == "" {
			continue
		}
		if h.streams[s] == nil {
			h.streams[s] = make(map[*client]struct{})
		}
		h.streams[s][c] = struct{}{}
		c.subs[s] = struct{}{}
	}
}

func (h *Hub) unsubscribe(c *client, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range streams {
		h.removeLocked(c, normalize(s))
	}
}

func (h *Hub) removeLocked(c *client, stream string) {
	if clients, ok := h.streams[stream]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.streams, stream)
		}
	}
	delete(c.subs, stream)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range c.subs {
		h.removeLocked(c, s)
	}
	c.closed = true
}

// reply sends to a single client unless it is already closed.
func (h *Hub) reply(c *client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !c.closed {
		h.enqueue(c, msg)
	}
}

// enqueue drops clients that cannot keep up.
func (h *Hub) enqueue(c *client, msg Message) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn("dropping slow realtime client")
		go c.close()
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
	once sync.Once

	// guarded by hub.mu
	subs   map[string]struct{}
	closed bool
}

func (c *client) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("realtime client closed", zap.Error(err))
			}
			return
		}

		var ctrl control
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "subscribe":
			c.hub.subscribe(c, ctrl.Streams)
		case "unsubscribe":
			c.hub.unsubscribe(c, ctrl.Streams)
		case "ping":
			c.hub.reply(c, Message{Event: EventPong})
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.conn.Close()
		metrics.RealtimeClients.Dec()
	})
}

func hostOf(s string) string {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Host
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func normalize(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}
