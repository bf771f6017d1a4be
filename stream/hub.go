package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"bus-tracker/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Metrics interface {
	StreamClientsSet(n int)
	StreamDroppedInc()
}

// Hub fans position events out to websocket subscribers. Each client owns
// a buffered send channel drained by its own writer goroutine; a client
// whose buffer is full misses the event instead of stalling the hub.
type Hub struct {
	mu        sync.Mutex
	clients   map[*client]struct{}
	broadcast chan model.PositionEvent
	metrics   Metrics
}

type client struct {
	conn    *websocket.Conn
	send    chan model.PositionEvent
	routeID *uint
}

func (c *client) wants(ev model.PositionEvent) bool {
	if c.routeID == nil {
		return true
	}
	return ev.RouteID != nil && *ev.RouteID == *c.routeID
}

func NewHub(m Metrics) *Hub {
	return &Hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan model.PositionEvent, 256),
		metrics:   m,
	}
}

// Run dispatches published events until ctx is cancelled, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case ev := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(ev) {
					continue
				}
				select {
				case c.send <- ev:
				default:
					if h.metrics != nil {
						h.metrics.StreamDroppedInc()
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event without blocking.
func (h *Hub) Publish(ev model.PositionEvent) {
	select {
	case h.broadcast <- ev:
	default:
		log.WithField("bus_id", ev.BusID).Warn("stream broadcast channel full, dropping event")
		if h.metrics != nil {
			h.metrics.StreamDroppedInc()
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events, optionally only those
// of routeID, until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, routeID *uint) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn, send: make(chan model.PositionEvent, sendBuffer), routeID: routeID}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.StreamClientsSet(n)
	}
	log.WithField("remote", c.conn.RemoteAddr().String()).Debug("stream client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.StreamClientsSet(n)
	}
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("stream client read error")
			}
			return
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
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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
