package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"storefront/models"
	"storefront/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type feedClient struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// Hub fans order events out to connected admin sockets.
type Hub struct {
	clients    map[*feedClient]bool
	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan []byte
	done       chan struct{}

	upgrader websocket.Upgrader
}

// NewHub accepts upgrades from allowedOrigins; "*" allows any origin.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[*feedClient]bool),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Run owns the client set until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast queues ev for every connected client. It never blocks the caller: when the
// queue is full the event is dropped for the live feed only.
func (h *Hub) Broadcast(ev models.OrderEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("encode feed event", "err", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		slog.Warn("order feed backlog full, event dropped", "order_id", ev.OrderID, "type", ev.Type)
	}
}

// Live upgrades an admin connection to the order event stream.
//
// GET /api/admin/orders/live
func (h *Handler) Live(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.hub == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "live feed disabled")
		return
	}
	caller := utils.GetCallerFromRequest(r)
	if err := h.gate.WatchFeed(caller); err != nil {
		utils.RespondWithDomainError(w, r, err)
		return
	}

	conn, err := h.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("feed upgrade failed", "err", err)
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, 256), userID: caller.UserID}
	select {
	case h.hub.register <- c:
	case <-h.hub.done:
		_ = conn.Close()
		return
	}
	slog.Info("feed client connected", "user_id", c.userID)

	go writePump(c)
	go readPump(c, h.hub)
}

func writePump(c *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump only watches for the peer going away; the feed is one-way.
func readPump(c *feedClient, hub *Hub) {
	defer func() {
		select {
		case hub.unregister <- c:
		case <-hub.done:
		}
		slog.Info("feed client disconnected", "user_id", c.userID)
	}()

	c.conn.SetReadLimit(512)
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

// Publish lets the hub receive events in-process when no broker is configured.
func (h *Hub) Publish(_ context.Context, ev models.OrderEvent) error {
	h.Broadcast(ev)
	return nil
}
