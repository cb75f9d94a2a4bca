package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

type notification struct {
	userID  string
	payload []byte
}

// Hub tracks the open live-query subscriptions of every user. A user may have
// several (one per open tab). Only the Run goroutine touches clients.
type Hub struct {
	register   chan *client
	unregister chan *client
	notify     chan notification
	count      chan countRequest
	clients    map[string]map[*client]struct{}
	done       chan struct{}
	log        *zap.Logger
}

type countRequest struct {
	userID string
	reply  chan int
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		notify:     make(chan notification, 256),
		count:      make(chan countRequest),
		clients:    make(map[string]map[*client]struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					h.drop(c)
				}
			}
			return
		case c := <-h.register:
			set, ok := h.clients[c.userID]
			if !ok {
				set = make(map[*client]struct{})
				h.clients[c.userID] = set
			}
			set[c] = struct{}{}
		case c := <-h.unregister:
			h.drop(c)
		case req := <-h.count:
			req.reply <- len(h.clients[req.userID])
		case msg := <-h.notify:
			for c := range h.clients[msg.userID] {
				select {
				case c.send <- msg.payload:
				default:
					h.log.Warn("ws: dropping slow subscriber", zap.String("user_id", c.userID))
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// Subscribers reports how many connections userID has open.
func (h *Hub) Subscribers(userID string) int {
	req := countRequest{userID: userID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) send(userID string, payload []byte) {
	select {
	case h.notify <- notification{userID: userID, payload: payload}:
	case <-h.done:
	}
}

func (h *Hub) add(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *client {
	return &client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
	}
}

// readPump only exists to process pongs and notice the peer going away.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
