// Package realtime pushes notifications to connected WebSocket clients.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var ErrHubStopped = errors.New("realtime hub stopped")

const (
	sendBuffer = 32
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket connection of an authenticated user.
type Client struct {
	UserID int
	Send   chan []byte
	conn   *websocket.Conn
}

func NewClient(userID int, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, Send: make(chan []byte, sendBuffer), conn: conn}
}

type userMessage struct {
	userID int
	data   []byte
}

// Hub routes messages to every connection of a user. A user may hold several connections.
type Hub struct {
	users      map[int]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliver    chan userMessage
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		users:      make(map[int]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan userMessage, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.users[c.UserID] == nil {
				h.users[c.UserID] = make(map[*Client]bool)
			}
			h.users[c.UserID][c] = true
			total := len(h.users[c.UserID])
			h.mu.Unlock()
			h.logger.WithFields(logrus.Fields{"user_id": c.UserID, "connections": total}).Debug("WebSocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case m := <-h.deliver:
			h.mu.Lock()
			for c := range h.users[m.userID] {
				select {
				case c.Send <- m.data:
				default:
					h.logger.WithField("user_id", c.UserID).Warn("WebSocket client too slow, disconnecting")
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	conns := h.users[c.UserID]
	if !conns[c] {
		return
	}
	delete(conns, c)
	close(c.Send)
	if len(conns) == 0 {
		delete(h.users, c.UserID)
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// PushToUser queues payload for every connection of userID.
func (h *Hub) PushToUser(ctx context.Context, userID int, payload []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.deliver <- userMessage{userID: userID, data: payload}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Connections(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Serve registers the client and pumps its connection until it closes.
func (h *Hub) Serve(c *Client) {
	if err := h.Register(c); err != nil {
		c.conn.Close()
		return
	}
	go h.writePump(c)
	h.readPump(c)
}

// readPump only watches for disconnects. Clients never send anything meaningful.
func (h *Hub) readPump(c *Client) {
	defer h.Unregister(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).WithField("user_id", c.UserID).Debug("WebSocket read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
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
