package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sportsmeet/listing-chat/internal/config"
	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/pkg/log"
)

// Client is one websocket connection. A user with several tabs open
// holds several clients.
type Client struct {
	ID   string
	User *domain.User
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	mu     sync.Mutex
	joined map[string]struct{}
	config config.WebSocketConfig
}

// NewClient creates a client for an upgraded connection.
func NewClient(id string, user *domain.User, h *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:     id,
		User:   user,
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		joined: make(map[string]struct{}),
		config: cfg,
	}
}

// MarkJoined records that this connection joined a room.
func (c *Client) MarkJoined(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joined == nil {
		c.joined = make(map[string]struct{})
	}
	c.joined[roomID] = struct{}{}
}

// MarkLeft records that this connection left a room.
func (c *Client) MarkLeft(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joined, roomID)
}

// IsJoined reports whether this connection joined a room.
func (c *Client) IsJoined(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[roomID]
	return ok
}

// ReadPump reads incoming frames and hands them to handler. It owns the
// read side of the connection and unregisters the client on exit.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the Send channel onto the connection and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent marshals and queues an event for this connection. A full
// send buffer drops the event rather than blocking the hub.
func (c *Client) SendEvent(event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}
