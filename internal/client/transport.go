package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is the live channel the session depends on. Events() yields
// raw frames and closes when the connection drops.
type Transport interface {
	Connect(ctx context.Context) error
	Send(event interface{}) error
	Events() <-chan []byte
	Close() error
}

// WSTransport implements Transport over a websocket.
type WSTransport struct {
	url    string
	userID string

	mu     sync.Mutex
	conn   *websocket.Conn
	events chan []byte
}

// NewWSTransport creates a websocket transport for the given endpoint,
// e.g. "ws://host:8086/chat/ws".
func NewWSTransport(url, userID string) *WSTransport {
	return &WSTransport{
		url:    url,
		userID: userID,
	}
}

// Connect dials the endpoint and starts the read loop. A fresh events
// channel is created per connection so a reconnect gets a clean stream.
func (t *WSTransport) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("X-User-ID", t.userID)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, t.url, header)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	events := make(chan []byte, 64)

	t.mu.Lock()
	t.conn = conn
	t.events = events
	t.mu.Unlock()

	go func() {
		defer close(events)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case events <- data:
			default:
				// Slow consumer, drop the frame. Persisted state is
				// recoverable from the next page fetch.
			}
		}
	}()
	return nil
}

func (t *WSTransport) Send(event interface{}) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return websocket.ErrCloseSent
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WSTransport) Events() <-chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
