package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sportsmeet/listing-chat/internal/config"
	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/pkg/log"
	"github.com/sportsmeet/listing-chat/pkg/pubsub"
)

// Hub multiplexes websocket connections into rooms and fans events out
// to every joined connection. Each room owns its own lock; the hub-level
// lock only guards the room map itself.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]*room
	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEnvelope
	mu         sync.RWMutex
	config     config.WebSocketConfig

	// Optional multi-instance backplane.
	backplane  pubsub.PubSub
	instanceID string
}

type roomEnvelope struct {
	roomID  string
	payload []byte
	exclude string // client ID to exclude
}

// NewHub creates a hub without a backplane (single instance).
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEnvelope, 256),
		config:     cfg,
	}
}

// NewHubWithBackplane creates a hub that mirrors room events through a
// pub/sub backplane so multiple instances fan out consistently.
func NewHubWithBackplane(cfg config.WebSocketConfig, ps pubsub.PubSub, instanceID string) *Hub {
	h := NewHub(cfg)
	h.backplane = ps
	h.instanceID = instanceID
	return h
}

// Run processes register/unregister/broadcast events. Call in its own
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.removeClient(client)

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// RunBackplane consumes remote room events until ctx is cancelled.
// Events originated by this instance are skipped; everything else is
// re-broadcast locally.
func (h *Hub) RunBackplane(ctx context.Context) error {
	if h.backplane == nil {
		return nil
	}

	events, err := h.backplane.SubscribePattern(ctx, pubsub.ChannelPatternAllRooms)
	if err != nil {
		return err
	}

	go func() {
		for event := range events {
			if event.Origin == h.instanceID {
				continue
			}
			h.broadcast <- &roomEnvelope{
				roomID:  event.RoomID,
				payload: event.Payload,
			}
		}
	}()
	return nil
}

// Register adds a connection to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a connection and all its room joins.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom adds a connection to a room. Joins are per connection, so a
// user with several open tabs is represented by several entries. The
// lookup-or-create and the add happen under the hub lock so a concurrent
// unregister cannot prune the room out from under the joiner.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		r = newRoom(roomID)
		h.rooms[roomID] = r
	}
	r.addClient(client)
	h.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldRoomID, roomID).Msg("client joined room")
}

// LeaveRoom removes a connection from a room.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if ok && r.removeClient(client.ID) {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()
	if ok {
		l := log.L()
		l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldRoomID, roomID).Msg("client left room")
	}
}

// BroadcastToRoom fans a typed event out to every connection in the
// room except the excluded one, and mirrors it to the backplane when
// one is configured.
func (h *Hub) BroadcastToRoom(ctx context.Context, roomID, eventType string, payload interface{}, exclude string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	h.broadcast <- &roomEnvelope{
		roomID:  roomID,
		payload: data,
		exclude: exclude,
	}

	if h.backplane != nil {
		event, err := pubsub.NewEvent(eventType, roomID, h.instanceID, payload)
		if err != nil {
			return err
		}
		if err := h.backplane.Publish(ctx, pubsub.RoomEventsChannel(roomID), event); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("backplane publish failed")
		}
	}
	return nil
}

// RoomClientCount returns how many connections are joined to a room.
func (h *Hub) RoomClientCount(roomID string) int {
	r := h.room(roomID)
	if r == nil {
		return 0
	}
	return r.clientCount()
}

// Typing marks (room, user) as typing and broadcasts user_typing to the
// other connections. The mark self-expires after the configured TTL.
func (h *Hub) Typing(ctx context.Context, roomID, userID, exclude string) {
	r := h.room(roomID)
	if r == nil {
		return
	}

	started := r.startTyping(userID, h.config.TypingTTL, func() {
		h.emitStopTyping(roomID, userID)
	})
	if started {
		h.BroadcastToRoom(ctx, roomID, domain.EvtUserTyping, &domain.UserTypingEvent{
			Type:   domain.EvtUserTyping,
			RoomID: roomID,
			UserID: userID,
		}, exclude)
	}
}

// StopTyping clears the typing mark and broadcasts user_stop_typing.
func (h *Hub) StopTyping(ctx context.Context, roomID, userID, exclude string) {
	r := h.room(roomID)
	if r == nil {
		return
	}
	if r.stopTyping(userID) {
		h.BroadcastToRoom(ctx, roomID, domain.EvtUserStopTyping, &domain.UserTypingEvent{
			Type:   domain.EvtUserStopTyping,
			RoomID: roomID,
			UserID: userID,
		}, exclude)
	}
}

// TypingUsers returns the users currently marked typing in a room.
func (h *Hub) TypingUsers(roomID string) []string {
	r := h.room(roomID)
	if r == nil {
		return nil
	}
	return r.typingUsers()
}

func (h *Hub) emitStopTyping(roomID, userID string) {
	h.BroadcastToRoom(context.Background(), roomID, domain.EvtUserStopTyping, &domain.UserTypingEvent{
		Type:   domain.EvtUserStopTyping,
		RoomID: roomID,
		UserID: userID,
	}, "")
}

// room returns the room, or nil when nobody is joined.
func (h *Hub) room(roomID string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

func (h *Hub) deliver(env *roomEnvelope) {
	r := h.room(env.roomID)
	if r == nil {
		return
	}

	for _, client := range r.snapshot() {
		if client.ID == env.exclude {
			continue
		}
		select {
		case client.Send <- env.payload:
		default:
			// Slow consumer, drop the connection.
			go h.Unregister(client)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for roomID, r := range h.rooms {
		if r.removeClient(client.ID) {
			delete(h.rooms, roomID)
		}
	}
	delete(h.clients, client.ID)
	close(client.Send)
	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")
}
