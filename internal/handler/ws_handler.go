package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sportsmeet/listing-chat/internal/config"
	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/internal/hub"
	"github.com/sportsmeet/listing-chat/internal/membership"
	"github.com/sportsmeet/listing-chat/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections and routes live-channel events. The
// hub never persists anything: send_message is only a broadcast trigger
// for a message the REST path already stored.
type WSHandler struct {
	hub     *hub.Hub
	members membership.Provider
	wsCfg   config.WebSocketConfig
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(h *hub.Hub, members membership.Provider, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		members: members,
		wsCfg:   wsCfg,
	}
}

// RegisterRoutes registers the websocket endpoint.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/chat/ws", Identity(h.members), h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and starts the pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	user := CurrentUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), user, h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleEvent)
}

func (h *WSHandler) handleEvent(client *hub.Client, raw []byte) {
	var base domain.BaseEvent
	if err := json.Unmarshal(raw, &base); err != nil {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid event format"))
		return
	}

	ctx := context.Background()

	switch base.Type {
	case domain.EvtJoinRoom:
		var evt domain.JoinRoomEvent
		if err := json.Unmarshal(raw, &evt); err != nil || evt.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid join_room event"))
			return
		}
		h.handleJoinRoom(ctx, client, evt.RoomID)

	case domain.EvtLeaveRoom:
		var evt domain.LeaveRoomEvent
		if err := json.Unmarshal(raw, &evt); err != nil || evt.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid leave_room event"))
			return
		}
		h.hub.LeaveRoom(client, evt.RoomID)
		client.MarkLeft(evt.RoomID)
		client.SendEvent(&domain.RoomLeftEvent{Type: domain.EvtRoomLeft, RoomID: evt.RoomID})

	case domain.EvtTyping, domain.EvtStopTyping:
		var evt domain.TypingEvent
		if err := json.Unmarshal(raw, &evt); err != nil || evt.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid typing event"))
			return
		}
		if !client.IsJoined(evt.RoomID) {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeNotInRoom, "join the room first"))
			return
		}
		if base.Type == domain.EvtTyping {
			h.hub.Typing(ctx, evt.RoomID, client.User.ID, client.ID)
		} else {
			h.hub.StopTyping(ctx, evt.RoomID, client.User.ID, client.ID)
		}

	case domain.EvtSendMessage:
		var evt domain.SendMessageEvent
		if err := json.Unmarshal(raw, &evt); err != nil || evt.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid send_message event"))
			return
		}
		h.handleSendMessage(ctx, client, &evt)

	case domain.EvtPing:
		client.SendEvent(map[string]string{"type": domain.EvtPong})

	default:
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "unknown event type"))
	}
}

func (h *WSHandler) handleJoinRoom(ctx context.Context, client *hub.Client, roomID string) {
	m, err := h.members.GetRoomMembership(ctx, roomID, client.User.ID)
	if err != nil {
		if errors.Is(err, membership.ErrRoomNotFound) {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "room not found"))
		} else {
			l := log.L()
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("membership lookup failed")
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeInternalError, "membership lookup failed"))
		}
		return
	}
	if !m.CanParticipate() && !client.User.IsAdmin {
		// Denied joins leak nothing about the room.
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeForbidden, "not a member of this room"))
		return
	}

	h.hub.JoinRoom(client, roomID)
	client.MarkJoined(roomID)
	client.SendEvent(&domain.RoomJoinedEvent{Type: domain.EvtRoomJoined, RoomID: roomID})
}

// handleSendMessage re-broadcasts an already-persisted message to the
// other connections in the room. The sender is excluded: it already has
// the message from its synchronous create response.
func (h *WSHandler) handleSendMessage(ctx context.Context, client *hub.Client, evt *domain.SendMessageEvent) {
	if !client.IsJoined(evt.RoomID) {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeNotInRoom, "join the room first"))
		return
	}
	if evt.Message.ID == "" || evt.Message.RoomID != evt.RoomID {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid message payload"))
		return
	}
	if evt.Message.AuthorID != client.User.ID {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeForbidden, "cannot broadcast for another user"))
		return
	}

	out := &domain.NewMessageEvent{
		Type:    domain.EvtNewMessage,
		RoomID:  evt.RoomID,
		Message: evt.Message,
	}
	if err := h.hub.BroadcastToRoom(ctx, evt.RoomID, domain.EvtNewMessage, out, client.ID); err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldRoomID, evt.RoomID).Msg("broadcast failed")
	}
}
