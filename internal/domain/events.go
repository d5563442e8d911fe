package domain

// WebSocket event types from client.
const (
	EvtJoinRoom    = "join_room"
	EvtLeaveRoom   = "leave_room"
	EvtTyping      = "typing"
	EvtStopTyping  = "stop_typing"
	EvtSendMessage = "send_message"
	EvtPing        = "ping"
)

// WebSocket event types to client.
const (
	EvtRoomJoined     = "room_joined"
	EvtRoomLeft       = "room_left"
	EvtNewMessage     = "new_message"
	EvtUserTyping     = "user_typing"
	EvtUserStopTyping = "user_stop_typing"
	EvtError          = "error"
	EvtPong           = "pong"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotInRoom     = "NOT_IN_ROOM"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseEvent is the base structure for all WebSocket events.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events

type JoinRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type LeaveRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type TypingEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// SendMessageEvent carries an already-persisted message as a broadcast
// trigger. The authoritative write path is the synchronous REST create.
type SendMessageEvent struct {
	Type    string      `json:"type"`
	RoomID  string      `json:"room_id"`
	Message MessageView `json:"message"`
}

// Server -> Client events

type RoomJoinedEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type RoomLeftEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type NewMessageEvent struct {
	Type    string      `json:"type"`
	RoomID  string      `json:"room_id"`
	Message MessageView `json:"message"`
}

type UserTypingEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent builds an error event for the client.
func NewErrorEvent(code, message string) *ErrorEvent {
	return &ErrorEvent{
		Type:    EvtError,
		Code:    code,
		Message: message,
	}
}
