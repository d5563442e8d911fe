package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sportsmeet/listing-chat/internal/membership"
	"github.com/sportsmeet/listing-chat/internal/moderation"
	"github.com/sportsmeet/listing-chat/internal/repository"
	"github.com/sportsmeet/listing-chat/internal/service"
	"github.com/sportsmeet/listing-chat/pkg/log"
	"github.com/sportsmeet/listing-chat/pkg/response"
)

// Handler handles HTTP requests for the chat core.
type Handler struct {
	chat     service.ChatService
	inbox    service.InboxService
	members  membership.Provider
	pageSize int
}

// NewHandler creates a new HTTP handler.
func NewHandler(chat service.ChatService, inbox service.InboxService, members membership.Provider, pageSize int) *Handler {
	if pageSize < 1 {
		pageSize = service.DefaultPageSize
	}
	return &Handler{
		chat:     chat,
		inbox:    inbox,
		members:  members,
		pageSize: pageSize,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1", Identity(h.members))
	{
		rooms := api.Group("/rooms")
		{
			rooms.GET("/:id/messages", h.ListMessages)
			rooms.POST("/:id/messages", h.CreateMessage)
			rooms.POST("/:id/read", h.MarkRoomRead)
		}
		api.DELETE("/messages/:id", h.DeleteMessage)
		api.GET("/unread", h.UnreadSummary)
		api.POST("/unread/ack", h.AckUnread)
	}
}

type createMessageRequest struct {
	Text      string  `json:"text" binding:"required"`
	ReplyToID *string `json:"reply_to_id"`
}

// CreateMessage moderates and persists a message.
func (h *Handler) CreateMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	user := CurrentUser(c)
	roomID := c.Param("id")

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	view, err := h.chat.CreateMessage(ctx, roomID, user, req.Text, req.ReplyToID)
	if err != nil {
		if code, ok := moderationCode(err); ok {
			response.Error(c, http.StatusBadRequest, code, err.Error())
			return
		}
		switch {
		case errors.Is(err, service.ErrNotRoomMember):
			response.Forbidden(c, "you are not a member of this room")
		case errors.Is(err, service.ErrRoomNotFound):
			response.NotFound(c, "room not found")
		default:
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to create message")
			response.InternalError(c, "failed to create message")
		}
		return
	}

	response.Created(c, view)
}

// ListMessages returns one page of room history in chronological order.
// An optional keyset cursor (before_at + before_id) keeps older pages
// stable while new messages arrive.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	user := CurrentUser(c)
	roomID := c.Param("id")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(h.pageSize)))
	// Clamp to the same bounds the service applies so has_more is
	// computed against the page size actually served.
	if pageSize < 1 || pageSize > 100 {
		pageSize = h.pageSize
	}

	var cursor *repository.Cursor
	if beforeAt := c.Query("before_at"); beforeAt != "" {
		at, err := time.Parse(time.RFC3339Nano, beforeAt)
		if err != nil {
			response.BadRequest(c, "invalid before_at cursor")
			return
		}
		cursor = &repository.Cursor{CreatedAt: at, ID: c.Query("before_id")}
	}

	views, err := h.chat.ListMessages(ctx, roomID, user, page, pageSize, cursor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotRoomMember):
			response.Forbidden(c, "you are not a member of this room")
		case errors.Is(err, service.ErrRoomNotFound):
			response.NotFound(c, "room not found")
		default:
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to list messages")
			response.InternalError(c, "failed to list messages")
		}
		return
	}

	response.Success(c, gin.H{
		"messages": views,
		"has_more": len(views) == pageSize,
	})
}

// DeleteMessage tombstones a message.
func (h *Handler) DeleteMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	user := CurrentUser(c)
	messageID := c.Param("id")

	if err := h.chat.DeleteMessage(ctx, messageID, user); err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			response.NotFound(c, "message not found")
		case errors.Is(err, service.ErrDeleteForbidden):
			response.Forbidden(c, "you may not delete this message")
		default:
			l.Error().Err(err).Str(log.FieldMessageID, messageID).Msg("failed to delete message")
			response.InternalError(c, "failed to delete message")
		}
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// MarkRoomRead clears the caller's unread marks for the room.
func (h *Handler) MarkRoomRead(c *gin.Context) {
	ctx := c.Request.Context()

	user := CurrentUser(c)
	roomID := c.Param("id")

	if err := h.inbox.MarkRoomRead(ctx, roomID, user.ID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to mark room read")
		response.InternalError(c, "failed to mark room read")
		return
	}

	response.Success(c, gin.H{"read": true})
}

type ackUnreadRequest struct {
	MessageIDs []string `json:"message_ids" binding:"required"`
}

// AckUnread clears the caller's unread marks for specific messages.
func (h *Handler) AckUnread(c *gin.Context) {
	ctx := c.Request.Context()

	user := CurrentUser(c)

	var req ackUnreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.inbox.MarkMessagesRead(ctx, user.ID, req.MessageIDs); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to ack unread marks")
		response.InternalError(c, "failed to ack unread marks")
		return
	}

	response.Success(c, gin.H{"read": true})
}

// UnreadSummary returns the caller's unread marks grouped by room.
func (h *Handler) UnreadSummary(c *gin.Context) {
	ctx := c.Request.Context()

	user := CurrentUser(c)

	summaries, err := h.inbox.UnreadSummary(ctx, user.ID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to build unread summary")
		response.InternalError(c, "failed to build unread summary")
		return
	}

	response.Success(c, gin.H{"rooms": summaries})
}

// moderationCode maps a moderation rejection to its wire code.
func moderationCode(err error) (string, bool) {
	switch {
	case errors.Is(err, moderation.ErrEmptyMessage):
		return "EMPTY_MESSAGE", true
	case errors.Is(err, moderation.ErrTooLong):
		return "TOO_LONG", true
	case errors.Is(err, moderation.ErrBannedWord):
		return "BANNED_WORD", true
	case errors.Is(err, moderation.ErrRepeatedCharSpam):
		return "REPEATED_CHARACTER_SPAM", true
	default:
		return "", false
	}
}
