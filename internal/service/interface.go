package service

import (
	"context"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/internal/repository"
)

// ChatService is the authoritative write/read path for room messages.
type ChatService interface {
	// CreateMessage moderates, authorizes and persists a message,
	// returning it joined with author display fields and a resolved
	// reply preview. Moderation and authorization failures never
	// persist or broadcast anything.
	CreateMessage(ctx context.Context, roomID string, author *domain.User, text string, replyToID *string) (*domain.MessageView, error)

	// ListMessages returns one page of a room's history in
	// chronological order, newest page first. With a cursor the page
	// is selected keyset-style so concurrent inserts cannot shift it.
	ListMessages(ctx context.Context, roomID string, viewer *domain.User, page, pageSize int, cursor *repository.Cursor) ([]domain.MessageView, error)

	// DeleteMessage tombstones a message. Permitted requesters are
	// the author, the room owner, or an administrator.
	DeleteMessage(ctx context.Context, messageID string, requester *domain.User) error
}

// InboxService maintains the per-user unread state.
type InboxService interface {
	// MarkRoomRead clears every unread mark of the user in the room.
	MarkRoomRead(ctx context.Context, roomID, userID string) error

	// MarkMessagesRead clears the user's marks for specific messages.
	MarkMessagesRead(ctx context.Context, userID string, messageIDs []string) error

	// MarkMessageRead clears a single mark.
	MarkMessageRead(ctx context.Context, userID, messageID string) error

	// UnreadSummary groups the user's unread marks by room with the
	// latest unread message text and sender of each room.
	UnreadSummary(ctx context.Context, userID string) ([]domain.RoomUnreadSummary, error)
}
