package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sportsmeet/listing-chat/internal/domain"
)

var ErrMessageNotFound = errors.New("message not found")

// Cursor is a keyset pagination position: the creation time and ID of
// the oldest message the caller has already seen.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	// Create persists the message and one unread mark per recipient
	// in a single transaction. A failure leaves neither behind.
	Create(ctx context.Context, msg *domain.Message, recipients []string) error

	// GetByID returns a message by ID, tombstoned or not.
	GetByID(ctx context.Context, id string) (*domain.Message, error)

	// GetByIDs returns the subset of the given messages that exist,
	// keyed by ID.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Message, error)

	// ListPage returns up to limit messages of a room, newest first.
	// With a cursor the selection is keyset (strictly older than the
	// cursor); without one it falls back to the given offset.
	ListPage(ctx context.Context, roomID string, cursor *Cursor, offset, limit int) ([]domain.Message, error)

	// MarkDeleted sets the tombstone flag. The row is never removed.
	MarkDeleted(ctx context.Context, id string) error
}

// RoomAggregate is the raw per-room grouping of one user's unread
// marks, before display names are resolved.
type RoomAggregate struct {
	RoomID          string
	Count           int
	LatestMessageID string
	LatestText      string
	LatestAuthorID  string
	LatestDeleted   bool
	LatestCreatedAt time.Time
}

// UnreadRepository maintains per-user unread pointers.
type UnreadRepository interface {
	// DeleteByRoom removes every mark of the user whose message
	// belongs to the room.
	DeleteByRoom(ctx context.Context, roomID, userID string) error

	// DeleteByMessages removes the user's marks for the given
	// message IDs.
	DeleteByMessages(ctx context.Context, userID string, messageIDs []string) error

	// ListByUser returns all marks of a user.
	ListByUser(ctx context.Context, userID string) ([]domain.UnreadMark, error)

	// AggregateByUser groups the user's marks by room with the latest
	// unread message of each room.
	AggregateByUser(ctx context.Context, userID string) ([]RoomAggregate, error)
}
