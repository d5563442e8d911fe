package membership

import (
	"context"
	"errors"

	"github.com/sportsmeet/listing-chat/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUserNotFound = errors.New("user not found")
)

// Provider is the narrow boundary to the marketplace: listing
// ownership, membership approval state, and user identity. The chat
// core never owns or mutates any of this.
type Provider interface {
	// GetRoomMembership returns the membership of userID on the room
	// (listing) roomID. A user with no membership row gets a zero
	// Membership with empty status.
	GetRoomMembership(ctx context.Context, roomID, userID string) (domain.Membership, error)

	// GetUser returns identity and display fields for a user.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// ListRoomParticipants returns the user IDs allowed to read the
	// room: the owner plus every approved member.
	ListRoomParticipants(ctx context.Context, roomID string) ([]string, error)

	// IsAdministrator reports whether the user holds the site-wide
	// moderation override.
	IsAdministrator(ctx context.Context, userID string) (bool, error)
}
