package service

import (
	"context"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/internal/membership"
	"github.com/sportsmeet/listing-chat/internal/repository"
	"github.com/sportsmeet/listing-chat/pkg/log"
)

// inboxServiceImpl implements InboxService.
type inboxServiceImpl struct {
	unread  repository.UnreadRepository
	members membership.Provider
}

// NewInboxService creates a new inbox service.
func NewInboxService(unread repository.UnreadRepository, members membership.Provider) InboxService {
	return &inboxServiceImpl{
		unread:  unread,
		members: members,
	}
}

func (s *inboxServiceImpl) MarkRoomRead(ctx context.Context, roomID, userID string) error {
	return s.unread.DeleteByRoom(ctx, roomID, userID)
}

func (s *inboxServiceImpl) MarkMessagesRead(ctx context.Context, userID string, messageIDs []string) error {
	return s.unread.DeleteByMessages(ctx, userID, messageIDs)
}

func (s *inboxServiceImpl) MarkMessageRead(ctx context.Context, userID, messageID string) error {
	return s.unread.DeleteByMessages(ctx, userID, []string{messageID})
}

func (s *inboxServiceImpl) UnreadSummary(ctx context.Context, userID string) ([]domain.RoomUnreadSummary, error) {
	l := log.Ctx(ctx)

	aggregates, err := s.unread.AggregateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	summaries := make([]domain.RoomUnreadSummary, len(aggregates))
	for i, agg := range aggregates {
		name, ok := names[agg.LatestAuthorID]
		if !ok {
			if user, err := s.members.GetUser(ctx, agg.LatestAuthorID); err == nil {
				name = user.DisplayName
			} else {
				l.Debug().Err(err).Str(log.FieldUserID, agg.LatestAuthorID).Msg("unread summary sender lookup failed")
			}
			names[agg.LatestAuthorID] = name
		}

		text := agg.LatestText
		if agg.LatestDeleted {
			text = ""
		}

		summaries[i] = domain.RoomUnreadSummary{
			RoomID:        agg.RoomID,
			Count:         agg.Count,
			LatestText:    text,
			LatestSender:  name,
			LatestSentAt:  agg.LatestCreatedAt,
			LatestMessage: agg.LatestMessageID,
		}
	}
	return summaries, nil
}
