package service

import (
	"context"
	"errors"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/internal/membership"
	"github.com/sportsmeet/listing-chat/internal/moderation"
	"github.com/sportsmeet/listing-chat/internal/repository"
	"github.com/sportsmeet/listing-chat/pkg/log"
)

var (
	ErrNotRoomMember   = errors.New("not a member of this room")
	ErrDeleteForbidden = errors.New("not allowed to delete this message")
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
)

// DefaultPageSize is the history page size.
const DefaultPageSize = 20

// chatServiceImpl implements ChatService.
type chatServiceImpl struct {
	messages  repository.MessageRepository
	members   membership.Provider
	moderator *moderation.Pipeline
}

// NewChatService creates a new chat service.
func NewChatService(messages repository.MessageRepository, members membership.Provider, moderator *moderation.Pipeline) ChatService {
	return &chatServiceImpl{
		messages:  messages,
		members:   members,
		moderator: moderator,
	}
}

// authorize resolves whether the user may read/write the room: owner,
// approved member, or administrator override.
func (s *chatServiceImpl) authorize(ctx context.Context, roomID string, user *domain.User) error {
	m, err := s.members.GetRoomMembership(ctx, roomID, user.ID)
	if err != nil {
		if errors.Is(err, membership.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	if m.CanParticipate() || user.IsAdmin {
		return nil
	}
	return ErrNotRoomMember
}

func (s *chatServiceImpl) CreateMessage(ctx context.Context, roomID string, author *domain.User, text string, replyToID *string) (*domain.MessageView, error) {
	l := log.Ctx(ctx)

	if err := s.authorize(ctx, roomID, author); err != nil {
		return nil, err
	}

	clean, err := s.moderator.Sanitize(text)
	if err != nil {
		return nil, err
	}

	// Reply linkage is best-effort: an unknown or cross-room target
	// degrades the send to a top-level message instead of failing it.
	var replyTarget *domain.Message
	if replyToID != nil && *replyToID != "" {
		target, err := s.messages.GetByID(ctx, *replyToID)
		switch {
		case errors.Is(err, repository.ErrMessageNotFound), err == nil && target.RoomID != roomID:
			l.Debug().Str(log.FieldRoomID, roomID).Str("reply_to_id", *replyToID).Msg("dropping invalid reply target")
			replyToID = nil
		case err != nil:
			return nil, err
		default:
			replyTarget = target
		}
	} else {
		replyToID = nil
	}

	participants, err := s.members.ListRoomParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	recipients := make([]string, 0, len(participants))
	for _, id := range participants {
		if id != author.ID {
			recipients = append(recipients, id)
		}
	}

	msg := &domain.Message{
		RoomID:    roomID,
		AuthorID:  author.ID,
		Text:      clean,
		ReplyToID: replyToID,
	}
	if err := s.messages.Create(ctx, msg, recipients); err != nil {
		return nil, err
	}

	view := &domain.MessageView{
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		AuthorID:   author.ID,
		AuthorName: author.DisplayName,
		AvatarURL:  author.AvatarURL,
		Text:       msg.Text,
		CreatedAt:  msg.CreatedAt,
	}
	if replyTarget != nil {
		view.ReplyTo = domain.NewReplyPreview(replyTarget, s.displayName(ctx, replyTarget.AuthorID))
	}
	return view, nil
}

func (s *chatServiceImpl) ListMessages(ctx context.Context, roomID string, viewer *domain.User, page, pageSize int, cursor *repository.Cursor) ([]domain.MessageView, error) {
	if err := s.authorize(ctx, roomID, viewer); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = DefaultPageSize
	}

	offset := (page - 1) * pageSize
	messages, err := s.messages.ListPage(ctx, roomID, cursor, offset, pageSize)
	if err != nil {
		return nil, err
	}

	// Selection is newest-first; reverse into chronological order for
	// direct rendering.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return s.buildViews(ctx, messages)
}

func (s *chatServiceImpl) DeleteMessage(ctx context.Context, messageID string, requester *domain.User) error {
	l := log.Ctx(ctx)

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	allowed := msg.AuthorID == requester.ID || requester.IsAdmin
	if !allowed {
		m, err := s.members.GetRoomMembership(ctx, msg.RoomID, requester.ID)
		if err != nil && !errors.Is(err, membership.ErrRoomNotFound) {
			return err
		}
		allowed = m.IsOwner
	}
	if !allowed {
		return ErrDeleteForbidden
	}

	if err := s.messages.MarkDeleted(ctx, messageID); err != nil {
		return err
	}
	l.Info().Str(log.FieldMessageID, messageID).Str(log.FieldUserID, requester.ID).Msg("message tombstoned")
	return nil
}

// buildViews joins messages with author display fields and resolves
// reply previews in two batch lookups.
func (s *chatServiceImpl) buildViews(ctx context.Context, messages []domain.Message) ([]domain.MessageView, error) {
	replyIDs := make([]string, 0)
	for i := range messages {
		if messages[i].ReplyToID != nil {
			replyIDs = append(replyIDs, *messages[i].ReplyToID)
		}
	}
	targets, err := s.messages.GetByIDs(ctx, replyIDs)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	views := make([]domain.MessageView, len(messages))
	for i := range messages {
		m := &messages[i]
		view := domain.MessageView{
			ID:         m.ID,
			RoomID:     m.RoomID,
			AuthorID:   m.AuthorID,
			AuthorName: s.cachedDisplayName(ctx, names, m.AuthorID),
			Text:       m.Text,
			IsDeleted:  m.IsDeleted,
			CreatedAt:  m.CreatedAt,
		}
		if m.IsDeleted {
			// Tombstones render as removed; the text never leaves the
			// store.
			view.Text = ""
		}
		if m.ReplyToID != nil {
			if target, ok := targets[*m.ReplyToID]; ok {
				view.ReplyTo = domain.NewReplyPreview(target, s.cachedDisplayName(ctx, names, target.AuthorID))
			}
		}
		views[i] = view
	}
	return views, nil
}

func (s *chatServiceImpl) cachedDisplayName(ctx context.Context, cache map[string]string, userID string) string {
	if name, ok := cache[userID]; ok {
		return name
	}
	name := s.displayName(ctx, userID)
	cache[userID] = name
	return name
}

func (s *chatServiceImpl) displayName(ctx context.Context, userID string) string {
	user, err := s.members.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return user.DisplayName
}
