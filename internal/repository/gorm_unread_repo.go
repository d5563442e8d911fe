package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/pkg/log"
)

// GormUnreadRepository implements UnreadRepository using GORM.
type GormUnreadRepository struct {
	db *gorm.DB
}

// NewGormUnreadRepository creates a new GORM-based unread repository.
func NewGormUnreadRepository(db *gorm.DB) *GormUnreadRepository {
	return &GormUnreadRepository{db: db}
}

// DeleteByRoom removes every unread mark of the user whose message
// belongs to the room. Called when the user views the room.
func (r *GormUnreadRepository) DeleteByRoom(ctx context.Context, roomID, userID string) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id IN (?)",
			userID,
			r.db.Model(&domain.MessageModel{}).Select("id").Where("room_id = ?", roomID),
		).
		Delete(&domain.UnreadMarkModel{})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).Msg("failed to clear room unread marks")
		return result.Error
	}

	l.Debug().Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).
		Int64("cleared", result.RowsAffected).Msg("room marked read")
	return nil
}

// DeleteByMessages removes the user's marks for specific messages,
// used when a notification is resolved directly.
func (r *GormUnreadRepository) DeleteByMessages(ctx context.Context, userID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Where("user_id = ? AND message_id IN ?", userID, messageIDs).
		Delete(&domain.UnreadMarkModel{}).Error
}

// ListByUser returns all unread marks of a user.
func (r *GormUnreadRepository) ListByUser(ctx context.Context, userID string) ([]domain.UnreadMark, error) {
	var models []domain.UnreadMarkModel
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	marks := make([]domain.UnreadMark, len(models))
	for i := range models {
		marks[i] = *models[i].ToDomain()
	}
	return marks, nil
}

// AggregateByUser groups the user's unread marks by room, carrying the
// latest unread message of each room for notification display.
func (r *GormUnreadRepository) AggregateByUser(ctx context.Context, userID string) ([]RoomAggregate, error) {
	l := log.Ctx(ctx)

	// Marks joined with their messages, newest first; grouping happens
	// in memory since the latest-per-room row is needed, not just
	// counts.
	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Joins("JOIN unread_marks ON unread_marks.message_id = messages.id").
		Where("unread_marks.user_id = ?", userID).
		Order("messages.created_at DESC, messages.id DESC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to aggregate unread marks")
		return nil, err
	}

	byRoom := make(map[string]int)
	var order []string
	latest := make(map[string]domain.MessageModel)
	for _, m := range models {
		if _, seen := byRoom[m.RoomID]; !seen {
			order = append(order, m.RoomID)
			latest[m.RoomID] = m
		}
		byRoom[m.RoomID]++
	}

	aggregates := make([]RoomAggregate, 0, len(order))
	for _, roomID := range order {
		m := latest[roomID]
		aggregates = append(aggregates, RoomAggregate{
			RoomID:          roomID,
			Count:           byRoom[roomID],
			LatestMessageID: m.ID,
			LatestText:      m.Text,
			LatestAuthorID:  m.AuthorID,
			LatestDeleted:   m.IsDeleted,
			LatestCreatedAt: m.CreatedAt,
		})
	}
	return aggregates, nil
}
