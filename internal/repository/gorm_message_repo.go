package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create persists the message together with the unread marks of every
// recipient. Both land in one transaction so a failure can never leave
// a message without its unread fan-out.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message, recipients []string) error {
	l := log.Ctx(ctx)

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	model := domain.MessageToModel(msg)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		if len(recipients) == 0 {
			return nil
		}

		marks := make([]domain.UnreadMarkModel, 0, len(recipients))
		for _, userID := range recipients {
			marks = append(marks, domain.UnreadMarkModel{
				UserID:    userID,
				MessageID: model.ID,
			})
		}
		return tx.Create(&marks).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, msg.RoomID).Msg("failed to create message with unread fan-out")
		return err
	}

	msg.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldMessageID, msg.ID).Str(log.FieldRoomID, msg.RoomID).Msg("message created")
	return nil
}

// GetByID retrieves a message by ID. Tombstoned messages stay
// addressable so reply references never dangle.
func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model domain.MessageModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetByIDs retrieves a batch of messages keyed by ID. Missing IDs are
// simply absent from the result.
func (r *GormMessageRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Message, error) {
	if len(ids) == 0 {
		return map[string]*domain.Message{}, nil
	}

	var models []domain.MessageModel
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	out := make(map[string]*domain.Message, len(models))
	for i := range models {
		out[models[i].ID] = models[i].ToDomain()
	}
	return out, nil
}

// ListPage selects up to limit messages of a room, newest first. With a
// cursor the selection is keyset on (created_at, id) so concurrent
// inserts never shift older pages; without one it falls back to offset.
func (r *GormMessageRepository) ListPage(ctx context.Context, roomID string, cursor *Cursor, offset, limit int) ([]domain.Message, error) {
	l := log.Ctx(ctx)

	query := r.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Where("room_id = ?", roomID)

	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	} else if offset > 0 {
		query = query.Offset(offset)
	}

	var models []domain.MessageModel
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to list messages")
		return nil, err
	}

	messages := make([]domain.Message, len(models))
	for i := range models {
		messages[i] = *models[i].ToDomain()
	}
	return messages, nil
}

// MarkDeleted sets the tombstone flag on a message.
func (r *GormMessageRepository) MarkDeleted(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Where("id = ?", id).
		Update("is_deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
