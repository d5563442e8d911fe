package membership

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/pkg/log"
)

// ListingModel is a read-only mapping of the marketplace's listings
// table. The chat core never writes it.
type ListingModel struct {
	ID      string `gorm:"type:varchar(36);primaryKey"`
	OwnerID string `gorm:"type:varchar(36);not null;index"`
}

func (ListingModel) TableName() string {
	return "listings"
}

// ListingMemberModel is a read-only mapping of the marketplace's
// membership table.
type ListingMemberModel struct {
	ListingID string `gorm:"type:varchar(36);primaryKey"`
	UserID    string `gorm:"type:varchar(36);primaryKey"`
	Status    string `gorm:"type:varchar(20);not null"`
}

func (ListingMemberModel) TableName() string {
	return "listing_members"
}

// UserModel is a read-only mapping of the marketplace's users table.
type UserModel struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	DisplayName string `gorm:"type:varchar(100);not null"`
	AvatarURL   string `gorm:"type:varchar(500)"`
	IsAdmin     bool   `gorm:"not null;default:false"`
}

func (UserModel) TableName() string {
	return "users"
}

// GormProvider implements Provider against the marketplace database.
type GormProvider struct {
	db *gorm.DB
}

// NewGormProvider creates a provider backed by the marketplace tables.
func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db}
}

func (p *GormProvider) GetRoomMembership(ctx context.Context, roomID, userID string) (domain.Membership, error) {
	l := log.Ctx(ctx)

	var listing ListingModel
	result := p.db.WithContext(ctx).First(&listing, "id = ?", roomID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return domain.Membership{}, ErrRoomNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to load listing")
		return domain.Membership{}, result.Error
	}

	if listing.OwnerID == userID {
		return domain.Membership{IsOwner: true, Status: domain.MembershipApproved}, nil
	}

	var member ListingMemberModel
	result = p.db.WithContext(ctx).
		First(&member, "listing_id = ? AND user_id = ?", roomID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return domain.Membership{}, nil
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).Msg("failed to load membership")
		return domain.Membership{}, result.Error
	}

	return domain.Membership{Status: domain.MembershipStatus(member.Status)}, nil
}

func (p *GormProvider) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var model UserModel
	result := p.db.WithContext(ctx).First(&model, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}

	return &domain.User{
		ID:          model.ID,
		DisplayName: model.DisplayName,
		AvatarURL:   model.AvatarURL,
		IsAdmin:     model.IsAdmin,
	}, nil
}

func (p *GormProvider) ListRoomParticipants(ctx context.Context, roomID string) ([]string, error) {
	var listing ListingModel
	result := p.db.WithContext(ctx).First(&listing, "id = ?", roomID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, result.Error
	}

	var memberIDs []string
	result = p.db.WithContext(ctx).
		Model(&ListingMemberModel{}).
		Where("listing_id = ? AND status = ?", roomID, string(domain.MembershipApproved)).
		Pluck("user_id", &memberIDs)
	if result.Error != nil {
		return nil, result.Error
	}

	participants := make([]string, 0, len(memberIDs)+1)
	participants = append(participants, listing.OwnerID)
	for _, id := range memberIDs {
		if id != listing.OwnerID {
			participants = append(participants, id)
		}
	}
	return participants, nil
}

func (p *GormProvider) IsAdministrator(ctx context.Context, userID string) (bool, error) {
	user, err := p.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin, nil
}
