package domain

import "time"

// UnreadMarkModel is the GORM model for the unread_marks table.
// At most one mark exists per (user, message) pair; absence means read.
type UnreadMarkModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_unread_user_message,priority:1;index"`
	MessageID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_unread_user_message,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for UnreadMarkModel.
func (UnreadMarkModel) TableName() string {
	return "unread_marks"
}

// UnreadMark is a per-user pointer at a message the user has not seen.
type UnreadMark struct {
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ToDomain converts UnreadMarkModel to domain UnreadMark.
func (m *UnreadMarkModel) ToDomain() *UnreadMark {
	return &UnreadMark{
		UserID:    m.UserID,
		MessageID: m.MessageID,
		CreatedAt: m.CreatedAt,
	}
}

// RoomUnreadSummary is the per-room projection used by notification UIs:
// the unread count plus the latest unread message's text and sender.
type RoomUnreadSummary struct {
	RoomID        string    `json:"room_id"`
	Count         int       `json:"count"`
	LatestText    string    `json:"latest_text"`
	LatestSender  string    `json:"latest_sender"`
	LatestSentAt  time.Time `json:"latest_sent_at"`
	LatestMessage string    `json:"latest_message_id"`
}
