package domain

import (
	"time"
)

// MessageModel is the GORM model for the messages table.
type MessageModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	RoomID    string    `gorm:"type:varchar(36);not null;index:idx_messages_room_created,priority:1"`
	AuthorID  string    `gorm:"type:varchar(36);not null;index"`
	Text      string    `gorm:"type:text;not null"`
	ReplyToID *string   `gorm:"type:varchar(36)"`
	IsDeleted bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_messages_room_created,priority:2"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		AuthorID:  m.AuthorID,
		Text:      m.Text,
		ReplyToID: m.ReplyToID,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		AuthorID:  msg.AuthorID,
		Text:      msg.Text,
		ReplyToID: msg.ReplyToID,
		IsDeleted: msg.IsDeleted,
		CreatedAt: msg.CreatedAt,
	}
}

// Message is a chat message. Immutable once created except for the
// IsDeleted tombstone flag.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	ReplyToID *string   `json:"reply_to_id,omitempty"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// ReplyPreview is the denormalized view of a reply target, resolved at
// read time. Removed is set when the target is tombstoned.
type ReplyPreview struct {
	MessageID  string `json:"message_id"`
	Text       string `json:"text"`
	AuthorName string `json:"author_name"`
	Removed    bool   `json:"removed"`
}

// MessageView is a message joined with author display fields and an
// optional resolved reply preview, ready for rendering.
type MessageView struct {
	ID         string        `json:"id"`
	RoomID     string        `json:"room_id"`
	AuthorID   string        `json:"author_id"`
	AuthorName string        `json:"author_name"`
	AvatarURL  string        `json:"avatar_url,omitempty"`
	Text       string        `json:"text"`
	ReplyTo    *ReplyPreview `json:"reply_to,omitempty"`
	IsDeleted  bool          `json:"is_deleted"`
	CreatedAt  time.Time     `json:"created_at"`
}

// replyPreviewMaxLen bounds the snippet shown above a reply.
const replyPreviewMaxLen = 80

// NewReplyPreview builds a preview for a reply target. Tombstoned
// targets stay addressable but carry no text.
func NewReplyPreview(target *Message, authorName string) *ReplyPreview {
	if target.IsDeleted {
		return &ReplyPreview{
			MessageID:  target.ID,
			AuthorName: authorName,
			Removed:    true,
		}
	}

	text := target.Text
	if len([]rune(text)) > replyPreviewMaxLen {
		text = string([]rune(text)[:replyPreviewMaxLen])
	}
	return &ReplyPreview{
		MessageID:  target.ID,
		Text:       text,
		AuthorName: authorName,
	}
}
