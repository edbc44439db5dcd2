// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// RedactedContent replaces the content of hard-blocked messages. The row is
// kept so that the moderation log has something to reference.
const RedactedContent = "[Message removed by moderation]"

// ChatRoom represents a public chat room. Rooms are created via the CRUD
// endpoints and are immutable afterwards.
type ChatRoom struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomName  string    `gorm:"not null" json:"room_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message represents a chat message. Hard-blocked sends still produce a row
// with redacted content and the moderation fields set; soft-warned sends
// produce no row at all.
type Message struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ChatRoomID         uint      `gorm:"not null;index" json:"chat_room_id"`
	ChatRoom           *ChatRoom `gorm:"foreignKey:ChatRoomID" json:"chat_room,omitempty"`
	SenderUid          string    `gorm:"not null;index" json:"sender_uid"`
	UserID             uint      `gorm:"index" json:"user_id"`
	User               *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content            string    `gorm:"type:text;not null" json:"content"`
	SentAt             time.Time `json:"sent_at"`
	IsDeleted          bool      `gorm:"default:false" json:"is_deleted"`
	IsFlagged          bool      `gorm:"default:false" json:"is_flagged"`
	ModerationCategory string    `json:"moderation_category,omitempty"`
	ModerationScore    *float64  `json:"moderation_score,omitempty"`
}
