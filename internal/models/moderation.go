package models

import (
	"time"
)

// ModerationLog records a hard-blocked message. Every row references the
// redacted Message row persisted for the same send.
type ModerationLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;index" json:"message_id"`
	Message   *Message  `gorm:"foreignKey:MessageID" json:"message,omitempty"`
	SenderUid string    `gorm:"not null;index" json:"sender_uid"`
	Category  string    `json:"category"`
	Score     *float64  `json:"score,omitempty"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Report records a manual user report against a message. The reported user's
// counter lives on the User row; this row preserves the who/why.
type Report struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MessageID   uint      `gorm:"not null;index" json:"message_id"`
	ReporterUid string    `gorm:"not null" json:"reporter_uid"`
	ReportedUid string    `gorm:"not null;index" json:"reported_uid"`
	Reason      string    `gorm:"not null" json:"reason"`
	Details     string    `gorm:"type:text" json:"details"`
	CreatedAt   time.Time `json:"created_at"`
}
