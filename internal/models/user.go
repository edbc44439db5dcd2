// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// DefaultDisplayName is assigned to users created lazily on first contact.
const DefaultDisplayName = "Anonymous Weeb"

// User represents a chat participant. Identity is issued and verified
// externally; Uid is the opaque subject id from the verified credential.
// Rows are created lazily on first send or first verified request.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Uid            string    `gorm:"uniqueIndex;not null" json:"uid"`
	Email          string    `json:"email,omitempty"`
	DisplayName    string    `json:"display_name"`
	IsBanned       bool      `gorm:"default:false" json:"is_banned"`
	ViolationCount int       `gorm:"default:0" json:"violation_count"`
	ReportCount    int       `gorm:"default:0" json:"report_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	LastLoginAt    time.Time `json:"last_login_at"`
}
