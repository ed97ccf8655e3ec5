package models

import (
	"time"
)

// Tipe notifikasi yang dibuat oleh notification worker. Tipe ad-hoc lain
// (misalnya dari admin broadcast) boleh memakai string bebas.
const (
	NotifTypeReminder      = "reminder"
	NotifTypeOverdue       = "overdue"
	NotifTypeDailySummary  = "daily_summary"
	NotifTypeOverdueDigest = "overdue_digest"
)

type Notification struct {
	ID           uint  `gorm:"primaryKey"`
	UserID       uint  `gorm:"not null;index"`
	User         User  `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	TaskID       *uint `gorm:"index"`
	Type         string `gorm:"type:varchar(30);not null;index"`
	Title        string `gorm:"type:varchar(255)"`
	Message      string `gorm:"type:text;not null"`
	Metadata     string `gorm:"type:text"` // JSON bebas: previews, counts
	IsRead       bool   `gorm:"not null;default:false"`
	IsDismissed  bool   `gorm:"not null;default:false"`
	ScheduledFor *time.Time `gorm:"index"` // instant reminder yang fired, bagian dari dedup key
	SentAt       *time.Time
	SnoozedUntil *time.Time
	CreatedAt    time.Time `gorm:"not null;index"`
}
