package models

import "time"

// PushSubscription menyimpan endpoint Web Push milik satu browser/device.
type PushSubscription struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"not null;index"`
	User       User   `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Endpoint   string `gorm:"type:varchar(512);uniqueIndex;not null"`
	P256dh     string `gorm:"type:varchar(255);not null"`
	Auth       string `gorm:"type:varchar(255);not null"`
	DeviceName string `gorm:"type:varchar(255)"`
	CreatedAt  time.Time
}
