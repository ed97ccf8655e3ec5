package models

import "time"

type Project struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	Color     string `gorm:"type:varchar(20)"`
	OwnerID   uint   `gorm:"not null;index"`
	Owner     User   `gorm:"foreignKey:OwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
