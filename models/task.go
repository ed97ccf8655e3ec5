package models

import "time"

// Task adalah satu unit pekerjaan. DueDate bersifat date-only dan disimpan
// sebagai midnight UTC; ReminderAt adalah instant one-shot yang diisi oleh
// ReminderScheduler dan dikosongkan saat reminder terkirim.
type Task struct {
	ID          uint     `gorm:"primaryKey"`
	ProjectID   *uint    `gorm:"index"`
	Project     *Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Title       string   `gorm:"type:varchar(255);not null"`
	Description string   `gorm:"type:text"`
	OwnerID     uint     `gorm:"not null;index"`
	AssigneeID  *uint    `gorm:"index"`
	DueDate     *time.Time `gorm:"index"`
	ReminderAt  *time.Time `gorm:"index"`
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsCompleted -> true jika task sudah selesai
func (t *Task) IsCompleted() bool {
	return t.CompletedAt != nil
}

// Stakeholders -> owner plus assignee jika berbeda
func (t *Task) Stakeholders() []uint {
	ids := []uint{t.OwnerID}
	if t.AssigneeID != nil && *t.AssigneeID != t.OwnerID {
		ids = append(ids, *t.AssigneeID)
	}
	return ids
}
