package services

import (
	"errors"
	"time"

	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

// ReminderScheduler menghitung dan menulis reminder_at berikutnya untuk sebuah
// task, menggabungkan rules dari semua stakeholder (owner + assignee).
type ReminderScheduler struct {
	DB *gorm.DB

	// Now bisa di-override di test
	Now func() time.Time
}

func NewReminderScheduler(db *gorm.DB) *ReminderScheduler {
	return &ReminderScheduler{
		DB:  db,
		Now: time.Now,
	}
}

// ScheduleNextReminder menghitung instant reminder paling awal yang masih di
// masa depan untuk satu task dan menulisnya ke reminder_at. Idempotent dan
// no-op safe: task hilang, tanpa due date, atau sudah punya reminder pending
// (termasuk yang di-set manual oleh user) dibiarkan apa adanya -- reminder
// yang ada tidak pernah di-clobber.
func (rs *ReminderScheduler) ScheduleNextReminder(taskID uint) error {
	var task models.Task
	if err := rs.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if task.IsCompleted() || task.DueDate == nil || task.ReminderAt != nil {
		return nil
	}

	var prefs []models.NotificationPreference
	if err := rs.DB.Where("user_id IN ?", task.Stakeholders()).Find(&prefs).Error; err != nil {
		return err
	}

	// Setiap rule dihitung di timezone pemilik rule-nya sendiri; instant
	// paling awal yang masih di masa depan menang, siapapun pemiliknya.
	now := rs.Now()
	var next *time.Time
	for i := range prefs {
		for _, rule := range prefs[i].Rules() {
			at := ComputeReminderInstant(*task.DueDate, rule, prefs[i].Timezone)
			if !at.After(now) {
				continue
			}
			if next == nil || at.Before(*next) {
				candidate := at
				next = &candidate
			}
		}
	}

	if next == nil {
		return nil
	}

	return rs.DB.Model(&models.Task{}).
		Where("id = ?", task.ID).
		Update("reminder_at", next).Error
}

// RecalculateForUser dipanggil saat reminder rules seorang user berubah.
// Semua task masa depan yang belum selesai di mana user jadi owner atau
// assignee direset reminder-nya (reset yang disengaja, melewati aturan
// "jangan clobber") lalu dijadwalkan ulang satu per satu. Task yang tidak
// punya instant masa depan tersisa berakhir tanpa reminder, tanpa error.
func (rs *ReminderScheduler) RecalculateForUser(userID uint) error {
	now := rs.Now()

	var tasks []models.Task
	if err := rs.DB.
		Where("(owner_id = ? OR assignee_id = ?) AND due_date > ? AND completed_at IS NULL",
			userID, userID, now).
		Find(&tasks).Error; err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}

	if err := rs.DB.Model(&models.Task{}).
		Where("id IN ?", ids).
		Update("reminder_at", nil).Error; err != nil {
		return err
	}

	for _, t := range tasks {
		if err := rs.ScheduleNextReminder(t.ID); err != nil {
			utils.ErrorLogger.Printf("Error rescheduling reminder for task %d: %v", t.ID, err)
		}
	}

	return nil
}
