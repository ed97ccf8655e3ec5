package database

import (
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

// EnsureIndexes membuat index komposit yang dibutuhkan sweep loop tapi tidak
// tercakup AutoMigrate. Sweep membaca tasks lewat reminder_at dan due_date
// plus filter completed, dan membangun dedup set dari notifications lewat
// (type, task_id) dan (type, created_at).
func EnsureIndexes(db *gorm.DB) error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_tasks_reminder_open ON tasks (reminder_at, completed_at)",
		"CREATE INDEX IF NOT EXISTS idx_tasks_due_open ON tasks (due_date, completed_at)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_type_task ON notifications (type, task_id)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_type_created ON notifications (type, created_at)",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			utils.ErrorLogger.Printf("Error creating index: %v\nStatement: %s", err, stmt)
			continue
		}
	}

	utils.InfoLogger.Println("Sweep indexes ensured.")
	return nil
}
