package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-app/models"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.NotificationPreference{},
		&models.Notification{},
		&models.PushSubscription{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) models.User {
	user := models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "secret",
		Role:     "member",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func seedPreference(t *testing.T, db *gorm.DB, userID uint, timezone string, rules []models.ReminderRule) models.NotificationPreference {
	pref := models.DefaultPreference(userID)
	pref.Timezone = timezone
	if err := pref.SetRules(rules); err != nil {
		t.Fatalf("failed to set rules: %v", err)
	}
	if err := db.Create(&pref).Error; err != nil {
		t.Fatalf("failed to seed preference: %v", err)
	}
	return pref
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func newTestScheduler(db *gorm.DB) *ReminderScheduler {
	rs := NewReminderScheduler(db)
	rs.Now = fixedNow
	return rs
}

func TestScheduleNextReminderPicksSoonestFutureInstant(t *testing.T) {
	db := setupServiceDB(t)
	owner := seedUser(t, db, "owner")
	seedPreference(t, db, owner.ID, "UTC", []models.ReminderRule{
		{DaysBefore: 1, Time: "09:00"},
		{DaysBefore: 0, Time: "09:00"},
	})

	due := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	task := models.Task{Title: "Write report", OwnerID: owner.ID, DueDate: &due}
	db.Create(&task)

	rs := newTestScheduler(db)
	assert.NoError(t, rs.ScheduleNextReminder(task.ID))

	var got models.Task
	db.First(&got, task.ID)
	assert.NotNil(t, got.ReminderAt)
	assert.True(t, got.ReminderAt.Equal(time.Date(2026, time.March, 9, 9, 0, 0, 0, time.UTC)))
}

func TestScheduleNextReminderNeverClobbersExisting(t *testing.T) {
	db := setupServiceDB(t)
	owner := seedUser(t, db, "owner")
	seedPreference(t, db, owner.ID, "UTC", []models.ReminderRule{{DaysBefore: 1, Time: "09:00"}})

	due := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	// Reminder yang di-set manual oleh user dianggap otoritatif
	manual := time.Date(2026, time.March, 5, 18, 0, 0, 0, time.UTC)
	task := models.Task{Title: "Review budget", OwnerID: owner.ID, DueDate: &due, ReminderAt: &manual}
	db.Create(&task)

	rs := newTestScheduler(db)
	assert.NoError(t, rs.ScheduleNextReminder(task.ID))

	var got models.Task
	db.First(&got, task.ID)
	assert.NotNil(t, got.ReminderAt)
	assert.True(t, got.ReminderAt.Equal(manual))
}

func TestScheduleNextReminderNoOpCases(t *testing.T) {
	db := setupServiceDB(t)
	owner := seedUser(t, db, "owner")
	seedPreference(t, db, owner.ID, "UTC", []models.ReminderRule{{DaysBefore: 1, Time: "09:00"}})
	rs := newTestScheduler(db)

	// Task tidak ada
	assert.NoError(t, rs.ScheduleNextReminder(9999))

	// Tanpa due date
	task := models.Task{Title: "Someday", OwnerID: owner.ID}
	db.Create(&task)
	assert.NoError(t, rs.ScheduleNextReminder(task.ID))
	var got models.Task
	db.First(&got, task.ID)
	assert.Nil(t, got.ReminderAt)

	// Semua instant sudah lewat -> reminder dibiarkan kosong
	pastDue := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	pastTask := models.Task{Title: "Too late", OwnerID: owner.ID, DueDate: &pastDue}
	db.Create(&pastTask)
	assert.NoError(t, rs.ScheduleNextReminder(pastTask.ID))
	// Dest struct di-reset; primary key lama ikut jadi kondisi WHERE kalau tidak
	got = models.Task{}
	db.First(&got, pastTask.ID)
	assert.Nil(t, got.ReminderAt)
}

func TestScheduleNextReminderWithoutPreferences(t *testing.T) {
	db := setupServiceDB(t)
	owner := seedUser(t, db, "owner")

	due := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	task := models.Task{Title: "No prefs yet", OwnerID: owner.ID, DueDate: &due}
	db.Create(&task)

	rs := newTestScheduler(db)
	assert.NoError(t, rs.ScheduleNextReminder(task.ID))

	var got models.Task
	db.First(&got, task.ID)
	assert.Nil(t, got.ReminderAt)
}

func TestScheduleNextReminderMergesStakeholders(t *testing.T) {
	db := setupServiceDB(t)
	owner := seedUser(t, db, "owner")
	assignee := seedUser(t, db, "assignee")

	// Owner: 1 hari sebelumnya jam 09:00 UTC. Assignee di New York dengan
	// rule 2 hari sebelumnya -- instant assignee lebih awal dan harus menang
	// meskipun bukan rule milik owner.
	seedPreference(t, db, owner.ID, "UTC", []models.ReminderRule{{DaysBefore: 1, Time: "09:00"}})
	seedPreference(t, db, assignee.ID, "America/New_York", []models.ReminderRule{{DaysBefore: 2, Time: "10:00"}})

	due := time.Date(2026, time.March, 6, 0, 0, 0, 0, time.UTC)
	task := models.Task{Title: "Joint task", OwnerID: owner.ID, AssigneeID: &assignee.ID, DueDate: &due}
	db.Create(&task)

	rs := newTestScheduler(db)
	assert.NoError(t, rs.ScheduleNextReminder(task.ID))

	var got models.Task
	db.First(&got, task.ID)
	assert.NotNil(t, got.ReminderAt)
	// 4 Maret 10:00 di New York (EST, UTC-5) = 15:00 UTC, lebih awal dari
	// instant owner (5 Maret 09:00 UTC)
	assert.True(t, got.ReminderAt.Equal(time.Date(2026, time.March, 4, 15, 0, 0, 0, time.UTC)))
}

func TestRecalculateForUserTouchesOnlyFutureOpenTasks(t *testing.T) {
	db := setupServiceDB(t)
	owner := seedUser(t, db, "owner")
	pref := seedPreference(t, db, owner.ID, "UTC", []models.ReminderRule{{DaysBefore: 1, Time: "09:00"}})

	now := fixedNow()
	oldReminder := now.Add(-time.Hour)

	futureDue := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	pastDue := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	completedAt := now.Add(-24 * time.Hour)

	futureTask := models.Task{Title: "Future", OwnerID: owner.ID, DueDate: &futureDue, ReminderAt: &oldReminder}
	pastTask := models.Task{Title: "Past", OwnerID: owner.ID, DueDate: &pastDue, ReminderAt: &oldReminder}
	doneTask := models.Task{Title: "Done", OwnerID: owner.ID, DueDate: &futureDue, ReminderAt: &oldReminder, CompletedAt: &completedAt}
	db.Create(&futureTask)
	db.Create(&pastTask)
	db.Create(&doneTask)

	// Rules baru: jam berubah ke 08:00
	pref.SetRules([]models.ReminderRule{{DaysBefore: 1, Time: "08:00"}})
	db.Save(&pref)

	rs := newTestScheduler(db)
	assert.NoError(t, rs.RecalculateForUser(owner.ID))

	var got models.Task
	db.First(&got, futureTask.ID)
	assert.NotNil(t, got.ReminderAt)
	assert.True(t, got.ReminderAt.Equal(time.Date(2026, time.March, 9, 8, 0, 0, 0, time.UTC)))

	// Task lewat due dan task selesai tidak disentuh. Dest struct di-reset per
	// query; GORM menambahkan primary key yang masih terisi ke kondisi WHERE.
	got = models.Task{}
	db.First(&got, pastTask.ID)
	assert.NotNil(t, got.ReminderAt)
	assert.True(t, got.ReminderAt.Equal(oldReminder))

	got = models.Task{}
	db.First(&got, doneTask.ID)
	assert.NotNil(t, got.ReminderAt)
	assert.True(t, got.ReminderAt.Equal(oldReminder))
}

func TestRecalculateForUserClearsWhenNoFutureInstant(t *testing.T) {
	db := setupServiceDB(t)
	owner := seedUser(t, db, "owner")
	pref := seedPreference(t, db, owner.ID, "UTC", []models.ReminderRule{{DaysBefore: 1, Time: "09:00"}})

	// Due besok tapi rule baru hanya menghasilkan instant yang sudah lewat
	due := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	oldReminder := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	task := models.Task{Title: "Tomorrow", OwnerID: owner.ID, DueDate: &due, ReminderAt: &oldReminder}
	db.Create(&task)

	pref.SetRules([]models.ReminderRule{{DaysBefore: 1, Time: "08:00"}})
	db.Save(&pref)

	rs := newTestScheduler(db)
	assert.NoError(t, rs.RecalculateForUser(owner.ID))

	var got models.Task
	db.First(&got, task.ID)
	assert.Nil(t, got.ReminderAt)
}
