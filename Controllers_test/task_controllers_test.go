package Controllers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-app/controllers"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/utils"
)

func setupTaskRouter(db *gorm.DB, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	router.Use(asUser(userID, "member"))

	taskCtrl := controllers.NewTaskController(db)
	router.GET("/tasks", taskCtrl.GetAllTasks)
	router.POST("/tasks", taskCtrl.CreateTask)
	router.GET("/tasks/:task_id", taskCtrl.GetTaskByID)
	router.PATCH("/tasks/:task_id", taskCtrl.UpdateTask)
	router.DELETE("/tasks/:task_id", taskCtrl.DeleteTask)
	router.PATCH("/tasks/:task_id/complete", taskCtrl.CompleteTask)
	router.PATCH("/tasks/:task_id/reopen", taskCtrl.ReopenTask)
	router.PATCH("/tasks/:task_id/snooze-reminder", taskCtrl.SnoozeReminder)

	return router
}

func seedDefaultPreference(t *testing.T, db *gorm.DB, userID uint, rules []models.ReminderRule) {
	pref := models.DefaultPreference(userID)
	if rules != nil {
		if err := pref.SetRules(rules); err != nil {
			t.Fatalf("failed to set rules: %v", err)
		}
	}
	if err := db.Create(&pref).Error; err != nil {
		t.Fatalf("failed to seed preference: %v", err)
	}
}

// dueIn -> due date YYYY-MM-DD sejumlah hari dari sekarang (UTC)
func dueIn(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

// expectedReminder -> instant reminder untuk rule (daysBefore, "HH:00") UTC
func expectedReminder(t *testing.T, due string, daysBefore, hour int) time.Time {
	parsed, err := utils.ParseDueDate(due)
	if err != nil {
		t.Fatalf("bad due date %q: %v", due, err)
	}
	return parsed.AddDate(0, 0, -daysBefore).Add(time.Duration(hour) * time.Hour)
}

func loadTask(t *testing.T, db *gorm.DB, id uint) models.Task {
	var task models.Task
	if err := db.First(&task, id).Error; err != nil {
		t.Fatalf("failed to load task %d: %v", id, err)
	}
	return task
}

func TestCreateTaskSchedulesFirstReminder(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	user := seedTestUser(t, db, "task_create@example.com")
	seedDefaultPreference(t, db, user.ID, []models.ReminderRule{{DaysBefore: 1, Time: "09:00"}})
	router := setupTaskRouter(db, user.ID)

	due := dueIn(10)
	w := doJSON(t, router, "POST", "/tasks", map[string]interface{}{
		"title":    "Prepare report",
		"due_date": due,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var task models.Task
	assert.NoError(t, db.Where("title = ?", "Prepare report").First(&task).Error)
	assert.Equal(t, user.ID, task.OwnerID)
	assert.NotNil(t, task.ReminderAt)
	assert.True(t, task.ReminderAt.Equal(expectedReminder(t, due, 1, 9)))
}

func TestCreateTaskWithoutDueDateHasNoReminder(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	user := seedTestUser(t, db, "task_nodue@example.com")
	seedDefaultPreference(t, db, user.ID, nil)
	router := setupTaskRouter(db, user.ID)

	w := doJSON(t, router, "POST", "/tasks", map[string]interface{}{"title": "Someday"})
	assert.Equal(t, http.StatusCreated, w.Code)

	var task models.Task
	assert.NoError(t, db.Where("title = ?", "Someday").First(&task).Error)
	assert.Nil(t, task.DueDate)
	assert.Nil(t, task.ReminderAt)

	// Bad format ditolak.
	w = doJSON(t, router, "POST", "/tasks", map[string]interface{}{
		"title":    "Bad date",
		"due_date": "03/15/2026",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateDueDateRestartsReminderCycle(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	user := seedTestUser(t, db, "task_update@example.com")
	seedDefaultPreference(t, db, user.ID, []models.ReminderRule{{DaysBefore: 1, Time: "09:00"}})
	router := setupTaskRouter(db, user.ID)

	w := doJSON(t, router, "POST", "/tasks", map[string]interface{}{
		"title":    "Moving target",
		"due_date": dueIn(10),
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var task models.Task
	assert.NoError(t, db.Where("title = ?", "Moving target").First(&task).Error)

	newDue := dueIn(20)
	w = doJSON(t, router, "PATCH", fmt.Sprintf("/tasks/%d", task.ID), map[string]interface{}{
		"due_date": newDue,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	reloaded := loadTask(t, db, task.ID)
	assert.NotNil(t, reloaded.ReminderAt)
	assert.True(t, reloaded.ReminderAt.Equal(expectedReminder(t, newDue, 1, 9)))

	// Menghapus due date ikut menghapus reminder.
	w = doJSON(t, router, "PATCH", fmt.Sprintf("/tasks/%d", task.ID), map[string]interface{}{
		"due_date": "",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	reloaded = loadTask(t, db, task.ID)
	assert.Nil(t, reloaded.DueDate)
	assert.Nil(t, reloaded.ReminderAt)
}

func TestCompleteAndReopenTask(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	user := seedTestUser(t, db, "task_complete@example.com")
	seedDefaultPreference(t, db, user.ID, []models.ReminderRule{{DaysBefore: 1, Time: "09:00"}})
	router := setupTaskRouter(db, user.ID)

	due := dueIn(10)
	w := doJSON(t, router, "POST", "/tasks", map[string]interface{}{
		"title":    "Finish me",
		"due_date": due,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var task models.Task
	assert.NoError(t, db.Where("title = ?", "Finish me").First(&task).Error)
	assert.NotNil(t, task.ReminderAt)

	// Complete membatalkan reminder pending.
	w = doJSON(t, router, "PATCH", fmt.Sprintf("/tasks/%d/complete", task.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	reloaded := loadTask(t, db, task.ID)
	assert.NotNil(t, reloaded.CompletedAt)
	assert.Nil(t, reloaded.ReminderAt)

	// Reopen menghitung ulang reminder dari due date yang masih ada.
	w = doJSON(t, router, "PATCH", fmt.Sprintf("/tasks/%d/reopen", task.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	reloaded = loadTask(t, db, task.ID)
	assert.Nil(t, reloaded.CompletedAt)
	assert.NotNil(t, reloaded.ReminderAt)
	assert.True(t, reloaded.ReminderAt.Equal(expectedReminder(t, due, 1, 9)))
}

func TestSnoozeReminderPushesOneDay(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	user := seedTestUser(t, db, "task_snooze@example.com")
	seedDefaultPreference(t, db, user.ID, nil)
	router := setupTaskRouter(db, user.ID)

	w := doJSON(t, router, "POST", "/tasks", map[string]interface{}{
		"title":    "Snooze me",
		"due_date": dueIn(3),
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var task models.Task
	assert.NoError(t, db.Where("title = ?", "Snooze me").First(&task).Error)

	w = doJSON(t, router, "PATCH", fmt.Sprintf("/tasks/%d/snooze-reminder", task.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	reloaded := loadTask(t, db, task.ID)
	assert.NotNil(t, reloaded.ReminderAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *reloaded.ReminderAt, time.Minute)
}

func TestTaskVisibilityScopedToStakeholders(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	owner := seedTestUser(t, db, "task_owner@example.com")
	stranger := seedTestUser(t, db, "task_stranger@example.com")
	seedDefaultPreference(t, db, owner.ID, nil)

	ownerRouter := setupTaskRouter(db, owner.ID)
	strangerRouter := setupTaskRouter(db, stranger.ID)

	w := doJSON(t, ownerRouter, "POST", "/tasks", map[string]interface{}{"title": "Private"})
	assert.Equal(t, http.StatusCreated, w.Code)

	var task models.Task
	assert.NoError(t, db.Where("title = ?", "Private").First(&task).Error)

	// User lain tidak melihat dan tidak bisa menyentuh task ini.
	w = doJSON(t, strangerRouter, "GET", fmt.Sprintf("/tasks/%d", task.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, strangerRouter, "PATCH", fmt.Sprintf("/tasks/%d/complete", task.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, strangerRouter, "DELETE", fmt.Sprintf("/tasks/%d", task.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Assignee ikut melihat.
	assert.NoError(t, db.Model(&models.Task{}).Where("id = ?", task.ID).
		Update("assignee_id", stranger.ID).Error)
	w = doJSON(t, strangerRouter, "GET", fmt.Sprintf("/tasks/%d", task.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
