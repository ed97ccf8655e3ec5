package Controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-app/controllers"
	"github.com/taskhive/taskhive-app/middlewares"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/services"
	"github.com/taskhive/taskhive-app/utils"
)

// nullGateway -> gateway tanpa transport untuk test controller.
type nullGateway struct{}

func (nullGateway) EmitNotification(models.Notification) {}

func (nullGateway) SendPush(uint, services.PushPayload) (int, error) { return 0, nil }

func setupNotificationRouter(db *gorm.DB, userID uint, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	router.Use(asUser(userID, role))

	worker := services.NewNotificationWorker(db, nullGateway{})
	notifCtrl := controllers.NewNotificationController(db, worker)
	router.GET("/notifications", notifCtrl.GetMyNotifications)
	router.POST("/notifications/check-now", notifCtrl.CheckNow)
	router.PATCH("/notifications/read-all", notifCtrl.MarkAllRead)
	router.PATCH("/notifications/:notif_id/read", notifCtrl.MarkRead)
	router.PATCH("/notifications/:notif_id/dismiss", notifCtrl.Dismiss)
	router.POST("/notifications", middlewares.AdminOnly(), notifCtrl.CreateNotification)

	return router
}

func seedNotification(t *testing.T, db *gorm.DB, userID uint, notifType, message string) models.Notification {
	notif := models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   "Test",
		Message: message,
	}
	if err := db.Create(&notif).Error; err != nil {
		t.Fatalf("failed to seed notification: %v", err)
	}
	return notif
}

func TestNotificationListAndReadFlow(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	user := seedTestUser(t, db, "notif_flow@example.com")
	other := seedTestUser(t, db, "notif_other@example.com")
	router := setupNotificationRouter(db, user.ID, "member")

	first := seedNotification(t, db, user.ID, models.NotifTypeReminder, "first")
	second := seedNotification(t, db, user.ID, models.NotifTypeOverdue, "second")
	seedNotification(t, db, other.ID, models.NotifTypeReminder, "not mine")

	// List hanya milik user sendiri.
	w := doJSON(t, router, "GET", "/notifications", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Data []models.Notification `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Data, 2)

	// Mark read satu, filter unread menyisakan satunya.
	w = doJSON(t, router, "PATCH", fmt.Sprintf("/notifications/%d/read", first.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", "/notifications?unread=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Data, 1)
	assert.Equal(t, second.ID, listResp.Data[0].ID)

	// Dismiss menghilangkan dari list.
	w = doJSON(t, router, "PATCH", fmt.Sprintf("/notifications/%d/dismiss", second.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, "GET", "/notifications", nil)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Data, 1)
	assert.Equal(t, first.ID, listResp.Data[0].ID)

	// Read-all.
	seedNotification(t, db, user.ID, models.NotifTypeReminder, "third")
	w = doJSON(t, router, "PATCH", "/notifications/read-all", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var unread int64
	assert.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).Count(&unread).Error)
	assert.Equal(t, int64(0), unread)

	// Notifikasi user lain tidak bisa disentuh.
	var foreign models.Notification
	assert.NoError(t, db.Where("user_id = ?", other.ID).First(&foreign).Error)
	w = doJSON(t, router, "PATCH", fmt.Sprintf("/notifications/%d/read", foreign.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckNowRunsScopedSweep(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	user := seedTestUser(t, db, "notif_checknow@example.com")
	other := seedTestUser(t, db, "notif_checknow_other@example.com")
	seedDefaultPreference(t, db, user.ID, nil)
	seedDefaultPreference(t, db, other.ID, nil)
	router := setupNotificationRouter(db, user.ID, "member")

	// Reminder user ini sudah due; milik user lain juga, tapi di luar scope.
	due := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	fired := time.Now().Add(-time.Hour)
	assert.NoError(t, db.Create(&models.Task{
		Title: "Mine", OwnerID: user.ID, DueDate: &due, ReminderAt: &fired,
	}).Error)
	assert.NoError(t, db.Create(&models.Task{
		Title: "Theirs", OwnerID: other.ID, DueDate: &due, ReminderAt: &fired,
	}).Error)

	w := doJSON(t, router, "POST", "/notifications/check-now", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data services.SweepStats `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Reminders)

	var count int64
	assert.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", other.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCreateNotificationRequiresAdmin(t *testing.T) {
	utils.InitLogger()

	db := setupTestDB(t)
	admin := seedTestUser(t, db, "notif_admin@example.com")
	member := seedTestUser(t, db, "notif_member@example.com")

	payload := map[string]interface{}{
		"user_id": member.ID,
		"message": "Maintenance tonight",
	}

	memberRouter := setupNotificationRouter(db, member.ID, "member")
	w := doJSON(t, memberRouter, "POST", "/notifications", payload)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminRouter := setupNotificationRouter(db, admin.ID, "admin")
	w = doJSON(t, adminRouter, "POST", "/notifications", payload)
	assert.Equal(t, http.StatusCreated, w.Code)

	var notif models.Notification
	assert.NoError(t, db.Where("user_id = ?", member.ID).First(&notif).Error)
	assert.Equal(t, "announcement", notif.Type)
	assert.Equal(t, "Maintenance tonight", notif.Message)
}
