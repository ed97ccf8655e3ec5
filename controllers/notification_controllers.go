package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/realtime"
	"github.com/taskhive/taskhive-app/services"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

type NotificationController struct {
	DB     *gorm.DB
	Worker *services.NotificationWorker
}

func NewNotificationController(db *gorm.DB, worker *services.NotificationWorker) *NotificationController {
	return &NotificationController{DB: db, Worker: worker}
}

// GetMyNotifications -> notifikasi milik user, terbaru dulu; ?unread=true
// hanya yang belum dibaca
func (nc *NotificationController) GetMyNotifications(c *gin.Context) {
	q := nc.DB.Where("user_id = ? AND is_dismissed = ?", currentUserID(c), false)
	if c.Query("unread") == "true" {
		q = q.Where("is_read = ?", false)
	}

	var notifs []models.Notification
	if err := q.Order("created_at DESC").Limit(100).Find(&notifs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", notifs)
}

// CheckNow -> trigger "check for updates" dari user: sweep sinkron yang
// dibatasi ke user ini saja, mengembalikan jumlah per fase
func (nc *NotificationController) CheckNow(c *gin.Context) {
	userID := currentUserID(c)
	stats := nc.Worker.ProcessNotifications(&userID)
	utils.RespondJSON(c, http.StatusOK, "Sweep complete", stats)
}

// MarkRead
func (nc *NotificationController) MarkRead(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("notif_id"))

	res := nc.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, currentUserID(c)).
		Update("is_read", true)
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, gorm.ErrRecordNotFound)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification read", gin.H{"notif_id": id})
}

// MarkAllRead
func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	if err := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", currentUserID(c), false).
		Update("is_read", true).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications read", nil)
}

// Dismiss
func (nc *NotificationController) Dismiss(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("notif_id"))

	res := nc.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, currentUserID(c)).
		Update("is_dismissed", true)
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, gorm.ErrRecordNotFound)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification dismissed", gin.H{"notif_id": id})
}

// CreateNotification -> pengumuman ad-hoc dari admin ke satu user
func (nc *NotificationController) CreateNotification(c *gin.Context) {
	type reqBody struct {
		UserID  uint   `json:"user_id" binding:"required"`
		Type    string `json:"type"`
		Title   string `json:"title"`
		Message string `json:"message" binding:"required"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if body.Type == "" {
		body.Type = "announcement"
	}

	notif := models.Notification{
		UserID:  body.UserID,
		Type:    body.Type,
		Title:   body.Title,
		Message: body.Message,
	}
	if err := nc.DB.Create(&notif).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastNotification(notif)
	utils.InfoLogger.Printf("Notification created: %v", notif.Message)

	utils.RespondJSON(c, http.StatusCreated, "Notification created", notif)
}
