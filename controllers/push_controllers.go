package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/services"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

type PushController struct {
	DB   *gorm.DB
	Push *services.PushService
}

func NewPushController(db *gorm.DB, push *services.PushService) *PushController {
	return &PushController{DB: db, Push: push}
}

// GetPublicKey -> VAPID public key untuk PushManager.subscribe di browser
func (pc *PushController) GetPublicKey(c *gin.Context) {
	key := pc.Push.PublicKey()
	if key == "" {
		utils.RespondError(c, http.StatusServiceUnavailable, errors.New("push is not configured"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "VAPID public key", gin.H{"public_key": key})
}

// Subscribe -> simpan subscription Web Push milik browser ini. Endpoint yang
// sama di-subscribe ulang dianggap update, bukan duplikat.
func (pc *PushController) Subscribe(c *gin.Context) {
	type reqBody struct {
		Endpoint   string `json:"endpoint" binding:"required"`
		P256dh     string `json:"p256dh" binding:"required"`
		Auth       string `json:"auth" binding:"required"`
		DeviceName string `json:"device_name"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	userID := currentUserID(c)

	var sub models.PushSubscription
	err := pc.DB.Where("endpoint = ?", body.Endpoint).First(&sub).Error
	if err == nil {
		sub.UserID = userID
		sub.P256dh = body.P256dh
		sub.Auth = body.Auth
		sub.DeviceName = body.DeviceName
		if err := pc.DB.Save(&sub).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		utils.RespondJSON(c, http.StatusOK, "Subscription updated", sub)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	sub = models.PushSubscription{
		UserID:     userID,
		Endpoint:   body.Endpoint,
		P256dh:     body.P256dh,
		Auth:       body.Auth,
		DeviceName: body.DeviceName,
	}
	if err := pc.DB.Create(&sub).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Push subscription registered for user %d", userID)
	utils.RespondJSON(c, http.StatusCreated, "Subscribed", sub)
}

// Unsubscribe -> hapus subscription berdasarkan endpoint
func (pc *PushController) Unsubscribe(c *gin.Context) {
	type reqBody struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := pc.DB.Where("endpoint = ? AND user_id = ?", body.Endpoint, currentUserID(c)).
		Delete(&models.PushSubscription{}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Unsubscribed", nil)
}
