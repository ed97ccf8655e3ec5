package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/realtime"
	"github.com/taskhive/taskhive-app/services"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

type PreferenceController struct {
	DB        *gorm.DB
	Scheduler *services.ReminderScheduler
}

func NewPreferenceController(db *gorm.DB) *PreferenceController {
	return &PreferenceController{
		DB:        db,
		Scheduler: services.NewReminderScheduler(db),
	}
}

// GetMyPreferences -> preference user, dibuatkan default jika belum ada
func (pc *PreferenceController) GetMyPreferences(c *gin.Context) {
	pref, err := services.GetOrCreatePreference(pc.DB, currentUserID(c))
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Preferences", pref)
}

// UpdateMyPreferences -> perubahan reminder rules memicu recalculation pass
// atas semua task masa depan milik user
func (pc *PreferenceController) UpdateMyPreferences(c *gin.Context) {
	userID := currentUserID(c)

	pref, err := services.GetOrCreatePreference(pc.DB, userID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	type reqBody struct {
		Timezone             *string               `json:"timezone"`
		QuietHoursEnabled    *bool                 `json:"quiet_hours_enabled"`
		QuietHoursStart      *string               `json:"quiet_hours_start"`
		QuietHoursEnd        *string               `json:"quiet_hours_end"`
		ReminderRules        []models.ReminderRule `json:"reminder_rules"`
		InAppEnabled         *bool                 `json:"in_app_enabled"`
		PushEnabled          *bool                 `json:"push_enabled"`
		OverdueAlertsEnabled *bool                 `json:"overdue_alerts_enabled"`
		DailySummaryEnabled  *bool                 `json:"daily_summary_enabled"`
		DailySummaryTime     *string               `json:"daily_summary_time"`
		OverdueDigestEnabled *bool                 `json:"overdue_digest_enabled"`
		OverdueDigestTime    *string               `json:"overdue_digest_time"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if body.Timezone != nil {
		if _, err := time.LoadLocation(*body.Timezone); err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("unknown timezone"))
			return
		}
		pref.Timezone = *body.Timezone
	}
	if body.QuietHoursEnabled != nil {
		pref.QuietHoursEnabled = *body.QuietHoursEnabled
	}
	if body.QuietHoursStart != nil {
		pref.QuietHoursStart = *body.QuietHoursStart
	}
	if body.QuietHoursEnd != nil {
		pref.QuietHoursEnd = *body.QuietHoursEnd
	}
	if body.InAppEnabled != nil {
		pref.InAppEnabled = *body.InAppEnabled
	}
	if body.PushEnabled != nil {
		pref.PushEnabled = *body.PushEnabled
	}
	if body.OverdueAlertsEnabled != nil {
		pref.OverdueAlertsEnabled = *body.OverdueAlertsEnabled
	}
	if body.DailySummaryEnabled != nil {
		pref.DailySummaryEnabled = *body.DailySummaryEnabled
	}
	if body.DailySummaryTime != nil {
		pref.DailySummaryTime = *body.DailySummaryTime
	}
	if body.OverdueDigestEnabled != nil {
		pref.OverdueDigestEnabled = *body.OverdueDigestEnabled
	}
	if body.OverdueDigestTime != nil {
		pref.OverdueDigestTime = *body.OverdueDigestTime
	}

	rulesChanged := false
	if body.ReminderRules != nil {
		for _, rule := range body.ReminderRules {
			if rule.DaysBefore < 0 {
				utils.RespondError(c, http.StatusBadRequest, errors.New("days_before must be >= 0"))
				return
			}
		}
		if err := pref.SetRules(body.ReminderRules); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		rulesChanged = true
	}
	if body.Timezone != nil {
		// Instant reminder bergantung pada timezone, perlakukan seperti
		// perubahan rules
		rulesChanged = true
	}

	if err := pc.DB.Save(pref).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if rulesChanged {
		if err := pc.Scheduler.RecalculateForUser(userID); err != nil {
			utils.ErrorLogger.Printf("Error recalculating reminders for user %d: %v", userID, err)
		}
	}

	realtime.BroadcastPreferenceUpdate(*pref)
	utils.RespondJSON(c, http.StatusOK, "Preferences updated", pref)
}
