package services

import (
	"errors"

	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

// GetOrCreatePreference mengambil preference user, membuatkan default jika
// belum ada. Aman terhadap race pembuatan ganda: gagal insert karena unique
// index pada user_id diperlakukan sebagai "sudah dibuat orang lain" dan record
// yang ada dibaca ulang.
func GetOrCreatePreference(db *gorm.DB, userID uint) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := db.Where("user_id = ?", userID).First(&pref).Error
	if err == nil {
		return &pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pref = models.DefaultPreference(userID)
	if createErr := db.Create(&pref).Error; createErr != nil {
		var existing models.NotificationPreference
		if readErr := db.Where("user_id = ?", userID).First(&existing).Error; readErr == nil {
			return &existing, nil
		}
		return nil, createErr
	}
	return &pref, nil
}

// loadPreferences memuat preference untuk sekumpulan user sekali jalan
// (menghindari N+1 query di loop sweep), sambil auto-provision yang belum ada.
func loadPreferences(db *gorm.DB, userIDs []uint) (map[uint]*models.NotificationPreference, error) {
	result := make(map[uint]*models.NotificationPreference, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var prefs []models.NotificationPreference
	if err := db.Where("user_id IN ?", userIDs).Find(&prefs).Error; err != nil {
		return nil, err
	}
	for i := range prefs {
		result[prefs[i].UserID] = &prefs[i]
	}

	for _, uid := range userIDs {
		if _, ok := result[uid]; ok {
			continue
		}
		pref, err := GetOrCreatePreference(db, uid)
		if err != nil {
			utils.ErrorLogger.Printf("Error provisioning preference for user %d: %v", uid, err)
			continue
		}
		result[uid] = pref
	}

	return result, nil
}
