package models

import (
	"encoding/json"
	"time"
)

// ReminderRule -> aturan reminder relatif terhadap due date sebuah task.
type ReminderRule struct {
	DaysBefore int    `json:"days_before"`
	Time       string `json:"time"` // "HH:mm"
}

// NotificationPreference -> tepat satu record per user, dibuat lazy dengan
// default saat pertama kali dibutuhkan.
type NotificationPreference struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"uniqueIndex;not null"`

	Timezone string `gorm:"type:varchar(64);not null;default:UTC"` // nama IANA

	QuietHoursEnabled bool
	QuietHoursStart   string `gorm:"type:varchar(5)"` // "22:00"
	QuietHoursEnd     string `gorm:"type:varchar(5)"` // "07:00"

	// JSON array of ReminderRule
	ReminderRules string `gorm:"type:text"`

	InAppEnabled         bool `gorm:"not null;default:true"`
	PushEnabled          bool `gorm:"not null;default:false"`
	OverdueAlertsEnabled bool `gorm:"not null;default:true"`

	DailySummaryEnabled bool
	DailySummaryTime    string `gorm:"type:varchar(5)"` // "08:00"

	OverdueDigestEnabled bool
	OverdueDigestTime    string `gorm:"type:varchar(5)"` // "17:00"

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultPreference mengembalikan preference default untuk user baru.
func DefaultPreference(userID uint) NotificationPreference {
	rules, _ := json.Marshal([]ReminderRule{
		{DaysBefore: 1, Time: "09:00"},
		{DaysBefore: 0, Time: "09:00"},
	})
	return NotificationPreference{
		UserID:               userID,
		Timezone:             "UTC",
		QuietHoursEnabled:    false,
		QuietHoursStart:      "22:00",
		QuietHoursEnd:        "07:00",
		ReminderRules:        string(rules),
		InAppEnabled:         true,
		PushEnabled:          false,
		OverdueAlertsEnabled: true,
		DailySummaryEnabled:  false,
		DailySummaryTime:     "08:00",
		OverdueDigestEnabled: false,
		OverdueDigestTime:    "17:00",
	}
}

// Rules men-decode daftar reminder rules; JSON rusak dianggap tidak ada rule.
func (p *NotificationPreference) Rules() []ReminderRule {
	if p.ReminderRules == "" {
		return nil
	}
	var rules []ReminderRule
	if err := json.Unmarshal([]byte(p.ReminderRules), &rules); err != nil {
		return nil
	}
	return rules
}

// SetRules meng-encode daftar rules ke kolom JSON.
func (p *NotificationPreference) SetRules(rules []ReminderRule) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	p.ReminderRules = string(data)
	return nil
}

// AnyChannelEnabled -> minimal satu channel (in-app / push) aktif
func (p *NotificationPreference) AnyChannelEnabled() bool {
	return p.InAppEnabled || p.PushEnabled
}
