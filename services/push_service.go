package services

import (
	"encoding/json"
	"os"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

// PushService mengirim Web Push (VAPID) ke semua subscription milik satu user.
type PushService struct {
	db              *gorm.DB
	subscriber      string
	vapidPublicKey  string
	vapidPrivateKey string
}

func NewPushService(db *gorm.DB) *PushService {
	return &PushService{
		db:              db,
		subscriber:      os.Getenv("VAPID_SUBSCRIBER"),
		vapidPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		vapidPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
	}
}

// PublicKey -> VAPID public key untuk client yang mau subscribe
func (ps *PushService) PublicKey() string {
	return ps.vapidPublicKey
}

// SendPush mengirim payload ke setiap subscription user dan mengembalikan
// jumlah yang berhasil terkirim. Subscription basi (endpoint menjawab 404/410)
// dihapus sekalian.
func (ps *PushService) SendPush(userID uint, payload PushPayload) (int, error) {
	if ps.vapidPrivateKey == "" {
		// Push belum dikonfigurasi; bukan error, cukup tidak terkirim.
		return 0, nil
	}

	var subs []models.PushSubscription
	if err := ps.db.Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, sub := range subs {
		resp, err := webpush.SendNotification(body, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      ps.subscriber,
			VAPIDPublicKey:  ps.vapidPublicKey,
			VAPIDPrivateKey: ps.vapidPrivateKey,
			TTL:             60,
		})
		if err != nil {
			utils.ErrorLogger.Printf("Error sending push to user %d: %v", userID, err)
			continue
		}

		if resp.StatusCode == 404 || resp.StatusCode == 410 {
			// Endpoint sudah tidak valid, buang subscription-nya
			if err := ps.db.Delete(&models.PushSubscription{}, sub.ID).Error; err != nil {
				utils.ErrorLogger.Printf("Error pruning stale subscription %d: %v", sub.ID, err)
			}
		} else {
			delivered++
		}
		resp.Body.Close()
	}

	return delivered, nil
}
